// Package storage defines the persistence contract shared by the Postgres and
// Redis backends. Every mutation is either an insert guarded by a uniqueness
// constraint, an atomic add, or a conditional update that only applies while
// the target row is still in the expected state.
package storage

import (
	"context"
	"errors"
	"time"

	"wifidog-auth/internal/models"
)

var (
	ErrNotFound       = errors.New("NOT_FOUND")
	ErrDuplicateToken = errors.New("DUPLICATE_TOKEN")
	ErrDuplicateUser  = errors.New("DUPLICATE_USER")
	ErrUnavailable    = errors.New("STORAGE_UNAVAILABLE")
)

// SessionRepository owns session rows.
type SessionRepository interface {
	// Insert fails with ErrDuplicateToken when the token is already taken.
	Insert(ctx context.Context, s *models.Session) error
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	// Touch sets last_activity and, when non-empty, ip and mac. It reports false if the session is not active.
	Touch(ctx context.Context, sessionID, ip, mac string, now time.Time) (bool, error)
	// DeactivateByToken sets is_active=false and session_end=now only if the session is active.
	DeactivateByToken(ctx context.Context, token string, now time.Time) (bool, error)
	// DeactivateIdle deactivates active sessions with last_activity before cutoff, re-checking
	// both conditions per session at write time. It returns the number deactivated.
	DeactivateIdle(ctx context.Context, cutoff, now time.Time) (int, error)
	CountActiveByMAC(ctx context.Context, mac string) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	ListActive(ctx context.Context, limit int) ([]*models.Session, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Session, error)
	Statistics(ctx context.Context) (*models.SessionStatistics, error)
}

// Usage is one counter report to apply to a session and its hourly bucket.
type Usage struct {
	SessionID string
	UserID    string
	GatewayID string
	Incoming  int64
	Outgoing  int64
	// Cumulative marks Incoming/Outgoing as running totals rather than deltas.
	Cumulative bool
	Now        time.Time
}

// Applied is the amount actually added by ApplyUsage.
type Applied struct {
	Incoming int64
	Outgoing int64
}

// BandwidthRepository owns session counters and hourly buckets.
type BandwidthRepository interface {
	// ApplyUsage atomically adds to the session counters and to the
	// (user, gateway, hour(now)) bucket. In cumulative mode the session counters
	// advance to max(current, reported) and only the advance reaches the bucket.
	// It reports false, applying nothing, when the session is not active.
	ApplyUsage(ctx context.Context, u Usage) (Applied, bool, error)
	Buckets(ctx context.Context, userID, gatewayID string, since time.Time) ([]models.BandwidthBucket, error)
	SumByUserPerDay(ctx context.Context, userID string, start, end time.Time) ([]models.DailyBandwidth, error)
	TopUsers(ctx context.Context, since time.Time, limit int) ([]models.UserBandwidth, error)
	SumByGatewayPerDay(ctx context.Context, gatewayID string, since time.Time) ([]models.DailyBandwidth, error)
}

// GatewayRepository owns gateway rows.
type GatewayRepository interface {
	// Upsert creates the gateway or sets last_ping, is_online and sys_uptime. Last write wins.
	Upsert(ctx context.Context, gatewayID string, sysUptime int64, now time.Time) error
	Find(ctx context.Context, gatewayID string) (*models.Gateway, error)
	List(ctx context.Context) ([]*models.Gateway, error)
}

// AuthLogRepository is an append-only audit table.
type AuthLogRepository interface {
	Append(ctx context.Context, entry *models.AuthLogEntry) error
}

// UserRepository owns portal accounts.
type UserRepository interface {
	// Create fails with ErrDuplicateUser when the username is taken.
	Create(ctx context.Context, u *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// Store bundles the repositories of one backend.
type Store interface {
	Sessions() SessionRepository
	Bandwidth() BandwidthRepository
	Gateways() GatewayRepository
	AuthLogs() AuthLogRepository
	Users() UserRepository
	Ping(ctx context.Context) error
	Close() error
}
