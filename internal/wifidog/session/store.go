// internal/wifidog/session/store.go
package session

import (
	"context"
	"errors"
	"time"

	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/metrics"
	"wifidog-auth/internal/common/validation"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"
	"wifidog-auth/internal/wifidog/token"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Store owns the session lifecycle: absent -> active -> inactive. An
// inactive session is never reactivated.
type Store struct {
	config *Config
	repo   storage.SessionRepository
	issuer token.Issuer
	clock  clock.Clock
	logger logger.Logger
}

func NewStore(config *Config, repo storage.SessionRepository, issuer token.Issuer, clk clock.Clock, log logger.Logger) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		config: config,
		repo:   repo,
		issuer: issuer,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"component": "session-store"}),
	}
}

// CreateSession grants access to a device and returns the new token.
func (s *Store) CreateSession(ctx context.Context, userID, mac, ip, gatewayID string) (string, error) {
	if normalized := validation.NormalizeMAC(mac); normalized != "" {
		mac = normalized
	}

	if !s.config.AllowMultipleSessions {
		active, err := s.HasActiveSession(ctx, mac)
		if err != nil {
			return "", err
		}
		if active {
			return "", apperrors.NewSessionAlreadyActiveError(mac)
		}
	}

	now := s.clock.Now().UTC()
	for attempt := 1; attempt <= s.config.TokenRetries; attempt++ {
		tok, err := s.issuer.Issue()
		if err != nil {
			s.logger.Error("Token generation failed", map[string]interface{}{"error": err.Error()})
			return "", err
		}

		sess := &models.Session{
			ID:           uuid.NewString(),
			Token:        tok,
			UserID:       userID,
			MACAddress:   mac,
			IPAddress:    ip,
			GatewayID:    gatewayID,
			IsActive:     true,
			SessionStart: now,
			LastActivity: now,
		}

		err = s.repo.Insert(ctx, sess)
		if errors.Is(err, storage.ErrDuplicateToken) {
			s.logger.Warn("Token collision, retrying", map[string]interface{}{"attempt": attempt})
			continue
		}
		if err != nil {
			metrics.StorageErrors.WithLabelValues("session_insert").Inc()
			return "", apperrors.NewStorageUnavailableError("session_insert", err)
		}

		metrics.SessionsCreated.Inc()
		s.logger.Info("Session created", map[string]interface{}{
			"sessionId": sess.ID,
			"userId":    userID,
			"gatewayId": gatewayID,
			"mac":       mac,
			"token":     logger.TokenPrefix(tok),
		})
		return tok, nil
	}

	return "", apperrors.NewDuplicateTokenError(s.config.TokenRetries)
}

// Validate returns the active session for tok, or nil if there is none.
func (s *Store) Validate(ctx context.Context, tok string) (*models.Session, error) {
	if tok == "" {
		return nil, nil
	}
	sess, err := s.repo.FindByToken(ctx, tok)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_find").Inc()
		return nil, apperrors.NewStorageUnavailableError("session_find", err)
	}
	if !sess.IsActive {
		return nil, nil
	}
	return sess, nil
}

// DeviceMatches applies the strict MAC policy. With the policy off, or
// without a MAC on either side, any device matches.
func (s *Store) DeviceMatches(sess *models.Session, mac string) bool {
	if !s.config.StrictMACValidation || mac == "" || sess.MACAddress == "" {
		return true
	}
	reported := validation.NormalizeMAC(mac)
	if reported == "" {
		return false
	}
	recorded := validation.NormalizeMAC(sess.MACAddress)
	if recorded == "" {
		recorded = sess.MACAddress
	}
	return reported == recorded
}

// Touch records activity. It returns INVALID_OR_INACTIVE_SESSION if the
// session was deactivated in the meantime.
func (s *Store) Touch(ctx context.Context, sessionID, ip, mac string, now time.Time) error {
	if normalized := validation.NormalizeMAC(mac); normalized != "" {
		mac = normalized
	}
	ok, err := s.repo.Touch(ctx, sessionID, ip, mac, now)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_touch").Inc()
		return apperrors.NewStorageUnavailableError("session_touch", err)
	}
	if !ok {
		return apperrors.NewInvalidOrInactiveSessionError("session " + sessionID + " is not active")
	}
	return nil
}

// Terminate deactivates the session for tok. It reports false, without
// error, when there was no active session to end.
func (s *Store) Terminate(ctx context.Context, tok string) (bool, error) {
	ended, err := s.repo.DeactivateByToken(ctx, tok, s.clock.Now().UTC())
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_terminate").Inc()
		return false, apperrors.NewStorageUnavailableError("session_terminate", err)
	}
	if ended {
		metrics.SessionsTerminated.WithLabelValues("logout").Inc()
		s.logger.Info("Session terminated", map[string]interface{}{"token": logger.TokenPrefix(tok)})
	}
	return ended, nil
}

// CleanupExpired deactivates every active session idle for longer than
// threshold. A non-positive threshold uses the configured inactivity
// timeout. It returns how many sessions this call actually ended.
func (s *Store) CleanupExpired(ctx context.Context, threshold time.Duration, now time.Time) (int, error) {
	if threshold <= 0 {
		threshold = s.config.InactivityTimeout
	}
	cutoff := now.Add(-threshold)

	n, err := s.repo.DeactivateIdle(ctx, cutoff, now)
	if n > 0 {
		metrics.SessionsTerminated.WithLabelValues("expired").Add(float64(n))
	}
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_cleanup").Inc()
		s.logger.Error("Session cleanup incomplete", map[string]interface{}{
			"deactivated": n,
			"cutoff":      cutoff,
			"error":       err.Error(),
		})
		return n, apperrors.NewStorageUnavailableError("session_cleanup", err)
	}

	s.logger.Info("Session cleanup finished", map[string]interface{}{
		"deactivated": n,
		"cutoff":      cutoff,
	})
	return n, nil
}

func (s *Store) HasActiveSession(ctx context.Context, mac string) (bool, error) {
	if normalized := validation.NormalizeMAC(mac); normalized != "" {
		mac = normalized
	}
	n, err := s.repo.CountActiveByMAC(ctx, mac)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_count_mac").Inc()
		return false, apperrors.NewStorageUnavailableError("session_count_mac", err)
	}
	return n > 0, nil
}

func (s *Store) ActiveSessionCount(ctx context.Context) (int64, error) {
	n, err := s.repo.CountActive(ctx)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_count").Inc()
		return 0, apperrors.NewStorageUnavailableError("session_count", err)
	}
	metrics.SessionsActive.Set(float64(n))
	return n, nil
}

// ActiveSessions lists active sessions, most recently active first.
func (s *Store) ActiveSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	out, err := s.repo.ListActive(ctx, s.limit(limit))
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_list").Inc()
		return nil, apperrors.NewStorageUnavailableError("session_list", err)
	}
	return out, nil
}

// UserSessions is the session history of userID, newest first.
func (s *Store) UserSessions(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	out, err := s.repo.ListByUser(ctx, userID, s.limit(limit))
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_history").Inc()
		return nil, apperrors.NewStorageUnavailableError("session_history", err)
	}
	return out, nil
}

func (s *Store) Statistics(ctx context.Context) (*models.SessionStatistics, error) {
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("session_stats").Inc()
		return nil, apperrors.NewStorageUnavailableError("session_stats", err)
	}
	return stats, nil
}

func (s *Store) limit(n int) int {
	if n <= 0 || n > s.config.ListLimit {
		return s.config.ListLimit
	}
	return n
}
