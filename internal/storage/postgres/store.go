// Package postgres implements the storage contract on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/storage"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Store is the PostgreSQL backend.
type Store struct {
	client    *database.PostgresClient
	sessions  *SessionRepository
	bandwidth *BandwidthRepository
	gateways  *GatewayRepository
	authLogs  *AuthLogRepository
	users     *UserRepository
}

func New(client *database.PostgresClient) *Store {
	return &Store{
		client:    client,
		sessions:  NewSessionRepository(client.DB),
		bandwidth: NewBandwidthRepository(client),
		gateways:  NewGatewayRepository(client.DB),
		authLogs:  NewAuthLogRepository(client.DB),
		users:     NewUserRepository(client.DB),
	}
}

func (s *Store) Sessions() storage.SessionRepository { return s.sessions }
func (s *Store) Bandwidth() storage.BandwidthRepository { return s.bandwidth }
func (s *Store) Gateways() storage.GatewayRepository { return s.gateways }
func (s *Store) AuthLogs() storage.AuthLogRepository { return s.authLogs }
func (s *Store) Users() storage.UserRepository { return s.users }
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx) }
func (s *Store) Close() error { return s.client.Close() }

// Migrate applies the schema through the store's connection.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.client.DB)
}

// wrap maps driver errors onto the storage sentinels.
func wrap(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %v", storage.ErrUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
