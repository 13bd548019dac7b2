// Package redisstore implements the storage contract on Redis. Every
// multi-key mutation runs as a Lua script so it is atomic on the server.
//
// Key layout under the configured prefix:
//
//	session:<id>                 hash of session fields
//	session:token:<token>        session id
//	session:mac:<mac>            set of active session ids for a device
//	sessions:active              zset of active session ids scored by last activity (ms)
//	user:<uid>:sessions          zset of session ids scored by start (ms)
//	sessions:stats               hash of running totals
//	gateway:<id>, gateways       gateway hash and id set
//	bw:<user>:<gw>:<hour>        hourly bucket hash (in, out)
//	bw:user:<user>, bw:gateway:<gw>, bw:buckets
//	                             bucket indexes scored by hour (unix s)
//	auth_logs                    stream
//	user:<id>, user:username:<name>
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/storage"

	"github.com/redis/go-redis/v9"
)

// Store is the Redis backend.
type Store struct {
	client    *database.RedisClient
	sessions  *SessionRepository
	bandwidth *BandwidthRepository
	gateways  *GatewayRepository
	authLogs  *AuthLogRepository
	users     *UserRepository
}

func New(client *database.RedisClient) *Store {
	users := NewUserRepository(client)
	return &Store{
		client:    client,
		sessions:  NewSessionRepository(client),
		bandwidth: NewBandwidthRepository(client, users),
		gateways:  NewGatewayRepository(client),
		authLogs:  NewAuthLogRepository(client, 0),
		users:     users,
	}
}

func (s *Store) Sessions() storage.SessionRepository { return s.sessions }
func (s *Store) Bandwidth() storage.BandwidthRepository { return s.bandwidth }
func (s *Store) Gateways() storage.GatewayRepository { return s.gateways }
func (s *Store) AuthLogs() storage.AuthLogRepository { return s.authLogs }
func (s *Store) Users() storage.UserRepository { return s.users }
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx) }
func (s *Store) Close() error { return s.client.Close() }

func wrap(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %v", storage.ErrUnavailable, op, err)
}

func ms(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMS(v string) time.Time {
	n, _ := strconv.ParseInt(v, 10, 64)
	return time.UnixMilli(n).UTC()
}

func parseInt(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
