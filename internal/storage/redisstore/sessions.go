package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"

	"github.com/redis/go-redis/v9"
)

// SessionRepository stores sessions as hashes with token, device, user and activity indexes.
type SessionRepository struct {
	client *database.RedisClient
}

func NewSessionRepository(client *database.RedisClient) *SessionRepository {
	return &SessionRepository{client: client}
}

func (r *SessionRepository) sessionKey(id string) string { return r.client.Key("session", id) }
func (r *SessionRepository) tokenKey(token string) string {
	return r.client.Key("session", "token", token)
}
func (r *SessionRepository) macPrefix() string { return r.client.Key("session", "mac", "") }
func (r *SessionRepository) macKey(mac string) string { return r.macPrefix() + mac }
func (r *SessionRepository) activeKey() string { return r.client.Key("sessions", "active") }
func (r *SessionRepository) statsKey() string { return r.client.Key("sessions", "stats") }
func (r *SessionRepository) userKey(userID string) string {
	return r.client.Key("user", userID, "sessions")
}

func (r *SessionRepository) Insert(ctx context.Context, s *models.Session) error {
	created, err := insertSessionLua.Run(ctx, r.client.Client,
		[]string{
			r.tokenKey(s.Token), r.sessionKey(s.ID), r.activeKey(),
			r.macKey(s.MACAddress), r.userKey(s.UserID), r.statsKey(),
		},
		s.ID, s.Token, s.UserID, s.MACAddress, s.IPAddress, s.GatewayID, ms(s.SessionStart),
	).Int()
	if err != nil {
		return wrap("insert session", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: insert session", storage.ErrDuplicateToken)
	}
	return nil
}

func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	id, err := r.client.Client.Get(ctx, r.tokenKey(token)).Result()
	if err != nil {
		return nil, wrap("find session by token", err)
	}
	return r.load(ctx, id)
}

func (r *SessionRepository) load(ctx context.Context, id string) (*models.Session, error) {
	fields, err := r.client.Client.HGetAll(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return nil, wrap("load session", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: session %s", storage.ErrNotFound, id)
	}
	return sessionFromHash(fields), nil
}

func (r *SessionRepository) loadMany(ctx context.Context, ids []string) ([]*models.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.client.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, r.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, wrap("load sessions", err)
	}
	out := make([]*models.Session, 0, len(ids))
	for _, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			out = append(out, sessionFromHash(fields))
		}
	}
	return out, nil
}

func (r *SessionRepository) Touch(ctx context.Context, sessionID, ip, mac string, now time.Time) (bool, error) {
	ok, err := touchSessionLua.Run(ctx, r.client.Client,
		[]string{r.sessionKey(sessionID), r.activeKey()},
		sessionID, ip, mac, ms(now), r.macPrefix(),
	).Int()
	if err != nil {
		return false, wrap("touch session", err)
	}
	return ok == 1, nil
}

func (r *SessionRepository) deactivate(ctx context.Context, id string, now time.Time, cutoff string) (bool, error) {
	ok, err := deactivateSessionLua.Run(ctx, r.client.Client,
		[]string{r.sessionKey(id), r.activeKey(), r.statsKey()},
		id, ms(now), cutoff, r.macPrefix(),
	).Int()
	if err != nil {
		return false, err
	}
	return ok == 1, nil
}

func (r *SessionRepository) DeactivateByToken(ctx context.Context, token string, now time.Time) (bool, error) {
	id, err := r.client.Client.Get(ctx, r.tokenKey(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, wrap("deactivate session", err)
	}
	ok, err := r.deactivate(ctx, id, now, "")
	if err != nil {
		return false, wrap("deactivate session", err)
	}
	return ok, nil
}

// DeactivateIdle reads candidates from the activity index, then deactivates each
// one through the conditional script, which re-checks the idle condition.
func (r *SessionRepository) DeactivateIdle(ctx context.Context, cutoff, now time.Time) (int, error) {
	cutoffMS := strconv.FormatInt(ms(cutoff), 10)
	ids, err := r.client.Client.ZRangeByScore(ctx, r.activeKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + cutoffMS,
	}).Result()
	if err != nil {
		return 0, wrap("scan idle sessions", err)
	}

	var (
		count    int
		firstErr error
	)
	for _, id := range ids {
		ok, err := r.deactivate(ctx, id, now, cutoffMS)
		if err != nil {
			if firstErr == nil {
				firstErr = wrap("deactivate idle session "+id, err)
			}
			continue
		}
		if ok {
			count++
		}
	}
	return count, firstErr
}

func (r *SessionRepository) CountActiveByMAC(ctx context.Context, mac string) (int64, error) {
	n, err := r.client.Client.SCard(ctx, r.macKey(mac)).Result()
	if err != nil {
		return 0, wrap("count active sessions by mac", err)
	}
	return n, nil
}

func (r *SessionRepository) CountActive(ctx context.Context) (int64, error) {
	n, err := r.client.Client.ZCard(ctx, r.activeKey()).Result()
	if err != nil {
		return 0, wrap("count active sessions", err)
	}
	return n, nil
}

func (r *SessionRepository) ListActive(ctx context.Context, limit int) ([]*models.Session, error) {
	ids, err := r.client.Client.ZRevRange(ctx, r.activeKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, wrap("list active sessions", err)
	}
	return r.loadMany(ctx, ids)
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	ids, err := r.client.Client.ZRevRange(ctx, r.userKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, wrap("list user sessions", err)
	}
	return r.loadMany(ctx, ids)
}

func (r *SessionRepository) Statistics(ctx context.Context) (*models.SessionStatistics, error) {
	var (
		statsCmd  *redis.MapStringStringCmd
		activeCmd *redis.IntCmd
	)
	_, err := r.client.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		statsCmd = p.HGetAll(ctx, r.statsKey())
		activeCmd = p.ZCard(ctx, r.activeKey())
		return nil
	})
	if err != nil {
		return nil, wrap("session statistics", err)
	}

	fields := statsCmd.Val()
	stats := &models.SessionStatistics{
		TotalSessions:      parseInt(fields["total_sessions"]),
		ActiveSessions:     activeCmd.Val(),
		TotalIncomingBytes: parseInt(fields["total_in"]),
		TotalOutgoingBytes: parseInt(fields["total_out"]),
	}
	if ended := parseInt(fields["ended_count"]); ended > 0 {
		stats.AverageDuration = time.Duration(parseInt(fields["ended_duration_ms"])/ended) * time.Millisecond
	}
	return stats, nil
}

func sessionFromHash(f map[string]string) *models.Session {
	s := &models.Session{
		ID:            f["id"],
		Token:         f["token"],
		UserID:        f["user_id"],
		MACAddress:    f["mac"],
		IPAddress:     f["ip"],
		GatewayID:     f["gateway_id"],
		IsActive:      f["active"] == "1",
		IncomingBytes: parseInt(f["in"]),
		OutgoingBytes: parseInt(f["out"]),
		SessionStart:  fromMS(f["start"]),
		LastActivity:  fromMS(f["last"]),
	}
	if end, ok := f["end"]; ok {
		t := fromMS(end)
		s.SessionEnd = &t
	}
	return s
}
