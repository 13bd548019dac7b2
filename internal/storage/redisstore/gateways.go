package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"

	"github.com/redis/go-redis/v9"
)

// GatewayRepository keeps one hash per gateway plus a set of known ids.
type GatewayRepository struct {
	client *database.RedisClient
}

func NewGatewayRepository(client *database.RedisClient) *GatewayRepository {
	return &GatewayRepository{client: client}
}

func (r *GatewayRepository) gatewayKey(id string) string { return r.client.Key("gateway", id) }
func (r *GatewayRepository) indexKey() string { return r.client.Key("gateways") }

// Upsert overwrites last_ping in a MULTI block; first_seen is only set once.
func (r *GatewayRepository) Upsert(ctx context.Context, gatewayID string, sysUptime int64, now time.Time) error {
	key := r.gatewayKey(gatewayID)
	_, err := r.client.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"gateway_id", gatewayID,
			"last_ping", ms(now),
			"is_online", "1",
			"sys_uptime", sysUptime,
		)
		p.HSetNX(ctx, key, "first_seen", ms(now))
		p.SAdd(ctx, r.indexKey(), gatewayID)
		return nil
	})
	if err != nil {
		return wrap("upsert gateway", err)
	}
	return nil
}

func (r *GatewayRepository) Find(ctx context.Context, gatewayID string) (*models.Gateway, error) {
	fields, err := r.client.Client.HGetAll(ctx, r.gatewayKey(gatewayID)).Result()
	if err != nil {
		return nil, wrap("find gateway", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: gateway %s", storage.ErrNotFound, gatewayID)
	}
	return gatewayFromHash(fields), nil
}

func (r *GatewayRepository) List(ctx context.Context) ([]*models.Gateway, error) {
	ids, err := r.client.Client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, wrap("list gateways", err)
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, r.gatewayKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list gateways", err)
	}

	out := make([]*models.Gateway, 0, len(ids))
	for _, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			out = append(out, gatewayFromHash(fields))
		}
	}
	return out, nil
}

func gatewayFromHash(f map[string]string) *models.Gateway {
	uptime, _ := strconv.ParseInt(f["sys_uptime"], 10, 64)
	return &models.Gateway{
		GatewayID: f["gateway_id"],
		LastPing:  fromMS(f["last_ping"]),
		IsOnline:  f["is_online"] == "1",
		SysUptime: uptime,
		FirstSeen: fromMS(f["first_seen"]),
	}
}
