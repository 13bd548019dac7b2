package redisstore

import (
	"context"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/models"

	"github.com/redis/go-redis/v9"
)

const defaultAuthLogMaxLen = 1_000_000

// AuthLogRepository appends entries to a capped stream.
type AuthLogRepository struct {
	client *database.RedisClient
	maxLen int64
}

// NewAuthLogRepository trims the stream to roughly maxLen entries; 0 selects the default.
func NewAuthLogRepository(client *database.RedisClient, maxLen int64) *AuthLogRepository {
	if maxLen <= 0 {
		maxLen = defaultAuthLogMaxLen
	}
	return &AuthLogRepository{client: client, maxLen: maxLen}
}

func (r *AuthLogRepository) streamKey() string { return r.client.Key("auth_logs") }

func (r *AuthLogRepository) Append(ctx context.Context, e *models.AuthLogEntry) error {
	values := map[string]interface{}{
		"action":     e.Action,
		"result":     e.Result,
		"reason":     e.Reason,
		"message":    e.Message,
		"gateway_id": e.GatewayID,
		"created_at": ms(e.CreatedAt),
	}
	if e.UserID != nil {
		values["user_id"] = *e.UserID
	}
	if e.SessionID != nil {
		values["session_id"] = *e.SessionID
	}

	err := r.client.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamKey(),
		MaxLen: r.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return wrap("append auth log", err)
	}
	return nil
}
