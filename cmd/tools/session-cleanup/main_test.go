package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/storage/redisstore"
	"wifidog-auth/internal/wifidog/session"
	"wifidog-auth/internal/wifidog/token"
)

func TestRun_DeactivatesIdleSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.New(database.NewRedisFromClient(client, "test:"))
	defer store.Close()

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	sessions := session.NewStore(session.DefaultConfig(), store.Sessions(),
		token.NewIssuer(token.DefaultConfig()), clk, logger.NewTestLogger(t))

	ctx := context.Background()
	_, err := sessions.CreateSession(ctx, "u1", "aa:bb:cc:dd:ee:01", "10.0.0.1", "GW1")
	require.NoError(t, err)
	clk.Add(2 * time.Hour)
	_, err = sessions.CreateSession(ctx, "u2", "aa:bb:cc:dd:ee:02", "10.0.0.2", "GW1")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(ctx, sessions, time.Hour, clk.Now(), &out))
	assert.Equal(t, "Deactivated 1 idle sessions, 1 still active\n", out.String())
}

func TestRun_StorageFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.New(database.NewRedisFromClient(client, "test:"))
	sessions := session.NewStore(session.DefaultConfig(), store.Sessions(),
		token.NewIssuer(token.DefaultConfig()), clock.NewMock(), logger.NewTestLogger(t))
	mr.Close()

	var out bytes.Buffer
	err := run(context.Background(), sessions, time.Hour, time.Now(), &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
