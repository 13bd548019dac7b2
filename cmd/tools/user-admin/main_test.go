package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/storage/redisstore"
	"wifidog-auth/internal/users"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"add", []string{"add", "-username", "alice", "-email", "a@example.com", "-password", "longenough"}, false},
		{"add missing password", []string{"add", "-username", "alice", "-email", "a@example.com"}, true},
		{"activate", []string{"activate", "-username", "alice"}, false},
		{"deactivate missing username", []string{"deactivate"}, true},
		{"unknown", []string{"purge", "-username", "alice"}, true},
		{"unknown flag", []string{"activate", "-user", "alice"}, true},
		{"empty", nil, true},
		{"help", []string{"help"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := parseCommand(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.args[0], cmd.name)
		})
	}
}

func TestExecute_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.New(database.NewRedisFromClient(client, "test:"))
	defer store.Close()

	dir := users.NewDirectory(store.Users(), clock.NewMock(), logger.NewTestLogger(t))
	ctx := context.Background()
	var out bytes.Buffer

	add, err := parseCommand([]string{"add", "-username", "bob", "-email", "bob@example.com", "-password", "hunter2hunter2"})
	require.NoError(t, err)
	require.NoError(t, execute(ctx, add, dir, &out))
	assert.Contains(t, out.String(), "Added user bob")

	deactivate, err := parseCommand([]string{"deactivate", "-username", "bob"})
	require.NoError(t, err)
	require.NoError(t, execute(ctx, deactivate, dir, &out))

	_, err = dir.Authenticate(ctx, "bob", "hunter2hunter2")
	assert.Error(t, err)

	activate, err := parseCommand([]string{"activate", "-username", "bob"})
	require.NoError(t, err)
	require.NoError(t, execute(ctx, activate, dir, &out))

	u, err := dir.Authenticate(ctx, "bob", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)

	missing, err := parseCommand([]string{"activate", "-username", "nobody"})
	require.NoError(t, err)
	assert.Error(t, execute(ctx, missing, dir, &out))
}
