package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  backend: redis
  redis:
    address: localhost:6379
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wifidog-auth", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, BackendRedis, cfg.Database.Backend)
	assert.Equal(t, "wifidog:", cfg.Database.Redis.KeyPrefix)
	assert.Equal(t, AuditSinkRedis, cfg.Audit.Sink)
	assert.Equal(t, CounterModeDelta, cfg.Session.CounterMode)
	assert.Equal(t, 30*time.Minute, cfg.Session.InactivityTimeoutDuration())
	assert.Equal(t, 2*time.Second, cfg.Session.StorageTimeoutDuration())
	assert.Equal(t, 5*time.Minute, cfg.Gateway.TimeoutDuration())
	assert.Equal(t, "http://google.com", cfg.Portal.DefaultURL)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("WIFIDOG_TEST_PG_HOST", "db.internal")
	path := writeConfig(t, `
database:
  backend: postgres
  postgres:
    host: ${WIFIDOG_TEST_PG_HOST}
    database: wifidog
    user: wifidog
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal")
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "sslmode=disable")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  backend: postgres\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "unknown backend",
			body:    "database:\n  backend: mysql\n",
			wantErr: "database.backend must be",
		},
		{
			name: "bad counter mode",
			body: "database:\n  backend: redis\n  redis:\n    address: x:1\nsession:\n  counter_mode: absolute\n",
			wantErr: "session.counter_mode",
		},
		{
			name: "postgres audit sink on redis backend",
			body: "database:\n  backend: redis\n  redis:\n    address: x:1\naudit:\n  sink: postgres\n",
			wantErr: "audit.sink postgres requires",
		},
		{
			name: "elasticsearch sink without addresses",
			body: "database:\n  backend: redis\n  redis:\n    address: x:1\naudit:\n  sink: elasticsearch\n",
			wantErr: "database.elasticsearch.addresses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
