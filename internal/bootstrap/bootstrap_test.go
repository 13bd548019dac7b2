package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wifidog-auth/internal/audit"
	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fastRetry = Retry{MaxAttempts: 2, InitialDelay: time.Millisecond}

func redisConfig(addr string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Backend: config.BackendRedis,
			Redis:   config.RedisConfig{Address: addr, KeyPrefix: "test:"},
		},
		Audit: config.AuditConfig{Sink: config.AuditSinkRedis, BufferSize: 8},
	}
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, Retry{MaxAttempts: 3, InitialDelay: time.Millisecond}, zaptest.NewLogger(t), "op")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = RetryWithBackoff(func() error { return errors.New("down") }, fastRetry, zaptest.NewLogger(t), "op")
	assert.ErrorContains(t, err, "op failed after 2 attempts")
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := OpenStore(context.Background(), redisConfig(mr.Addr()), fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenStore_Failures(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenStore(context.Background(), redisConfig(addr), fastRetry, zaptest.NewLogger(t))
	assert.Error(t, err)

	cfg := redisConfig(addr)
	cfg.Database.Backend = "sqlite"
	_, err = OpenStore(context.Background(), cfg, fastRetry, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unknown database backend")
}

func TestAuditSink_Selection(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(mr.Addr())
	store, err := OpenStore(context.Background(), cfg, fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()
	log := logger.NewTestLogger(t)

	sink, closeFn, err := AuditSink(context.Background(), cfg, store, log)
	require.NoError(t, err)
	closeFn()
	assert.Equal(t, store.AuthLogs(), sink)

	cfg.Audit.Sink = config.AuditSinkLog
	sink, closeFn, err = AuditSink(context.Background(), cfg, store, log)
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &audit.LogSink{}, sink)

	cfg.Audit.Sink = config.AuditSinkRedis
	cfg.Audit.Async = true
	sink, closeFn, err = AuditSink(context.Background(), cfg, store, log)
	require.NoError(t, err)
	require.IsType(t, &audit.Dispatcher{}, sink)
	require.NoError(t, sink.Append(context.Background(), &models.AuthLogEntry{Action: models.ActionPing, Result: models.ResultSuccess}))
	closeFn()

	entries, err := mr.Stream("test:auth_logs")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	cfg.Audit.Sink = "kafka"
	_, _, err = AuditSink(context.Background(), cfg, store, log)
	assert.Error(t, err)
}

func TestAuditSink_Elasticsearch(t *testing.T) {
	created := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	cfg := &config.Config{
		Database: config.DatabaseConfig{Elasticsearch: config.ElasticsearchConfig{URL: srv.URL}},
		Audit:    config.AuditConfig{Sink: config.AuditSinkElasticsearch, Index: "auth-logs"},
	}
	sink, closeFn, err := AuditSink(context.Background(), cfg, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	closeFn()

	assert.True(t, created)
	assert.IsType(t, &audit.ElasticsearchSink{}, sink)
}

func TestNewComponents(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(mr.Addr())
	cfg.Session = config.SessionConfig{InactivityTimeout: 1800, StorageTimeout: 2000, CounterMode: config.CounterModeDelta, TokenRetries: 3}
	cfg.Gateway = config.GatewayConfig{Timeout: 300}
	store, err := OpenStore(context.Background(), cfg, fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	c, err := NewComponents(cfg, store, nil, clock.NewMock(), logger.NewTestLogger(t))
	require.NoError(t, err)
	require.NotNil(t, c.Server(nil))

	res := c.Protocol.Handle(context.Background(), "ping", map[string]string{"gw_id": "GW1"})
	assert.Equal(t, "Pong", res.Body)

	cfg.Portal.LoginURL = "not a url"
	_, err = NewComponents(cfg, store, nil, nil, logger.NewTestLogger(t))
	assert.ErrorContains(t, err, "portal config")

	cfg.Portal.LoginURL = ""
	cfg.Session.CounterMode = "absolute"
	_, err = NewComponents(cfg, store, nil, nil, logger.NewTestLogger(t))
	assert.ErrorContains(t, err, "bandwidth config")
}
