// internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"wifidog-auth/internal/audit"
	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/storage"
	"wifidog-auth/internal/storage/postgres"
	"wifidog-auth/internal/storage/redisstore"

	"go.uber.org/zap"
)

// Retry controls connection attempts made at startup.
type Retry struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

var DefaultRetry = Retry{MaxAttempts: 15, InitialDelay: 2 * time.Second}

// RetryWithBackoff attempts operation with exponential backoff.
func RetryWithBackoff(operation func() error, retry Retry, log *zap.Logger, operationName string) error {
	var err error
	delay := retry.InitialDelay

	for i := 0; i < retry.MaxAttempts; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < retry.MaxAttempts-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", retry.MaxAttempts),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, retry.MaxAttempts, err)
}

// OpenStore connects the configured backend, migrating the Postgres schema
// when auto_migrate is set.
func OpenStore(ctx context.Context, cfg *config.Config, retry Retry, log *zap.Logger) (storage.Store, error) {
	switch cfg.Database.Backend {
	case config.BackendPostgres:
		var pg *database.PostgresClient
		err := RetryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, retry, log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		log.Info("PostgreSQL connected successfully")

		store := postgres.New(pg)
		if cfg.Database.Postgres.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				pg.Close()
				return nil, fmt.Errorf("migrate schema: %w", err)
			}
			log.Info("PostgreSQL schema migrated")
		}
		return store, nil

	case config.BackendRedis:
		var rc *database.RedisClient
		err := RetryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, retry, log, "Redis connection")
		if err != nil {
			return nil, err
		}
		log.Info("Redis connected successfully")
		return redisstore.New(rc), nil
	}

	return nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
}

// AuditSink builds the configured audit destination. The returned close
// function drains an async dispatcher and is never nil.
func AuditSink(ctx context.Context, cfg *config.Config, store storage.Store, log logger.Logger) (audit.Sink, func(), error) {
	var sink audit.Sink
	switch cfg.Audit.Sink {
	case config.AuditSinkPostgres, config.AuditSinkRedis:
		sink = store.AuthLogs()
	case config.AuditSinkElasticsearch:
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		esSink := audit.NewElasticsearchSink(es, cfg.Audit.Index)
		if err := esSink.EnsureIndex(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure audit index: %w", err)
		}
		sink = esSink
	case config.AuditSinkLog:
		sink = audit.NewLogSink(log.WithFields(map[string]interface{}{"component": "audit"}))
	default:
		return nil, nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}

	if !cfg.Audit.Async {
		return sink, func() {}, nil
	}

	d := audit.NewDispatcher(audit.Config{
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink, log)
	return d, d.Close, nil
}
