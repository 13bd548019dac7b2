// cmd/auth-server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"wifidog-auth/internal/bootstrap"
	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting wifidog auth server...",
		zap.String("backend", cfg.Database.Backend),
		zap.String("auditSink", cfg.Audit.Sink),
		zap.String("counterMode", cfg.Session.CounterMode),
	)

	obs := observability.New(cfg.App.Name, nil, log)
	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.DefaultRetry, zapLog)
	if err != nil {
		zapLog.Fatal("storage failed after retries", zap.Error(err))
	}
	defer store.Close()

	sink, closeAudit, err := bootstrap.AuditSink(ctx, cfg, store, log)
	if err != nil {
		zapLog.Fatal("audit sink init failed", zap.Error(err))
	}

	clk := clock.New()
	components, err := bootstrap.NewComponents(cfg, store, sink, clk, log)
	if err != nil {
		zapLog.Fatal("invalid configuration", zap.Error(err))
	}
	srv := components.Server(obs)

	// --- Idle session sweeper ---
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		runCleanup(sweepCtx, components.Sessions, clk, cfg.Session.CleanupIntervalDuration(), zapLog)
	}()

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	zapLog.Info("Shutdown signal received", zap.String("signal", received.String()))

	stopSweep()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	closeAudit()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("observability shutdown failed", zap.Error(err))
	}
	zapLog.Info("Wifidog auth server stopped")
}

type sweeper interface {
	CleanupExpired(ctx context.Context, threshold time.Duration, now time.Time) (int, error)
}

// runCleanup deactivates idle sessions every interval until ctx is done.
func runCleanup(ctx context.Context, sessions sweeper, clk clock.Clock, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		log.Info("Idle session cleanup disabled")
		return
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.CleanupExpired(ctx, 0, clk.Now())
			if err != nil {
				log.Warn("Idle session cleanup failed", zap.Error(err), zap.Int("deactivated", n))
				continue
			}
			if n > 0 {
				log.Info("Idle sessions deactivated", zap.Int("deactivated", n))
			}
		}
	}
}
