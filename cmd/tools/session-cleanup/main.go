// cmd/tools/session-cleanup/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"wifidog-auth/internal/bootstrap"
	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/logger"
)

type sweeper interface {
	CleanupExpired(ctx context.Context, threshold time.Duration, now time.Time) (int, error)
	ActiveSessionCount(ctx context.Context) (int64, error)
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: configs/config.yaml lookup)")
	threshold := flag.Duration("threshold", 0, "Inactivity threshold, e.g. 30m (default: session.inactivity_timeout)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.Retry{MaxAttempts: 3, InitialDelay: time.Second}, zapLog)
	if err != nil {
		zapLog.Fatal("storage unavailable", zap.Error(err))
	}
	defer store.Close()

	clk := clock.New()
	components, err := bootstrap.NewComponents(cfg, store, nil, clk, logger.NewZapAdapter(zapLog))
	if err != nil {
		zapLog.Fatal("invalid configuration", zap.Error(err))
	}

	if err := run(ctx, components.Sessions, *threshold, clk.Now(), os.Stdout); err != nil {
		zapLog.Error("session cleanup failed", zap.Error(err))
		os.Exit(1)
	}
}

// run deactivates sessions idle longer than threshold and reports what is left.
func run(ctx context.Context, sessions sweeper, threshold time.Duration, now time.Time, out io.Writer) error {
	n, err := sessions.CleanupExpired(ctx, threshold, now)
	if err != nil {
		return fmt.Errorf("cleanup stopped after %d sessions: %w", n, err)
	}

	active, err := sessions.ActiveSessionCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deactivated %d idle sessions, %d still active\n", n, active)
	return nil
}
