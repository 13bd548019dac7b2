// internal/wifidog/bandwidth/config.go
package bandwidth

import (
	"fmt"

	"wifidog-auth/internal/common/config"
)

type Config struct {
	// CounterMode is config.CounterModeDelta or config.CounterModeCumulative.
	CounterMode string
	// MaxReportDays caps the window of the read-side reports.
	MaxReportDays int
}

func DefaultConfig() *Config {
	return &Config{
		CounterMode:   config.CounterModeDelta,
		MaxReportDays: 365,
	}
}

// ConfigFrom maps the session section of the application config.
func ConfigFrom(cfg config.SessionConfig) *Config {
	c := DefaultConfig()
	if cfg.CounterMode != "" {
		c.CounterMode = cfg.CounterMode
	}
	return c
}

func (c *Config) Validate() error {
	switch c.CounterMode {
	case config.CounterModeDelta, config.CounterModeCumulative:
	default:
		return fmt.Errorf("unknown counter mode %q", c.CounterMode)
	}
	if c.MaxReportDays <= 0 {
		return fmt.Errorf("max report days must be positive, got %d", c.MaxReportDays)
	}
	return nil
}
