// internal/wifidog/gateway/config.go
package gateway

import (
	"fmt"
	"time"

	"wifidog-auth/internal/common/config"
)

type Config struct {
	// Timeout is how long after its last heartbeat a gateway counts as online.
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{Timeout: 5 * time.Minute}
}

// ConfigFrom maps the gateway section of the application config.
func ConfigFrom(cfg config.GatewayConfig) *Config {
	c := DefaultConfig()
	if cfg.Timeout > 0 {
		c.Timeout = cfg.TimeoutDuration()
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %s", c.Timeout)
	}
	return nil
}
