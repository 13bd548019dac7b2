// internal/wifidog/session/config.go
package session

import (
	"fmt"
	"time"

	"wifidog-auth/internal/common/config"
)

type Config struct {
	InactivityTimeout     time.Duration
	StrictMACValidation   bool
	AllowMultipleSessions bool
	// TokenRetries bounds how often CreateSession redraws a token that hit the uniqueness constraint.
	TokenRetries int
	ListLimit    int
}

func DefaultConfig() *Config {
	return &Config{
		InactivityTimeout:     time.Hour,
		StrictMACValidation:   true,
		AllowMultipleSessions: true,
		TokenRetries:          3,
		ListLimit:             100,
	}
}

// ConfigFrom maps the session section of the application config.
func ConfigFrom(cfg config.SessionConfig) *Config {
	c := DefaultConfig()
	if cfg.InactivityTimeout > 0 {
		c.InactivityTimeout = cfg.InactivityTimeoutDuration()
	}
	if cfg.TokenRetries > 0 {
		c.TokenRetries = cfg.TokenRetries
	}
	c.StrictMACValidation = cfg.StrictMACValidation
	c.AllowMultipleSessions = cfg.AllowMultipleSessions
	return c
}

func (c *Config) Validate() error {
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity timeout must be positive, got %s", c.InactivityTimeout)
	}
	if c.TokenRetries < 1 {
		return fmt.Errorf("token retries must be at least 1, got %d", c.TokenRetries)
	}
	return nil
}
