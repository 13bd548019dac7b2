// internal/wifidog/protocol/config.go
package protocol

import (
	"fmt"
	"time"

	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/validation"
)

type Config struct {
	// StorageTimeout bounds every storage call made while serving one request.
	StorageTimeout time.Duration
	LoginURL       string
	SuccessURL     string
	DefaultURL     string
}

func DefaultConfig() *Config {
	return &Config{
		StorageTimeout: 2 * time.Second,
		LoginURL:       "http://localhost:8080/portal/login",
		SuccessURL:     "http://google.com",
		DefaultURL:     "http://google.com",
	}
}

// ConfigFrom maps the session and portal sections of the application config.
func ConfigFrom(session config.SessionConfig, portal config.PortalConfig) *Config {
	c := DefaultConfig()
	if session.StorageTimeout > 0 {
		c.StorageTimeout = session.StorageTimeoutDuration()
	}
	if portal.LoginURL != "" {
		c.LoginURL = portal.LoginURL
	}
	if portal.SuccessURL != "" {
		c.SuccessURL = portal.SuccessURL
	}
	if portal.DefaultURL != "" {
		c.DefaultURL = portal.DefaultURL
	}
	return c
}

func (c *Config) Validate() error {
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage timeout must be positive, got %s", c.StorageTimeout)
	}
	for name, u := range map[string]string{
		"login url":   c.LoginURL,
		"success url": c.SuccessURL,
		"default url": c.DefaultURL,
	} {
		if !validation.ValidateURL(u) {
			return fmt.Errorf("%s %q is not an absolute http(s) url", name, u)
		}
	}
	return nil
}
