// internal/wifidog/token/config.go
package token

import "fmt"

// MinBytes is the smallest token size accepted, 256 bits of entropy.
const MinBytes = 32

type Config struct {
	Bytes int
}

func DefaultConfig() *Config {
	return &Config{Bytes: MinBytes}
}

func (c *Config) Validate() error {
	if c.Bytes < MinBytes {
		return fmt.Errorf("token bytes must be at least %d, got %d", MinBytes, c.Bytes)
	}
	return nil
}
