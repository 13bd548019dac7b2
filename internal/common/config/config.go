// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// Storage backends understood by database.backend.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type DatabaseConfig struct {
	Backend       string              `mapstructure:"backend"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Counter modes for gateway bandwidth reports.
const (
	CounterModeDelta      = "delta"
	CounterModeCumulative = "cumulative"
)

// SessionConfig holds session lifecycle policy.
type SessionConfig struct {
	InactivityTimeout     int    `mapstructure:"inactivity_timeout"` // seconds
	StorageTimeout        int    `mapstructure:"storage_timeout"`    // milliseconds
	CleanupInterval       int    `mapstructure:"cleanup_interval"`   // seconds, 0 disables the ticker
	StrictMACValidation   bool   `mapstructure:"strict_mac_validation"`
	AllowMultipleSessions bool   `mapstructure:"allow_multiple_sessions"`
	CounterMode           string `mapstructure:"counter_mode"`
	TokenRetries          int    `mapstructure:"token_retries"`
}

// GatewayConfig holds gateway liveness settings.
type GatewayConfig struct {
	Timeout      int `mapstructure:"timeout"`       // seconds
	PingInterval int `mapstructure:"ping_interval"` // seconds
}

// PortalConfig holds the captive portal URLs.
type PortalConfig struct {
	LoginURL   string `mapstructure:"login_url"`
	SuccessURL string `mapstructure:"success_url"`
	FailURL    string `mapstructure:"fail_url"`
	DefaultURL string `mapstructure:"default_url"`
}

// Audit sinks understood by audit.sink.
const (
	AuditSinkPostgres      = "postgres"
	AuditSinkRedis         = "redis"
	AuditSinkElasticsearch = "elasticsearch"
	AuditSinkLog           = "log"
)

// AuditConfig controls where auth log entries go.
type AuditConfig struct {
	Sink       string `mapstructure:"sink"`
	Async      bool   `mapstructure:"async"`
	BufferSize int    `mapstructure:"buffer_size"`
	DropIfFull bool   `mapstructure:"drop_if_full"`
	Index      string `mapstructure:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func (s SessionConfig) InactivityTimeoutDuration() time.Duration {
	return time.Duration(s.InactivityTimeout) * time.Second
}

func (s SessionConfig) StorageTimeoutDuration() time.Duration {
	return GetDuration(s.StorageTimeout)
}

func (s SessionConfig) CleanupIntervalDuration() time.Duration {
	return time.Duration(s.CleanupInterval) * time.Second
}

func (g GatewayConfig) TimeoutDuration() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}
