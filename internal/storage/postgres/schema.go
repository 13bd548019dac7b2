package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		last_login    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id             UUID PRIMARY KEY,
		token          TEXT NOT NULL UNIQUE,
		user_id        TEXT NOT NULL,
		mac_address    TEXT NOT NULL,
		ip_address     TEXT NOT NULL,
		gateway_id     TEXT NOT NULL,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		incoming_bytes BIGINT NOT NULL DEFAULT 0 CHECK (incoming_bytes >= 0),
		outgoing_bytes BIGINT NOT NULL DEFAULT 0 CHECK (outgoing_bytes >= 0),
		session_start  TIMESTAMPTZ NOT NULL,
		last_activity  TIMESTAMPTZ NOT NULL,
		session_end    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_active_last_activity ON sessions (last_activity) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_active_mac ON sessions (mac_address) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_start ON sessions (user_id, session_start DESC)`,
	`CREATE TABLE IF NOT EXISTS gateways (
		gateway_id TEXT PRIMARY KEY,
		last_ping  TIMESTAMPTZ NOT NULL,
		is_online  BOOLEAN NOT NULL DEFAULT TRUE,
		sys_uptime BIGINT NOT NULL DEFAULT 0,
		first_seen TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bandwidth_stats (
		user_id        TEXT NOT NULL,
		gateway_id     TEXT NOT NULL,
		hour_start     TIMESTAMPTZ NOT NULL,
		incoming_bytes BIGINT NOT NULL DEFAULT 0,
		outgoing_bytes BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, gateway_id, hour_start)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bandwidth_stats_hour ON bandwidth_stats (hour_start)`,
	`CREATE INDEX IF NOT EXISTS idx_bandwidth_stats_gateway_hour ON bandwidth_stats (gateway_id, hour_start)`,
	`CREATE TABLE IF NOT EXISTS auth_logs (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT,
		session_id TEXT,
		action     TEXT NOT NULL,
		result     TEXT NOT NULL,
		reason     TEXT NOT NULL DEFAULT '',
		message    TEXT NOT NULL DEFAULT '',
		gateway_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_logs_created_at ON auth_logs (created_at)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
