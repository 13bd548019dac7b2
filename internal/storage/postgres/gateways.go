package postgres

import (
	"context"
	"database/sql"
	"time"

	"wifidog-auth/internal/models"
)

// GatewayRepository stores heartbeats in the gateways table.
type GatewayRepository struct {
	db *sql.DB
}

func NewGatewayRepository(db *sql.DB) *GatewayRepository {
	return &GatewayRepository{db: db}
}

func (r *GatewayRepository) Upsert(ctx context.Context, gatewayID string, sysUptime int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gateways (gateway_id, last_ping, is_online, sys_uptime, first_seen)
		VALUES ($1, $2, TRUE, $3, $2)
		ON CONFLICT (gateway_id) DO UPDATE
		SET last_ping = EXCLUDED.last_ping, is_online = TRUE, sys_uptime = EXCLUDED.sys_uptime`,
		gatewayID, now.UTC(), sysUptime,
	)
	if err != nil {
		return wrap("upsert gateway", err)
	}
	return nil
}

func (r *GatewayRepository) Find(ctx context.Context, gatewayID string) (*models.Gateway, error) {
	var g models.Gateway
	err := r.db.QueryRowContext(ctx,
		`SELECT gateway_id, last_ping, is_online, sys_uptime, first_seen FROM gateways WHERE gateway_id = $1`,
		gatewayID,
	).Scan(&g.GatewayID, &g.LastPing, &g.IsOnline, &g.SysUptime, &g.FirstSeen)
	if err != nil {
		return nil, wrap("find gateway", err)
	}
	return &g, nil
}

func (r *GatewayRepository) List(ctx context.Context) ([]*models.Gateway, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT gateway_id, last_ping, is_online, sys_uptime, first_seen FROM gateways ORDER BY gateway_id`,
	)
	if err != nil {
		return nil, wrap("list gateways", err)
	}
	defer rows.Close()

	var out []*models.Gateway
	for rows.Next() {
		var g models.Gateway
		if err := rows.Scan(&g.GatewayID, &g.LastPing, &g.IsOnline, &g.SysUptime, &g.FirstSeen); err != nil {
			return nil, wrap("list gateways", err)
		}
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list gateways", err)
	}
	return out, nil
}
