package postgres

import (
	"context"
	"database/sql"

	"wifidog-auth/internal/models"
)

// AuthLogRepository appends to auth_logs.
type AuthLogRepository struct {
	db *sql.DB
}

func NewAuthLogRepository(db *sql.DB) *AuthLogRepository {
	return &AuthLogRepository{db: db}
}

func (r *AuthLogRepository) Append(ctx context.Context, e *models.AuthLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_logs (user_id, session_id, action, result, reason, message, gateway_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		nullString(e.UserID), nullString(e.SessionID), e.Action, e.Result, e.Reason, e.Message, e.GatewayID, e.CreatedAt.UTC(),
	)
	if err != nil {
		return wrap("append auth log", err)
	}
	return nil
}
