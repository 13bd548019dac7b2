package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"
)

const sessionColumns = `id, token, user_id, mac_address, ip_address, gateway_id, is_active,
	incoming_bytes, outgoing_bytes, session_start, last_activity, session_end`

// SessionRepository stores sessions in the sessions table.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Insert(ctx context.Context, s *models.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, user_id, mac_address, ip_address, gateway_id,
			is_active, incoming_bytes, outgoing_bytes, session_start, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, 0, 0, $7, $7)`,
		s.ID, s.Token, s.UserID, s.MACAddress, s.IPAddress, s.GatewayID, s.SessionStart.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: insert session", storage.ErrDuplicateToken)
		}
		return wrap("insert session", err)
	}
	return nil
}

func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
	s, err := scanSession(row)
	if err != nil {
		return nil, wrap("find session by token", err)
	}
	return s, nil
}

func (r *SessionRepository) Touch(ctx context.Context, sessionID, ip, mac string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET last_activity = GREATEST(last_activity, $2),
			ip_address = COALESCE(NULLIF($3, ''), ip_address),
			mac_address = COALESCE(NULLIF($4, ''), mac_address)
		WHERE id = $1 AND is_active`,
		sessionID, now.UTC(), ip, mac,
	)
	if err != nil {
		return false, wrap("touch session", err)
	}
	return affected(res, "touch session")
}

func (r *SessionRepository) DeactivateByToken(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE, session_end = $2
		WHERE token = $1 AND is_active`,
		token, now.UTC(),
	)
	if err != nil {
		return false, wrap("deactivate session", err)
	}
	return affected(res, "deactivate session")
}

// DeactivateIdle is a single conditional UPDATE; Postgres re-evaluates the WHERE
// clause against the latest row version for rows touched concurrently.
func (r *SessionRepository) DeactivateIdle(ctx context.Context, cutoff, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE, session_end = $2
		WHERE is_active AND last_activity < $1`,
		cutoff.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, wrap("deactivate idle sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("deactivate idle sessions", err)
	}
	return int(n), nil
}

func (r *SessionRepository) CountActiveByMAC(ctx context.Context, mac string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE mac_address = $1 AND is_active`, mac,
	).Scan(&n)
	if err != nil {
		return 0, wrap("count active sessions by mac", err)
	}
	return n, nil
}

func (r *SessionRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE is_active`).Scan(&n); err != nil {
		return 0, wrap("count active sessions", err)
	}
	return n, nil
}

func (r *SessionRepository) ListActive(ctx context.Context, limit int) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE is_active ORDER BY last_activity DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, wrap("list active sessions", err)
	}
	return collectSessions(rows, "list active sessions")
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY session_start DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, wrap("list user sessions", err)
	}
	return collectSessions(rows, "list user sessions")
}

func (r *SessionRepository) Statistics(ctx context.Context) (*models.SessionStatistics, error) {
	var (
		stats      models.SessionStatistics
		avgSeconds float64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COALESCE(SUM(incoming_bytes), 0),
			COALESCE(SUM(outgoing_bytes), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (session_end - session_start))) FILTER (WHERE session_end IS NOT NULL), 0)
		FROM sessions`,
	).Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.TotalIncomingBytes, &stats.TotalOutgoingBytes, &avgSeconds)
	if err != nil {
		return nil, wrap("session statistics", err)
	}
	stats.AverageDuration = time.Duration(avgSeconds * float64(time.Second))
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s   models.Session
		end sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Token, &s.UserID, &s.MACAddress, &s.IPAddress, &s.GatewayID, &s.IsActive,
		&s.IncomingBytes, &s.OutgoingBytes, &s.SessionStart, &s.LastActivity, &end,
	)
	if err != nil {
		return nil, err
	}
	if end.Valid {
		t := end.Time
		s.SessionEnd = &t
	}
	return &s, nil
}

func collectSessions(rows *sql.Rows, op string) ([]*models.Session, error) {
	defer rows.Close()
	var out []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(op, err)
	}
	return n > 0, nil
}
