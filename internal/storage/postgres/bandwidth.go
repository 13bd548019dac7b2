package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"
)

const upsertBucket = `
	INSERT INTO bandwidth_stats (user_id, gateway_id, hour_start, incoming_bytes, outgoing_bytes)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, gateway_id, hour_start) DO UPDATE
	SET incoming_bytes = bandwidth_stats.incoming_bytes + EXCLUDED.incoming_bytes,
		outgoing_bytes = bandwidth_stats.outgoing_bytes + EXCLUDED.outgoing_bytes`

// BandwidthRepository applies counter reports to sessions and bandwidth_stats.
type BandwidthRepository struct {
	client *database.PostgresClient
}

func NewBandwidthRepository(client *database.PostgresClient) *BandwidthRepository {
	return &BandwidthRepository{client: client}
}

// ApplyUsage updates the session and its bucket in one transaction.
func (r *BandwidthRepository) ApplyUsage(ctx context.Context, u storage.Usage) (storage.Applied, bool, error) {
	var (
		applied storage.Applied
		active  bool
	)
	err := r.client.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if u.Cumulative {
			applied, active, err = advanceCounters(ctx, tx, u)
		} else {
			applied, active, err = addCounters(ctx, tx, u)
		}
		if err != nil || !active {
			return err
		}
		if applied.Incoming == 0 && applied.Outgoing == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, upsertBucket,
			u.UserID, u.GatewayID, models.HourOf(u.Now), applied.Incoming, applied.Outgoing,
		)
		return err
	})
	if err != nil {
		return storage.Applied{}, false, wrap("apply usage", err)
	}
	return applied, active, nil
}

func addCounters(ctx context.Context, tx *sql.Tx, u storage.Usage) (storage.Applied, bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET incoming_bytes = incoming_bytes + $2,
			outgoing_bytes = outgoing_bytes + $3,
			last_activity = GREATEST(last_activity, $4)
		WHERE id = $1 AND is_active`,
		u.SessionID, u.Incoming, u.Outgoing, u.Now.UTC(),
	)
	if err != nil {
		return storage.Applied{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return storage.Applied{}, false, err
	}
	return storage.Applied{Incoming: u.Incoming, Outgoing: u.Outgoing}, true, nil
}

// advanceCounters locks the session row so the advance is computed against the
// committed totals of any concurrent report.
func advanceCounters(ctx context.Context, tx *sql.Tx, u storage.Usage) (storage.Applied, bool, error) {
	var in, out int64
	err := tx.QueryRowContext(ctx,
		`SELECT incoming_bytes, outgoing_bytes FROM sessions WHERE id = $1 AND is_active FOR UPDATE`,
		u.SessionID,
	).Scan(&in, &out)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Applied{}, false, nil
	}
	if err != nil {
		return storage.Applied{}, false, err
	}

	applied := storage.Applied{
		Incoming: max(u.Incoming-in, 0),
		Outgoing: max(u.Outgoing-out, 0),
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE sessions
		SET incoming_bytes = $2, outgoing_bytes = $3, last_activity = GREATEST(last_activity, $4)
		WHERE id = $1`,
		u.SessionID, in+applied.Incoming, out+applied.Outgoing, u.Now.UTC(),
	)
	if err != nil {
		return storage.Applied{}, false, err
	}
	return applied, true, nil
}

func (r *BandwidthRepository) Buckets(ctx context.Context, userID, gatewayID string, since time.Time) ([]models.BandwidthBucket, error) {
	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT user_id, gateway_id, hour_start, incoming_bytes, outgoing_bytes
		FROM bandwidth_stats
		WHERE user_id = $1 AND gateway_id = $2 AND hour_start >= $3
		ORDER BY hour_start`,
		userID, gatewayID, since.UTC(),
	)
	if err != nil {
		return nil, wrap("list buckets", err)
	}
	defer rows.Close()

	var out []models.BandwidthBucket
	for rows.Next() {
		var b models.BandwidthBucket
		if err := rows.Scan(&b.UserID, &b.GatewayID, &b.HourStart, &b.IncomingBytes, &b.OutgoingBytes); err != nil {
			return nil, wrap("list buckets", err)
		}
		b.HourStart = b.HourStart.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list buckets", err)
	}
	return out, nil
}

func (r *BandwidthRepository) SumByUserPerDay(ctx context.Context, userID string, start, end time.Time) ([]models.DailyBandwidth, error) {
	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT date_trunc('day', hour_start AT TIME ZONE 'UTC') AS day,
			SUM(incoming_bytes), SUM(outgoing_bytes)
		FROM bandwidth_stats
		WHERE user_id = $1 AND hour_start >= $2 AND hour_start < $3
		GROUP BY day
		ORDER BY day`,
		userID, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, wrap("user bandwidth", err)
	}
	return collectDaily(rows, "user bandwidth")
}

func (r *BandwidthRepository) TopUsers(ctx context.Context, since time.Time, limit int) ([]models.UserBandwidth, error) {
	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT b.user_id, COALESCE(u.username, ''),
			SUM(b.incoming_bytes), SUM(b.outgoing_bytes),
			SUM(b.incoming_bytes + b.outgoing_bytes) AS total
		FROM bandwidth_stats b
		LEFT JOIN users u ON u.id::text = b.user_id
		WHERE b.hour_start >= $1
		GROUP BY b.user_id, u.username
		ORDER BY total DESC
		LIMIT $2`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, wrap("top users", err)
	}
	defer rows.Close()

	var out []models.UserBandwidth
	for rows.Next() {
		var u models.UserBandwidth
		if err := rows.Scan(&u.UserID, &u.Username, &u.IncomingBytes, &u.OutgoingBytes, &u.TotalBytes); err != nil {
			return nil, wrap("top users", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("top users", err)
	}
	return out, nil
}

func (r *BandwidthRepository) SumByGatewayPerDay(ctx context.Context, gatewayID string, since time.Time) ([]models.DailyBandwidth, error) {
	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT date_trunc('day', hour_start AT TIME ZONE 'UTC') AS day,
			SUM(incoming_bytes), SUM(outgoing_bytes)
		FROM bandwidth_stats
		WHERE gateway_id = $1 AND hour_start >= $2
		GROUP BY day
		ORDER BY day`,
		gatewayID, since.UTC(),
	)
	if err != nil {
		return nil, wrap("gateway bandwidth", err)
	}
	return collectDaily(rows, "gateway bandwidth")
}

func collectDaily(rows *sql.Rows, op string) ([]models.DailyBandwidth, error) {
	defer rows.Close()
	var out []models.DailyBandwidth
	for rows.Next() {
		var d models.DailyBandwidth
		if err := rows.Scan(&d.Day, &d.IncomingBytes, &d.OutgoingBytes); err != nil {
			return nil, wrap(op, err)
		}
		d.Day = models.DayOf(d.Day)
		d.TotalBytes = d.IncomingBytes + d.OutgoingBytes
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}
