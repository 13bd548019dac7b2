// internal/wifidog/bandwidth/accumulator.go
package bandwidth

import (
	"context"
	"time"

	"wifidog-auth/internal/common/config"
	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/metrics"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"
)

// Accumulator applies gateway counter reports to sessions and to the hourly
// per-user, per-gateway buckets.
type Accumulator struct {
	config *Config
	repo   storage.BandwidthRepository
	logger logger.Logger
}

func NewAccumulator(config *Config, repo storage.BandwidthRepository, log logger.Logger) *Accumulator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Accumulator{
		config: config,
		repo:   repo,
		logger: log.WithFields(map[string]interface{}{"component": "bandwidth"}),
	}
}

// RecordUsage adds incoming/outgoing to the session and to the bucket for
// hour(now) in one atomic storage operation. Negative values are rejected and
// 0/0 is a no-op. It fails with INVALID_OR_INACTIVE_SESSION when the session
// is no longer active; nothing is applied in that case.
func (a *Accumulator) RecordUsage(ctx context.Context, sessionID, userID, gatewayID string, incoming, outgoing int64, now time.Time) error {
	if incoming < 0 || outgoing < 0 {
		return apperrors.NewInvalidBandwidthDeltaError(incoming, outgoing)
	}
	if incoming == 0 && outgoing == 0 {
		return nil
	}

	applied, active, err := a.repo.ApplyUsage(ctx, storage.Usage{
		SessionID:  sessionID,
		UserID:     userID,
		GatewayID:  gatewayID,
		Incoming:   incoming,
		Outgoing:   outgoing,
		Cumulative: a.config.CounterMode == config.CounterModeCumulative,
		Now:        now,
	})
	if err != nil {
		metrics.StorageErrors.WithLabelValues("apply_usage").Inc()
		return apperrors.NewStorageUnavailableError("apply_usage", err)
	}
	if !active {
		return apperrors.NewInvalidOrInactiveSessionError("session " + sessionID + " is not active")
	}

	metrics.BandwidthBytes.WithLabelValues("incoming").Add(float64(applied.Incoming))
	metrics.BandwidthBytes.WithLabelValues("outgoing").Add(float64(applied.Outgoing))

	a.logger.Debug("Usage recorded", map[string]interface{}{
		"sessionId":       sessionID,
		"gatewayId":       gatewayID,
		"reportedIn":      incoming,
		"reportedOut":     outgoing,
		"appliedIn":       applied.Incoming,
		"appliedOut":      applied.Outgoing,
		"counterMode":     a.config.CounterMode,
		"bucketHourStart": models.HourOf(now),
	})
	return nil
}

// GetUserBandwidth returns per-day totals for userID between the days of
// start and end, both inclusive.
func (a *Accumulator) GetUserBandwidth(ctx context.Context, userID string, start, end time.Time) ([]models.DailyBandwidth, error) {
	if end.Before(start) {
		return nil, apperrors.NewInvalidRequestError("end before start")
	}
	days, err := a.repo.SumByUserPerDay(ctx, userID, models.DayOf(start), models.DayOf(end).AddDate(0, 0, 1))
	if err != nil {
		metrics.StorageErrors.WithLabelValues("user_bandwidth").Inc()
		return nil, apperrors.NewStorageUnavailableError("user_bandwidth", err)
	}
	return days, nil
}

// GetTopUsers ranks users by total bytes over the last days days.
func (a *Accumulator) GetTopUsers(ctx context.Context, limit, days int, now time.Time) ([]models.UserBandwidth, error) {
	if limit <= 0 {
		limit = 10
	}
	users, err := a.repo.TopUsers(ctx, a.since(days, now), limit)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("top_users").Inc()
		return nil, apperrors.NewStorageUnavailableError("top_users", err)
	}
	return users, nil
}

// GetGatewayBandwidth returns per-day totals through gatewayID over the last days days.
func (a *Accumulator) GetGatewayBandwidth(ctx context.Context, gatewayID string, days int, now time.Time) ([]models.DailyBandwidth, error) {
	out, err := a.repo.SumByGatewayPerDay(ctx, gatewayID, a.since(days, now))
	if err != nil {
		metrics.StorageErrors.WithLabelValues("gateway_bandwidth").Inc()
		return nil, apperrors.NewStorageUnavailableError("gateway_bandwidth", err)
	}
	return out, nil
}

// since is midnight of the first day of a window of days days ending today.
func (a *Accumulator) since(days int, now time.Time) time.Time {
	if days <= 0 {
		days = 1
	}
	if days > a.config.MaxReportDays {
		days = a.config.MaxReportDays
	}
	return models.DayOf(now).AddDate(0, 0, -(days - 1))
}
