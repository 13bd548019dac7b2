// internal/wifidog/gateway/registry.go
package gateway

import (
	"context"
	"errors"
	"time"

	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/metrics"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"
)

// Registry tracks gateway liveness from their heartbeats.
type Registry struct {
	config *Config
	repo   storage.GatewayRepository
	logger logger.Logger
}

func NewRegistry(config *Config, repo storage.GatewayRepository, log logger.Logger) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	return &Registry{
		config: config,
		repo:   repo,
		logger: log.WithFields(map[string]interface{}{"component": "gateway-registry"}),
	}
}

// Heartbeat records a ping. Concurrent heartbeats for the same gateway are
// applied last-write-wins.
func (r *Registry) Heartbeat(ctx context.Context, gatewayID string, sysUptime int64, now time.Time) error {
	if err := r.repo.Upsert(ctx, gatewayID, sysUptime, now); err != nil {
		metrics.GatewayHeartbeats.WithLabelValues("error").Inc()
		metrics.StorageErrors.WithLabelValues("gateway_upsert").Inc()
		return apperrors.NewStorageUnavailableError("gateway_upsert", err)
	}

	metrics.GatewayHeartbeats.WithLabelValues("ok").Inc()
	r.logger.Debug("Gateway heartbeat", map[string]interface{}{
		"gatewayId": gatewayID,
		"sysUptime": sysUptime,
	})
	return nil
}

// IsOnline reports whether gatewayID has pinged within timeout of now. An
// unknown gateway is offline. A non-positive timeout uses the configured one.
func (r *Registry) IsOnline(ctx context.Context, gatewayID string, now time.Time, timeout time.Duration) (bool, error) {
	gw, err := r.Get(ctx, gatewayID)
	if err != nil {
		return false, err
	}
	if gw == nil {
		return false, nil
	}
	return gw.OnlineAt(now, r.timeout(timeout)), nil
}

// Get returns the stored gateway, or nil if it never pinged.
func (r *Registry) Get(ctx context.Context, gatewayID string) (*models.Gateway, error) {
	gw, err := r.repo.Find(ctx, gatewayID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		metrics.StorageErrors.WithLabelValues("gateway_find").Inc()
		return nil, apperrors.NewStorageUnavailableError("gateway_find", err)
	}
	return gw, nil
}

// List returns every known gateway with IsOnline derived at now.
func (r *Registry) List(ctx context.Context, now time.Time, timeout time.Duration) ([]*models.Gateway, error) {
	gateways, err := r.repo.List(ctx)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("gateway_list").Inc()
		return nil, apperrors.NewStorageUnavailableError("gateway_list", err)
	}

	timeout = r.timeout(timeout)
	for _, gw := range gateways {
		gw.IsOnline = gw.OnlineAt(now, timeout)
	}
	return gateways, nil
}

func (r *Registry) timeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return r.config.Timeout
}
