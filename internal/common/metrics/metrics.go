// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProtocolRequests counts gateway and portal requests by kind and outcome.
	ProtocolRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifidog_protocol_requests_total",
			Help: "Total number of protocol requests by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// AuthDenials counts denied auth requests by reason code.
	AuthDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifidog_auth_denials_total",
			Help: "Total number of denied auth requests by reason",
		},
		[]string{"reason"},
	)

	ProtocolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wifidog_protocol_duration_seconds",
			Help:    "Duration of protocol request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifidog_storage_errors_total",
			Help: "Total number of failed storage operations",
		},
		[]string{"operation"},
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wifidog_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifidog_sessions_terminated_total",
			Help: "Total number of sessions deactivated by cause",
		},
		[]string{"cause"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wifidog_sessions_active",
			Help: "Number of active sessions observed at the last health check",
		},
	)

	GatewayHeartbeats = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifidog_gateway_heartbeats_total",
			Help: "Total number of gateway heartbeats by outcome",
		},
		[]string{"outcome"},
	)

	BandwidthBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifidog_bandwidth_bytes_total",
			Help: "Total number of bytes accounted to sessions",
		},
		[]string{"direction"},
	)

	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wifidog_audit_dropped_total",
			Help: "Total number of auth log entries dropped by the async dispatcher",
		},
	)
)
