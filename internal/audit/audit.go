// Package audit delivers auth log entries to their configured destination.
package audit

import (
	"context"

	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/models"
)

// Sink accepts append-only auth log entries.
type Sink interface {
	Append(ctx context.Context, entry *models.AuthLogEntry) error
}

// NoOpSink discards entries.
type NoOpSink struct{}

func (NoOpSink) Append(context.Context, *models.AuthLogEntry) error { return nil }

// LogSink writes entries to the structured logger.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Append(_ context.Context, e *models.AuthLogEntry) error {
	s.logger.Info("auth log", Fields(e))
	return nil
}

// Fields flattens an entry for structured logging.
func Fields(e *models.AuthLogEntry) map[string]interface{} {
	fields := map[string]interface{}{
		"action":    e.Action,
		"result":    e.Result,
		"message":   e.Message,
		"createdAt": e.CreatedAt,
	}
	if e.Reason != "" {
		fields["reason"] = e.Reason
	}
	if e.GatewayID != "" {
		fields["gatewayId"] = e.GatewayID
	}
	if e.UserID != nil {
		fields["userId"] = *e.UserID
	}
	if e.SessionID != nil {
		fields["sessionId"] = *e.SessionID
	}
	return fields
}
