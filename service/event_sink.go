package service

import (
	"context"
	"log/slog"

	"no3d-library-api/models"
	"no3d-library-api/obs"
)

// EventSinkInterface receives billing lifecycle events. No local subscription store
// exists, so the default sink only records them; a store could be plugged in here
// without touching the webhook flow.
type EventSinkInterface interface {
	Record(ctx context.Context, event models.LifecycleEvent) error
}

// LogEventSink writes lifecycle events as structured log entries
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates a new LogEventSink; a nil logger uses obs.Logger
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	return &LogEventSink{logger: logger}
}

// Ensure LogEventSink implements EventSinkInterface
var _ EventSinkInterface = (*LogEventSink)(nil)

// Record logs the event
func (s *LogEventSink) Record(ctx context.Context, event models.LifecycleEvent) error {
	logger := s.logger
	if logger == nil {
		logger = obs.Logger
	}
	level := slog.LevelInfo
	if event.Type == models.EventUnknown {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "billing_event",
		slog.String("type", string(event.Type)),
		slog.String("event_id", event.EventID),
		slog.String("subscription_id", event.SubscriptionID),
		slog.String("customer_id", event.CustomerID),
		slog.String("product_id", event.ProductID),
		slog.String("status", event.Status),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
