package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event types emitted by the engine.
const (
	EventItemQueued    = "queue:item_queued"
	EventItemScheduled = "queue:item_scheduled"
	EventItemCompleted = "queue:item_completed"
	EventItemCancelled = "queue:item_cancelled"
	EventFleetUpdated  = "fleet:updated"
)

// Event is a fire-and-forget notification for realtime transports. The engine
// never requires acknowledgment and never fails an operation over delivery.
type Event struct {
	Type      string         `json:"type"`
	EmpireID  int            `json:"empire_id"`
	BaseCoord string         `json:"base_coord,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}

// Sink consumes events. Implementations must be non-blocking from the
// caller's perspective and swallow their own delivery failures.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// LogSink writes events to the log. It is the fallback when no realtime
// transport is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event Event) {
	s.logger.Debug("Event published",
		"component", "notify",
		"event_type", event.Type,
		"empire_id", event.EmpireID,
		"base", event.BaseCoord,
	)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (s MultiSink) Publish(ctx context.Context, event Event) {
	for _, sink := range s {
		sink.Publish(ctx, event)
	}
}
