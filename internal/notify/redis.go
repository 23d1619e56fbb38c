package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"empires-server/internal/shared/redis"
)

// RedisSink publishes events to a Redis channel for out-of-process realtime
// transports. Publish errors are logged and swallowed.
type RedisSink struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisSink(client *redis.Client, channel string, logger *slog.Logger) *RedisSink {
	logger.Debug("Initializing Redis event sink", "channel", channel)

	return &RedisSink{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (s *RedisSink) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal event",
			"component", "notify_redis", "event_type", event.Type, "error", err)
		return
	}

	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn("Failed to publish event to Redis",
			"component", "notify_redis",
			"channel", s.channel,
			"event_type", event.Type,
			"error", err,
		)
	}
}
