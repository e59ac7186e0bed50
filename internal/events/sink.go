// Package events carries catalog domain events to external subscribers.
// The engine only defines the contract of what is emitted and when; sinks
// decide the transport.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"pricebook/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink receives domain events at defined write points. Implementations must
// tolerate being called concurrently.
type Sink interface {
	Publish(ctx context.Context, event domain.Event) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(ctx context.Context, event domain.Event) error { return nil }

// LogSink writes events to the structured log. It is the default sink when
// no broker is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, event domain.Event) error {
	s.logger.Info("Domain event",
		zap.String("event", event.EventName()),
		zap.Any("payload", event),
	)
	return nil
}

// RedisSink publishes events as JSON on a redis pub/sub channel per event
// name, e.g. "catalog.events.price_changed".
type RedisSink struct {
	client *redis.Client
	prefix string
}

func NewRedisSink(client *redis.Client, channelPrefix string) *RedisSink {
	return &RedisSink{client: client, prefix: channelPrefix}
}

func (s *RedisSink) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventName(), err)
	}

	channel := s.prefix + "." + event.EventName()
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventName(), err)
	}
	return nil
}

// FanoutSink forwards each event to every underlying sink, returning the
// first error after all sinks have been attempted.
type FanoutSink []Sink

func (f FanoutSink) Publish(ctx context.Context, event domain.Event) error {
	var firstErr error
	for _, s := range f {
		if err := s.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
