package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one event. A returned error makes the message
// redeliver.
type EventHandler func(ctx context.Context, event events.BaseEvent) error

// Subscriber reads events from the events stream with durable consumers.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	nc, err := nats.Connect(url,
		nats.Name("ai-tutor-be-subscriber"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Subscriber{nc: nc, js: js, logger: log}, nil
}

// DecodeEvent rebuilds an event from its subject and JSON payload.
func DecodeEvent(subject string, data []byte) (events.BaseEvent, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return events.BaseEvent{}, fmt.Errorf("decode event payload: %w", err)
	}

	occurredAt := time.Now()
	if raw, ok := payload["occurred_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			occurredAt = t
		}
		delete(payload, "occurred_at")
	}

	return events.BaseEvent{
		Type:       strings.TrimPrefix(subject, subjectPrefix),
		Data:       payload,
		OccurredAt: occurredAt,
	}, nil
}

// Subscribe consumes subjects matching filter (e.g. "events.>") until ctx
// is done. An empty durable name creates an ephemeral consumer.
func (s *Subscriber) Subscribe(ctx context.Context, filter string, durable string, handler EventHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: filter,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := DecodeEvent(msg.Subject(), msg.Data())
		if err != nil {
			s.logger.Error("NATS", "Dropping undecodable event", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			_ = msg.Term()
			return
		}

		if err := handler(ctx, event); err != nil {
			s.logger.Warn("NATS", "Event handler failed, redelivering", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Stop()
	}()
	return nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
