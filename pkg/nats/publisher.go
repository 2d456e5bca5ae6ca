package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName    = "TUTOR_EVENTS"
	subjectPrefix = "events."
)

// Sink is anything that can put an event on the bus.
type Sink interface {
	Publish(ctx context.Context, event events.Event) error
}

// Publisher sends events to JetStream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ Sink = (*Publisher)(nil)

// NewPublisher connects and makes sure the events stream exists. A stream
// error is logged, not returned: the stream may already exist with a
// different config, or JetStream may still be starting.
func NewPublisher(url string, log logger.ILogger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("ai-tutor-be"),
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		log.Warn("NATS", "Failed to ensure events stream", map[string]interface{}{
			"stream": StreamName,
			"error":  err.Error(),
		})
	}

	return &Publisher{nc: nc, js: js}, nil
}

// Subject returns the subject an event is published on.
func Subject(event events.Event) string {
	return subjectPrefix + event.EventType()
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := Subject(event)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
