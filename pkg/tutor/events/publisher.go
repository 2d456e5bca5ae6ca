// Package events publishes tutoring domain events. Publishing is best
// effort: failures are logged and never reach the caller.
package events

import (
	"context"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	pkgEvents "ai-tutor-be/pkg/events"
	pktNats "ai-tutor-be/pkg/nats"
)

// Publisher abstracts event publishing for the pipeline and the quiz.
type Publisher interface {
	PublishMemoryCommitted(ctx context.Context, userID, conversationID, category, pointID string)
	PublishQuizFinished(ctx context.Context, userID, conversationID string, score, total int)
}

// NatsPublisher implements Publisher on top of a bus sink. A nil sink
// turns every call into a no-op, which is how the service runs without
// NATS.
type NatsPublisher struct {
	sink   pktNats.Sink
	logger logger.ILogger
}

func NewNatsPublisher(sink pktNats.Sink, log logger.ILogger) *NatsPublisher {
	return &NatsPublisher{sink: sink, logger: log}
}

func (p *NatsPublisher) PublishMemoryCommitted(ctx context.Context, userID, conversationID, category, pointID string) {
	p.publish(ctx, pkgEvents.BaseEvent{
		Type: pkgEvents.TypeMemoryCommitted,
		Data: map[string]interface{}{
			"user_id":         userID,
			"conversation_id": conversationID,
			"category":        category,
			"point_id":        pointID,
		},
		OccurredAt: time.Now(),
	})
}

func (p *NatsPublisher) PublishQuizFinished(ctx context.Context, userID, conversationID string, score, total int) {
	p.publish(ctx, pkgEvents.BaseEvent{
		Type: pkgEvents.TypeQuizFinished,
		Data: map[string]interface{}{
			"user_id":         userID,
			"conversation_id": conversationID,
			"score":           score,
			"total":           total,
		},
		OccurredAt: time.Now(),
	})
}

func (p *NatsPublisher) publish(ctx context.Context, evt pkgEvents.BaseEvent) {
	if p == nil || p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":  evt.Type,
			"error": err.Error(),
		})
	}
}
