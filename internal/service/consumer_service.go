package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/observability"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/utils"
	"ai-tutor-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	referenceChunkSize    = 1500
	referenceChunkOverlap = 200
)

var referenceNamespace = uuid.MustParse("5f0c3a52-8f5e-4d1b-9d38-7a3c61b0f4e2")

type IConsumerService interface {
	Consume(ctx context.Context) error
	Ingest(ctx context.Context, payload *dto.PublishIngestReferenceMessage) (int, error)
}

type consumerService struct {
	subscriber        message.Subscriber
	topicName         string
	collection        string
	store             vectorstore.Store
	bootstrap         *vectorstore.Bootstrapper
	embeddingProvider embedding.EmbeddingProvider
	metrics           *observability.Metrics
	logger            logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	collection string,
	store vectorstore.Store,
	bootstrap *vectorstore.Bootstrapper,
	embeddingProvider embedding.EmbeddingProvider,
	metrics *observability.Metrics,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:        subscriber,
		topicName:         topicName,
		collection:        collection,
		store:             store,
		bootstrap:         bootstrap,
		embeddingProvider: embeddingProvider,
		metrics:           metrics,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: chunk ids are deterministic, so a failed
// document is fixed by ingesting it again rather than by redelivery.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.PublishIngestReferenceMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("INGEST", "Failed to unmarshal message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	chunks, err := cs.Ingest(ctx, &payload)
	if err != nil {
		cs.logger.Error("INGEST", "Reference ingestion failed", map[string]interface{}{
			"reference_id": payload.ReferenceId,
			"lesson_index": payload.LessonIndex,
			"error":        err.Error(),
		})
		return
	}
	cs.logger.Info("INGEST", "Reference ingested", map[string]interface{}{
		"reference_id": payload.ReferenceId,
		"lesson_index": payload.LessonIndex,
		"chunks":       chunks,
	})
}

// Ingest splits, embeds and stores one reference document and returns the
// number of chunks written.
func (cs *consumerService) Ingest(ctx context.Context, payload *dto.PublishIngestReferenceMessage) (int, error) {
	chunks := utils.SplitText(payload.Content, referenceChunkSize, referenceChunkOverlap)

	points := make([]vectorstore.Point, 0, len(chunks))
	for i, chunk := range chunks {
		res, err := cs.embeddingProvider.Generate(ctx, chunk, embedding.TaskRetrievalDocument)
		if err != nil {
			cs.metrics.CountReferenceChunk("failed")
			return 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		points = append(points, vectorstore.Point{
			ID:     uuid.NewSHA1(referenceNamespace, []byte(fmt.Sprintf("%s/%d", payload.ReferenceId, i))).String(),
			Vector: res.Embedding.Values,
			Payload: map[string]interface{}{
				"reference_id": payload.ReferenceId,
				"lesson_index": payload.LessonIndex,
				"title":        payload.Title,
				"text":         chunk,
				"chunk_index":  i,
			},
		})
	}
	if len(points) == 0 {
		return 0, nil
	}

	if err := cs.bootstrap.Ensure(ctx, cs.collection, len(points[0].Vector)); err != nil {
		cs.metrics.CountReferenceChunk("failed")
		return 0, err
	}
	if err := cs.store.Upsert(ctx, cs.collection, points); err != nil {
		cs.metrics.CountReferenceChunk("failed")
		return 0, fmt.Errorf("upsert reference chunks: %w", err)
	}

	for range points {
		cs.metrics.CountReferenceChunk("stored")
	}
	return len(points), nil
}
