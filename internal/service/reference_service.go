package service

import (
	"context"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"

	"github.com/google/uuid"
)

type IReferenceService interface {
	Ingest(ctx context.Context, req *dto.IngestReferenceRequest) (*dto.IngestReferenceResponse, error)
}

type referenceService struct {
	publisher IPublisherService
	logger    logger.ILogger
}

func NewReferenceService(publisher IPublisherService, log logger.ILogger) IReferenceService {
	return &referenceService{
		publisher: publisher,
		logger:    log,
	}
}

// Ingest queues the document; chunks become searchable once the consumer
// has embedded them.
func (s *referenceService) Ingest(ctx context.Context, req *dto.IngestReferenceRequest) (*dto.IngestReferenceResponse, error) {
	referenceId := uuid.NewString()
	err := s.publisher.PublishIngestReference(ctx, &dto.PublishIngestReferenceMessage{
		ReferenceId: referenceId,
		LessonIndex: req.LessonIndex,
		Title:       req.Title,
		Content:     req.Content,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("TUTOR", "Reference queued for ingestion", map[string]interface{}{
		"reference_id": referenceId,
		"lesson_index": req.LessonIndex,
		"chars":        len(req.Content),
	})
	return &dto.IngestReferenceResponse{ReferenceId: referenceId}, nil
}
