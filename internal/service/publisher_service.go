package service

import (
	"context"
	"encoding/json"

	"ai-tutor-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	PublishIngestReference(ctx context.Context, payload *dto.PublishIngestReferenceMessage) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (ps *publisherService) PublishIngestReference(ctx context.Context, payload *dto.PublishIngestReferenceMessage) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)
	return ps.publisher.Publish(ps.topicName, msg)
}
