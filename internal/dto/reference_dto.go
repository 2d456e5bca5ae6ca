package dto

type IngestReferenceRequest struct {
	LessonIndex int    `json:"lesson_index" validate:"gte=0"`
	Title       string `json:"title" validate:"required,max=300"`
	Content     string `json:"content" validate:"required"`
}

type IngestReferenceResponse struct {
	ReferenceId string `json:"reference_id"`
}

// PublishIngestReferenceMessage is the queue payload consumed by the
// reference ingestion worker.
type PublishIngestReferenceMessage struct {
	ReferenceId string `json:"reference_id"`
	LessonIndex int    `json:"lesson_index"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}
