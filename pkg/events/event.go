package events

import "time"

// Event types published on the bus as events.<type>.
const (
	TypeMemoryCommitted = "memory.committed"
	TypeQuizFinished    = "quiz.finished"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the subject suffix for this event (e.g., "memory.committed").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

// Payload includes the occurrence time so consumers need not rely on
// broker metadata.
func (e BaseEvent) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		out[k] = v
	}
	out["occurred_at"] = e.OccurredAt.UTC().Format(time.RFC3339Nano)
	return out
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
