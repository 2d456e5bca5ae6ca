// Package state holds the per-invocation data passed between pipeline
// stages.
package state

import "strings"

type MemoryType string

const (
	ShortTerm MemoryType = "short_term"
	LongTerm  MemoryType = "long_term"
)

// Category is the classification of a tutoring exchange.
type Category string

const (
	Troubled Category = "troubled"
	Known    Category = "known"
	Misc     Category = "misc"
)

// ParseCategory accepts any casing and surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Troubled, Known, Misc:
		return c, true
	default:
		return "", false
	}
}

// MemoryItem is the unified shape of short-term turns and long-term hits.
// Category is empty for short-term items.
type MemoryItem struct {
	Type     MemoryType
	Text     string
	Category string
}

// Request is one tutoring invocation.
type Request struct {
	UserID         string
	ConversationID string
	UserInput      string
	LessonID       *int
	Preferences    string
}

// PipelineState lives for one invocation. Each stage fills only its own
// fields: retrieve_references sets Docs, retrieve_memories sets Memories and
// synthesize_response sets Response.
type PipelineState struct {
	UserID         string
	ConversationID string
	UserInput      string
	LessonID       *int
	Preferences    string

	Memories []MemoryItem
	Docs     []string
	Response string
}

func New(req Request) *PipelineState {
	return &PipelineState{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		UserInput:      req.UserInput,
		LessonID:       req.LessonID,
		Preferences:    req.Preferences,
		Memories:       []MemoryItem{},
		Docs:           []string{},
	}
}

// Split partitions memories by type, preserving order within each group.
func Split(memories []MemoryItem) (shortTerm, longTerm []MemoryItem) {
	for _, m := range memories {
		switch m.Type {
		case ShortTerm:
			shortTerm = append(shortTerm, m)
		case LongTerm:
			longTerm = append(longTerm, m)
		}
	}
	return shortTerm, longTerm
}
