// Package tutorerr holds the sentinel errors shared by the tutoring
// pipeline, its stores and the HTTP layer.
package tutorerr

import "errors"

var (
	// ErrInvalidRequest means a required invocation field is missing.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConversationNotFound is fatal to an invocation and never retried.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationExists is returned when creating a conversation whose id
	// is already taken.
	ErrConversationExists = errors.New("conversation already exists")

	// ErrGeneration wraps a failed response generator call.
	ErrGeneration = errors.New("response generation failed")
)

var (
	// ErrQuizNotFound means the conversation has no quiz session.
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrQuizConflict means the quiz changed since it was read.
	ErrQuizConflict = errors.New("quiz was modified concurrently")

	// ErrInvalidTransition means the quiz is not in a state that allows the
	// requested step.
	ErrInvalidTransition = errors.New("invalid quiz transition")
)
