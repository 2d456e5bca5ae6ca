// Package response builds the tutoring prompt, calls the generator and
// reduces its output to the text shown to the learner.
package response

import (
	"context"
	"fmt"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/tutor/prompt"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutorerr"
)

type Synthesizer struct {
	llm     llm.LLMProvider
	timeout time.Duration
	logger  logger.ILogger
}

// NewSynthesizer bounds every generator call by timeout; zero disables the
// bound.
func NewSynthesizer(provider llm.LLMProvider, timeout time.Duration, log logger.ILogger) *Synthesizer {
	return &Synthesizer{
		llm:     provider,
		timeout: timeout,
		logger:  log,
	}
}

// Synthesize never retries. Generator failures wrap tutorerr.ErrGeneration.
func (s *Synthesizer) Synthesize(ctx context.Context, userInput string, memories []state.MemoryItem, references []string, preferences string) (string, error) {
	promptText := prompt.NewTutorBuilder(userInput, memories, references, preferences).Build()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.llm.Generate(ctx, promptText)
	if err != nil {
		return "", fmt.Errorf("%w: %w", tutorerr.ErrGeneration, err)
	}

	out := NormalizeOutput(raw)
	s.logger.Debug("TUTOR", "Response generated", map[string]interface{}{
		"prompt_chars":   len(promptText),
		"response_chars": len(out),
		"latency_ms":     time.Since(start).Milliseconds(),
	})
	return out, nil
}
