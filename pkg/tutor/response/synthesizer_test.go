package response

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutorerr"
	"ai-tutor-be/pkg/tutor/tutortest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSynthesizeBuildsPromptAndNormalizes(t *testing.T) {
	gen := tutortest.NewLLM("<think>hmm</think> It means hello. ", "")
	s := NewSynthesizer(gen, time.Second, logger.NewFromZap(zaptest.NewLogger(t)))

	memories := []state.MemoryItem{{Type: state.LongTerm, Text: "greetings", Category: "known"}}
	out, err := s.Synthesize(context.Background(), "What does 'xin chào' mean?", memories, []string{"Xin chào = hello"}, "short answers")
	require.NoError(t, err)
	assert.Equal(t, "It means hello.", out)

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "[known] greetings")
	assert.Contains(t, prompts[0], "Xin chào = hello")
	assert.Contains(t, prompts[0], "short answers")
	assert.True(t, strings.HasSuffix(prompts[0], "Respond to the learner as their tutor:"))
}

func TestSynthesizeWrapsGeneratorErrors(t *testing.T) {
	gen := tutortest.NewLLM("", "")
	gen.Err = errors.New("upstream 503")
	s := NewSynthesizer(gen, 0, logger.NewFromZap(zaptest.NewLogger(t)))

	_, err := s.Synthesize(context.Background(), "hi", nil, nil, "")
	assert.ErrorIs(t, err, tutorerr.ErrGeneration)
	assert.Contains(t, err.Error(), "upstream 503")
	assert.Len(t, gen.Calls(), 1, "no retry")
}

func TestSynthesizeTimeout(t *testing.T) {
	blocking := &blockingLLM{}
	s := NewSynthesizer(blocking, 20*time.Millisecond, logger.NewFromZap(zaptest.NewLogger(t)))

	_, err := s.Synthesize(context.Background(), "hi", nil, nil, "")
	assert.ErrorIs(t, err, tutorerr.ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingLLM struct{}

func (blockingLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (b blockingLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return b.Chat(ctx, nil, opts...)
}
