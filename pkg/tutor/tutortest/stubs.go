// Package tutortest provides deterministic providers for exercising the
// tutoring pipeline without network access.
package tutortest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/llm"
)

// Embedder hashes words into a fixed number of buckets, so texts sharing
// words land close together.
type Embedder struct {
	Dimension int
	Err       error

	mu    sync.Mutex
	calls []string
}

var _ embedding.EmbeddingProvider = (*Embedder)(nil)

func NewEmbedder(dimension int) *Embedder {
	return &Embedder{Dimension: dimension}
}

func (e *Embedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: e.Vector(text)},
	}, nil
}

// Vector is the deterministic embedding of text.
func (e *Embedder) Vector(text string) []float32 {
	vec := make([]float32, e.Dimension)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		vec[0] = 1
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.Dimension)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (e *Embedder) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Call is one recorded LLM request.
type Call struct {
	Prompt     string
	JSONFormat bool
}

// LLM answers free-form prompts with Answer and JSON-format prompts (the
// classifier and grader) with Structured. Handler, when set, overrides both.
type LLM struct {
	Answer     string
	Structured string
	Err        error
	Handler    func(prompt string, opts llm.Options) (string, error)

	mu    sync.Mutex
	calls []Call
}

var _ llm.LLMProvider = (*LLM)(nil)

func NewLLM(answer, structured string) *LLM {
	return &LLM{Answer: answer, Structured: structured}
}

func (l *LLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	var prompt string
	if len(history) > 0 {
		prompt = history[len(history)-1].Content
	}
	return l.Generate(ctx, prompt, opts...)
}

func (l *LLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(llm.Options{}, opts...)

	l.mu.Lock()
	l.calls = append(l.calls, Call{Prompt: prompt, JSONFormat: options.JSONFormat})
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.Handler != nil {
		return l.Handler(prompt, *options)
	}
	if l.Err != nil {
		return "", l.Err
	}
	if options.JSONFormat {
		return l.Structured, nil
	}
	return l.Answer, nil
}

func (l *LLM) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Prompts returns the free-form prompts only.
func (l *LLM) Prompts() []string {
	var out []string
	for _, c := range l.Calls() {
		if !c.JSONFormat {
			out = append(out, c.Prompt)
		}
	}
	return out
}
