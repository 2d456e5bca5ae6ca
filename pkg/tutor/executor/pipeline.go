// Package executor runs the tutoring pipeline:
// normalize_input, retrieve_references, retrieve_memories,
// synthesize_response, commit_memory.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-tutor-be/internal/observability"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutorerr"
	"ai-tutor-be/pkg/tutor/writer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "ai-tutor-be/pkg/tutor/executor"

type MemoryRetriever interface {
	Retrieve(ctx context.Context, userID, conversationID, query string) ([]state.MemoryItem, error)
}

type ReferenceRetriever interface {
	Retrieve(ctx context.Context, query string, lessonID *int) []string
}

type ResponseSynthesizer interface {
	Synthesize(ctx context.Context, userInput string, memories []state.MemoryItem, references []string, preferences string) (string, error)
}

type MemoryWriter interface {
	Commit(ctx context.Context, conversationID, userID, userInput, response string) (*writer.Outcome, error)
}

type Options struct {
	// ParallelRetrieval runs the two retrieval nodes concurrently. Both are
	// read-only, so the result is the same as sequential execution.
	ParallelRetrieval bool
}

// PipelineExecutor orchestrates one tutoring invocation.
type PipelineExecutor struct {
	memories    MemoryRetriever
	references  ReferenceRetriever
	synthesizer ResponseSynthesizer
	writer      MemoryWriter
	opts        Options
	graph       Graph
	tracer      trace.Tracer
	metrics     *observability.Metrics
	logger      logger.ILogger
}

func NewPipelineExecutor(
	memories MemoryRetriever,
	references ReferenceRetriever,
	synthesizer ResponseSynthesizer,
	memoryWriter MemoryWriter,
	opts Options,
	metrics *observability.Metrics,
	log logger.ILogger,
) *PipelineExecutor {
	p := &PipelineExecutor{
		memories:    memories,
		references:  references,
		synthesizer: synthesizer,
		writer:      memoryWriter,
		opts:        opts,
		tracer:      otel.Tracer(tracerName),
		metrics:     metrics,
		logger:      log,
	}
	p.graph = Graph{
		{Name: NodeNormalizeInput, Run: p.normalizeInput},
		{Name: NodeRetrieveReferences, Run: p.retrieveReferences},
		{Name: NodeRetrieveMemories, Run: p.retrieveMemories},
		{Name: NodeSynthesizeResponse, Run: p.synthesizeResponse},
		{Name: NodeCommitMemory, Run: p.commitMemory},
	}
	return p
}

// Graph returns the node order.
func (p *PipelineExecutor) Graph() Graph {
	return p.graph
}

// Invoke runs the pipeline once and returns the tutor's response.
func (p *PipelineExecutor) Invoke(ctx context.Context, req state.Request) (string, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.ConversationID) == "" {
		p.metrics.CountInvocation("invalid")
		return "", fmt.Errorf("%w: user_id and conversation_id are required", tutorerr.ErrInvalidRequest)
	}

	ctx, span := p.tracer.Start(ctx, "tutor.invoke", trace.WithAttributes(
		attribute.String("tutor.user_id", req.UserID),
		attribute.String("tutor.conversation_id", req.ConversationID),
	))
	defer span.End()

	start := time.Now()
	s := state.New(req)

	if err := p.run(ctx, s); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.CountInvocation(outcome(err))
		p.logger.Error("TUTOR", "Pipeline failed", map[string]interface{}{
			"user_id":         req.UserID,
			"conversation_id": req.ConversationID,
			"error":           err.Error(),
		})
		return "", err
	}

	p.metrics.CountInvocation("ok")
	p.logger.Info("TUTOR", "Pipeline finished", map[string]interface{}{
		"user_id":         req.UserID,
		"conversation_id": req.ConversationID,
		"memories":        len(s.Memories),
		"references":      len(s.Docs),
		"duration_ms":     time.Since(start).Milliseconds(),
	})
	return s.Response, nil
}

func (p *PipelineExecutor) run(ctx context.Context, s *state.PipelineState) error {
	for i := 0; i < len(p.graph); i++ {
		node := p.graph[i]
		if p.opts.ParallelRetrieval && node.Name == NodeRetrieveReferences &&
			i+1 < len(p.graph) && p.graph[i+1].Name == NodeRetrieveMemories {
			if err := p.runParallel(ctx, s, node, p.graph[i+1]); err != nil {
				return err
			}
			i++
			continue
		}
		if err := p.runNode(ctx, s, node); err != nil {
			return err
		}
	}
	return nil
}

func (p *PipelineExecutor) runParallel(ctx context.Context, s *state.PipelineState, nodes ...Node) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		g.Go(func() error {
			return p.runNode(gctx, s, node)
		})
	}
	return g.Wait()
}

func (p *PipelineExecutor) runNode(ctx context.Context, s *state.PipelineState, node Node) error {
	ctx, span := p.tracer.Start(ctx, "tutor."+node.Name)
	defer span.End()

	start := time.Now()
	err := node.Run(ctx, s)
	p.metrics.ObserveStage(node.Name, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", node.Name, err)
	}
	p.logger.Debug("TUTOR", "Node finished", map[string]interface{}{
		"node":        node.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// normalizeInput passes the message through; emptiness is checked at the
// HTTP boundary.
func (p *PipelineExecutor) normalizeInput(ctx context.Context, s *state.PipelineState) error {
	return ctx.Err()
}

func (p *PipelineExecutor) retrieveReferences(ctx context.Context, s *state.PipelineState) error {
	docs := p.references.Retrieve(ctx, s.UserInput, s.LessonID)
	if docs == nil {
		docs = []string{}
	}
	s.Docs = docs
	return nil
}

func (p *PipelineExecutor) retrieveMemories(ctx context.Context, s *state.PipelineState) error {
	memories, err := p.memories.Retrieve(ctx, s.UserID, s.ConversationID, s.UserInput)
	if err != nil {
		return err
	}
	if memories == nil {
		memories = []state.MemoryItem{}
	}
	s.Memories = memories
	return nil
}

func (p *PipelineExecutor) synthesizeResponse(ctx context.Context, s *state.PipelineState) error {
	response, err := p.synthesizer.Synthesize(ctx, s.UserInput, s.Memories, s.Docs, s.Preferences)
	if err != nil {
		return err
	}
	s.Response = response
	return nil
}

func (p *PipelineExecutor) commitMemory(ctx context.Context, s *state.PipelineState) error {
	_, err := p.writer.Commit(ctx, s.ConversationID, s.UserID, s.UserInput, s.Response)
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, tutorerr.ErrConversationNotFound):
		return "not_found"
	case errors.Is(err, tutorerr.ErrGeneration):
		return "generation_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
