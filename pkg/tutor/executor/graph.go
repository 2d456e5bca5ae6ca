package executor

import (
	"context"

	"ai-tutor-be/pkg/tutor/state"
)

const (
	NodeNormalizeInput     = "normalize_input"
	NodeRetrieveReferences = "retrieve_references"
	NodeRetrieveMemories   = "retrieve_memories"
	NodeSynthesizeResponse = "synthesize_response"
	NodeCommitMemory       = "commit_memory"
)

// Node is one pipeline stage. It reads the state and fills only its own
// fields.
type Node struct {
	Name string
	Run  func(ctx context.Context, s *state.PipelineState) error
}

// Graph is the fixed linear node order from START to END.
type Graph []Node

// Names lists the node names in execution order.
func (g Graph) Names() []string {
	names := make([]string, len(g))
	for i, n := range g {
		names[i] = n.Name
	}
	return names
}
