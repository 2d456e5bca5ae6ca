package embedding

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds text with the OpenAI embeddings endpoint.
// text-embedding-3-small produces 1536 dimensions unless Dimensions is set.
type OpenAIProvider struct {
	client     *goopenai.Client
	Model      goopenai.EmbeddingModel
	Dimensions int
}

func NewOpenAIProvider(apiKey, baseURL, model string, dimensions int) EmbeddingProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}
	return &OpenAIProvider{
		client:     goopenai.NewClientWithConfig(cfg),
		Model:      goopenai.EmbeddingModel(model),
		Dimensions: dimensions,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	req := goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: p.Model,
	}
	// Only text-embedding-3 models accept an explicit dimension.
	if p.Model != goopenai.AdaEmbeddingV2 && p.Dimensions > 0 {
		req.Dimensions = p.Dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding returned no data")
	}

	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{
			Values: normalizeVector(resp.Data[0].Embedding),
		},
	}, nil
}
