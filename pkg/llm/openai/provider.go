package openai

import (
	"context"
	"fmt"

	"ai-tutor-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to the OpenAI chat completions API, or any
// compatible server when BaseURL is overridden.
type OpenAIProvider struct {
	client    *goopenai.Client
	ModelName string
}

var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, baseURL, modelName string) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = goopenai.GPT4oMini
	}
	return &OpenAIProvider{
		client:    goopenai.NewClientWithConfig(cfg),
		ModelName: modelName,
	}
}

func (o *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7}, opts...)

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages[i] = goopenai.ChatCompletionMessage{Role: role, Content: msg.Content}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
	}
	if options.MaxTokens > 0 {
		req.MaxCompletionTokens = options.MaxTokens
	}
	if options.JSONFormat {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: goopenai.ChatMessageRoleUser, Content: prompt}}, opts...)
}
