package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-tutor-be/pkg/llm"
)

const defaultTemperature = 0.7

// OllamaProvider calls the /api/chat endpoint of a local Ollama server
// without streaming.
type OllamaProvider struct {
	BaseURL   string
	ModelName string
	// KeepAlive controls how long the model stays loaded after a request,
	// e.g. "10m". Empty leaves the server default.
	KeepAlive string
	Client    *http.Client
}

var _ llm.LLMProvider = (*OllamaProvider)(nil)

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ModelName: modelName,
		Client:    &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaChatRequest struct {
	Model     string          `json:"model"`
	Messages  []ollamaMessage `json:"messages"`
	Stream    bool            `json:"stream"`
	Format    string          `json:"format,omitempty"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Options   *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// toOllamaRole maps the provider-agnostic roles; Ollama knows system, user
// and assistant only.
func toOllamaRole(role string) string {
	switch role {
	case "model", "assistant":
		return "assistant"
	case "system":
		return "system"
	default:
		return "user"
	}
}

func (o *OllamaProvider) buildRequest(history []llm.Message, options *llm.Options) ollamaChatRequest {
	messages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		messages[i] = ollamaMessage{Role: toOllamaRole(msg.Role), Content: msg.Content}
	}

	req := ollamaChatRequest{
		Model:     o.ModelName,
		Messages:  messages,
		KeepAlive: o.KeepAlive,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}
	if options.Model != "" {
		req.Model = options.Model
	}
	if options.JSONFormat {
		req.Format = "json"
	}
	return req
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: defaultTemperature}, opts...)

	body, err := json.Marshal(o.buildRequest(history, options))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Message.Content, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}
