package factory

import (
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/llm/huggingface"
	"ai-tutor-be/pkg/llm/ollama"
	"ai-tutor-be/pkg/llm/openai"
	"fmt"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	case "huggingface":
		if apiKey == "" {
			return nil, fmt.Errorf("huggingface provider requires HUGGINGFACE_API_KEY")
		}
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
