package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-tutor-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsJSONFormat(t *testing.T) {
	var captured ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   captured.Model,
			Message: ollamaMessage{Role: "assistant", Content: `{"category":"known"}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Generate(context.Background(), "classify", llm.WithJSONFormat())

	require.NoError(t, err)
	assert.Equal(t, `{"category":"known"}`, out)
	assert.Equal(t, "json", captured.Format)
	assert.Equal(t, "llama3", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestChatMapsModelRoleAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Messages[0].Role != "assistant" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	_, err := p.Chat(context.Background(), []llm.Message{{Role: "model", Content: "hi"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestRoleMappingAndOptions(t *testing.T) {
	var captured ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: "ok"}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "llama3")
	p.KeepAlive = "10m"
	_, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "persona"},
		{Role: "model", Content: "earlier"},
		{Role: "tool", Content: "x"},
	}, llm.WithTemperature(0), llm.WithModel("qwen2"), llm.WithMaxTokens(64))
	require.NoError(t, err)

	assert.Equal(t, "qwen2", captured.Model)
	assert.Equal(t, "10m", captured.KeepAlive)
	assert.Equal(t, []string{"system", "assistant", "user"}, []string{
		captured.Messages[0].Role, captured.Messages[1].Role, captured.Messages[2].Role,
	})
	require.NotNil(t, captured.Options)
	assert.Equal(t, 0.0, captured.Options.Temperature)
	assert.Equal(t, 64, captured.Options.NumPredict)
}

func TestErrorFieldInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Error: "model 'x' not found"})
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "x").Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
