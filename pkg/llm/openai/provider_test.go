package openai

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

func TestGenerateAgainstCompatibleServer(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"It means hello."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "gpt-4o-mini")
	out, err := p.Generate(context.Background(), "What does 'xin chào' mean?", llm.WithJSONFormat())

	require.NoError(t, err)
	assert.Equal(t, "It means hello.", out)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	format, ok := body["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "")
	_, err := p.Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
