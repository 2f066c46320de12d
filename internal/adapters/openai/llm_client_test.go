package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikey/llm-phishing-analyzer/internal/config"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler func(req openai.ChatCompletionRequest) (int, interface{})) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req openai.ChatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := newTestServer(t, func(req openai.ChatCompletionRequest) (int, interface{}) {
		got = req
		return http.StatusOK, map[string]interface{}{
			"id": "chatcmpl-1",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": `{"is_phishing": false}`}},
			},
			"usage": map[string]int{"total_tokens": 42},
		}
	})

	client := NewOpenAIClient("test-key", srv.URL+"/v1", "gpt-4o-mini", core.DefaultSamplingConfig(), zap.NewNop())

	text, err := client.Generate(context.Background(), "analyze this")
	require.NoError(t, err)

	assert.Equal(t, `{"is_phishing": false}`, text)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "analyze this", got.Messages[1].Content)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.Equal(t, float32(0.1), got.Temperature)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := newTestServer(t, func(openai.ChatCompletionRequest) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"id": "chatcmpl-2", "choices": []interface{}{}}
	})

	client := NewOpenAIClient("test-key", srv.URL+"/v1", "gpt-4o-mini", core.DefaultSamplingConfig(), zap.NewNop())

	_, err := client.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := newTestServer(t, func(openai.ChatCompletionRequest) (int, interface{}) {
		return http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]string{"message": "invalid api key", "type": "invalid_request_error"},
		}
	})

	client := NewOpenAIClient("bad-key", srv.URL+"/v1", "gpt-4o-mini", core.DefaultSamplingConfig(), zap.NewNop())

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestFactory_CreateClient(t *testing.T) {
	v := config.NewEmptyViper()
	_, err := NewFactory(config.NewFromViper(v), zap.NewNop()).CreateClient()
	assert.Error(t, err)

	// A local compatible endpoint needs no key
	v.Set("openai.base_url", "http://localhost:11434/v1")
	client, err := NewFactory(config.NewFromViper(v), zap.NewNop()).CreateClient()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.ModelName())
}
