package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIProvider(t *testing.T) {
	provider := NewOpenAIProvider("test-api-key")
	require.NotNil(t, provider)
	assert.Equal(t, "openai", provider.Name())
	assert.NotNil(t, provider.client)
}

func TestOpenAIProvider_BuildRequestParams(t *testing.T) {
	provider := NewOpenAIProvider("test-key")

	params := provider.buildRequestParams(&GenerationRequest{
		Model:           "gpt-4.1-mini",
		SystemPrompt:    "system",
		Prompt:          "a bridge",
		Temperature:     0.7,
		MaxOutputTokens: 4000,
	})
	assert.Equal(t, "gpt-4.1-mini", params.Model)
	assert.Equal(t, "system", params.Instructions.Value)
	assert.InDelta(t, 0.7, params.Temperature.Value, 1e-9)
	assert.Equal(t, int64(4000), params.MaxOutputTokens.Value)
	assert.Len(t, params.Input.OfInputItemList, 1)

	bare := provider.buildRequestParams(&GenerationRequest{Model: "gpt-4.1-mini", Prompt: "x"})
	assert.False(t, bare.Instructions.Valid())
	assert.False(t, bare.MaxOutputTokens.Valid())
}

func newTestOpenAIServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		assert.Equal(t, "/responses", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := newTestOpenAIServer(t, http.StatusOK, `{
		"id": "resp_1",
		"object": "response",
		"created_at": 0,
		"model": "gpt-4.1-mini",
		"status": "completed",
		"output": [{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"status": "completed",
			"content": [{"type": "output_text", "text": "{\"name\":\"Hut\"}", "annotations": []}]
		}],
		"usage": {"input_tokens": 12, "output_tokens": 7, "total_tokens": 19}
	}`)

	provider := NewOpenAIProvider("test-key", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := provider.Generate(context.Background(), &GenerationRequest{Model: "gpt-4.1-mini", Prompt: "a hut"})

	require.NoError(t, err)
	assert.Equal(t, `{"name":"Hut"}`, resp.RawOutput)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 7, TotalTokens: 19}, resp.Usage)
}

func TestOpenAIProvider_EmptyOutput(t *testing.T) {
	srv := newTestOpenAIServer(t, http.StatusOK, `{"id":"resp_2","object":"response","output":[]}`)

	provider := NewOpenAIProvider("test-key", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := provider.Generate(context.Background(), &GenerationRequest{Model: "gpt-4.1-mini", Prompt: "a hut"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyOutput))
}

func TestOpenAIProvider_UpstreamError(t *testing.T) {
	srv := newTestOpenAIServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)

	provider := NewOpenAIProvider("test-key", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := provider.Generate(context.Background(), &GenerationRequest{Model: "gpt-4.1-mini", Prompt: "a hut"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai request failed")
}
