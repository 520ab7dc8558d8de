package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider is a test implementation of the Provider interface
type MockProvider struct {
	name         string
	generateFunc func(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, request)
	}
	return &GenerationResponse{}, nil
}

func TestMockProviderGenerate(t *testing.T) {
	callCount := 0
	var provider Provider = &MockProvider{
		name: "test",
		generateFunc: func(_ context.Context, request *GenerationRequest) (*GenerationResponse, error) {
			callCount++
			require.Equal(t, "test-model", request.Model)
			return &GenerationResponse{RawOutput: `{"name":"x"}`, Usage: Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}}, nil
		},
	}

	resp, err := provider.Generate(context.Background(), &GenerationRequest{Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, `{"name":"x"}`, resp.RawOutput)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestProviderFactory_GetProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		openaiKey    string
		geminiKey    string
		model        string
		providerName string
		wantName     string
		wantErr      bool
	}{
		{name: "gpt model", openaiKey: "sk", model: "gpt-4.1-mini", wantName: "openai"},
		{name: "gemini model", geminiKey: "g", model: "gemini-2.0-flash", wantName: "gemini"},
		{name: "explicit openai", openaiKey: "sk", geminiKey: "g", model: "gemini-2.0-flash", providerName: "OpenAI", wantName: "openai"},
		{name: "unknown model prefers gemini", openaiKey: "sk", geminiKey: "g", model: "custom", wantName: "gemini"},
		{name: "unknown model falls back to openai", openaiKey: "sk", model: "custom", wantName: "openai"},
		{name: "missing key", model: "gpt-4.1", wantErr: true},
		{name: "no keys at all", model: "custom", wantErr: true},
		{name: "unknown provider", openaiKey: "sk", providerName: "claude", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewProviderFactory(tt.openaiKey, tt.geminiKey)
			provider, err := f.GetProvider(ctx, tt.model, tt.providerName)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, provider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, provider.Name())
		})
	}
}

func TestErrEmptyOutput_Wrapped(t *testing.T) {
	p := &GeminiProvider{}
	_, err := p.processResponse(nil)
	assert.True(t, errors.Is(err, ErrEmptyOutput))
}
