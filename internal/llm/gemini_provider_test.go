package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiProvider_Name(t *testing.T) {
	provider := &GeminiProvider{client: nil}
	assert.Equal(t, "gemini", provider.Name())
}

func TestGeminiProvider_BuildConfig(t *testing.T) {
	provider := &GeminiProvider{}

	config := provider.buildConfig(&GenerationRequest{
		SystemPrompt:    "build things",
		Temperature:     0.7,
		MaxOutputTokens: 4000,
	})
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.7, *config.Temperature, 1e-6)
	assert.Equal(t, int32(4000), config.MaxOutputTokens)
	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, "build things", config.SystemInstruction.Parts[0].Text)

	bare := provider.buildConfig(&GenerationRequest{})
	assert.Nil(t, bare.SystemInstruction)
	assert.Zero(t, bare.MaxOutputTokens)
}

func TestGeminiProvider_BuildContents(t *testing.T) {
	provider := &GeminiProvider{}
	contents := provider.buildContents(&GenerationRequest{Prompt: "a castle"})

	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "a castle", contents[0].Parts[0].Text)
}

func TestGeminiProvider_ProcessResponse(t *testing.T) {
	provider := &GeminiProvider{}

	tests := []struct {
		name     string
		result   *genai.GenerateContentResponse
		wantText string
		wantErr  bool
	}{
		{name: "nil result", result: nil, wantErr: true},
		{name: "no candidates", result: &genai.GenerateContentResponse{}, wantErr: true},
		{
			name:    "nil content",
			result:  &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
			wantErr: true,
		},
		{
			name: "empty text",
			result: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: ""}}},
			}}},
			wantErr: true,
		},
		{
			name: "parts are joined",
			result: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []*genai.Part{{Text: `{"name":`}, {Text: `"Hut"}`}}},
				}},
				UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
					PromptTokenCount:     10,
					CandidatesTokenCount: 20,
					TotalTokenCount:      30,
				},
			},
			wantText: `{"name":"Hut"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := provider.processResponse(tt.result)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrEmptyOutput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.RawOutput)
			assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}, resp.Usage)
		})
	}
}

func TestNewGeminiProvider_InvalidKey(t *testing.T) {
	provider, err := NewGeminiProvider(context.Background(), "invalid-key")

	// Client creation does not contact the API, so either outcome is acceptable
	if err != nil {
		assert.Error(t, err)
	} else {
		assert.NotNil(t, provider)
		assert.Equal(t, "gemini", provider.Name())
	}
}
