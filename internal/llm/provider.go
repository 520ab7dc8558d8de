package llm

import (
	"context"
	"errors"
)

// ErrEmptyOutput is returned when a provider answers without any text.
// Callers treat it like a transport failure and retry.
var ErrEmptyOutput = errors.New("provider response did not include any output text")

// Provider defines the interface for LLM providers
type Provider interface {
	// Generate sends one prompt and returns the raw text answer
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// GenerationRequest contains all parameters needed for generation
type GenerationRequest struct {
	Model           string
	SystemPrompt    string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// GenerationResponse contains the result from the LLM
type GenerationResponse struct {
	RawOutput string `json:"-"`
	Usage     Usage  `json:"usage"`
}

// Usage is the provider-neutral token accounting for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
