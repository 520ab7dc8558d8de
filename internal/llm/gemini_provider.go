package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	providerNameGemini = "gemini"
	geminiUserRole     = "user"
)

// GeminiProvider implements the Provider interface using Google's Gemini API
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return providerNameGemini
}

// Generate sends the prompt through Gemini's GenerateContent API
func (p *GeminiProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🧱 GEMINI GENERATION REQUEST STARTED (Model: %s, prompt: %d chars)", request.Model, len(request.Prompt))

	transaction := sentry.StartTransaction(ctx, "gemini.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameGemini)

	span := transaction.StartChild("gemini.api_call")
	result, err := p.client.Models.GenerateContent(ctx, request.Model, p.buildContents(request), p.buildConfig(request))
	apiDuration := time.Since(startTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ GEMINI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	log.Printf("⏱️  GEMINI API CALL COMPLETED in %v", apiDuration)

	response, err := p.processResponse(result)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	transaction.SetTag("success", "true")
	log.Printf("✅ GEMINI GENERATION COMPLETED in %v (output: %d chars)", time.Since(startTime), len(response.RawOutput))
	return response, nil
}

func (p *GeminiProvider) buildContents(request *GenerationRequest) []*genai.Content {
	return []*genai.Content{{
		Role:  geminiUserRole,
		Parts: []*genai.Part{{Text: request.Prompt}},
	}}
}

func (p *GeminiProvider) buildConfig(request *GenerationRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(request.Temperature)),
	}
	if request.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		}
	}
	if request.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxOutputTokens)
	}
	return config
}

// processResponse concatenates the text parts of the first candidate
func (p *GeminiProvider) processResponse(result *genai.GenerateContentResponse) (*GenerationResponse, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response: %w", ErrEmptyOutput)
	}

	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in Gemini response: %w", ErrEmptyOutput)
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	log.Printf("📥 GEMINI RESPONSE: output_length=%d", len(text))
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyOutput)
	}

	response := &GenerationResponse{RawOutput: text}
	if result.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
		log.Printf("📊 GEMINI USAGE: input=%d, output=%d, total=%d",
			response.Usage.InputTokens, response.Usage.OutputTokens, response.Usage.TotalTokens)
	}
	return response, nil
}
