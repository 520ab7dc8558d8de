package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const providerNameOpenAI = "openai"

// OpenAIProvider implements the Provider interface using OpenAI's Responses API
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIProvider{
		client: &client,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Generate sends the prompt as a single user message
func (p *OpenAIProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🧱 OPENAI GENERATION REQUEST STARTED (Model: %s, prompt: %d chars)", request.Model, len(request.Prompt))

	transaction := sentry.StartTransaction(ctx, "openai.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameOpenAI)

	span := transaction.StartChild("openai.api_call")
	resp, err := p.client.Responses.New(ctx, p.buildRequestParams(request))
	apiDuration := time.Since(startTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ OPENAI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	log.Printf("⏱️  OPENAI API CALL COMPLETED in %v", apiDuration)

	text := resp.OutputText()
	if text == "" {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("openai: %w", ErrEmptyOutput)
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	log.Printf("📊 USAGE: input=%d, output=%d, total=%d", usage.InputTokens, usage.OutputTokens, usage.TotalTokens)

	transaction.SetTag("success", "true")
	log.Printf("✅ OPENAI GENERATION COMPLETED in %v (output: %d chars)", time.Since(startTime), len(text))
	return &GenerationResponse{RawOutput: text, Usage: usage}, nil
}

// buildRequestParams converts GenerationRequest to OpenAI-specific ResponseNewParams
func (p *OpenAIProvider) buildRequestParams(request *GenerationRequest) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: request.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(request.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Temperature: openai.Float(request.Temperature),
	}
	if request.SystemPrompt != "" {
		params.Instructions = openai.String(request.SystemPrompt)
	}
	if request.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(request.MaxOutputTokens))
	}
	return params
}
