// Package generation turns descriptions into structures by calling an
// upstream text generator.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/Conceptual-Machines/voxel-architect/internal/llm"
	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/observability"
)

// ErrNotConfigured is returned when no upstream API key is set.
var ErrNotConfigured = errors.New("text generator is not configured")

const (
	rateLimitKey     = "upstream"
	promptLogPreview = 200
)

// TextGenerator produces raw text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProgressGenerator is a TextGenerator that can narrate its attempts.
type ProgressGenerator interface {
	TextGenerator
	GenerateWithProgress(ctx context.Context, prompt string, onProgress func(string)) (string, error)
}

// Recorder receives per-call metrics.
type Recorder interface {
	RecordGeneration(ctx context.Context, model string, duration time.Duration, success bool, inputTokens, outputTokens int)
}

// ClientConfig holds the call parameters and limits.
type ClientConfig struct {
	Model          string
	SystemPrompt   string
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
	RetryCount     int
	RetryBaseDelay time.Duration
	RateLimit      int64 // calls per minute, 0 disables the gate
	LogRequests    bool
}

// Client calls a provider with a timeout per attempt and bounded retries.
type Client struct {
	provider llm.Provider
	cfg      ClientConfig
	limiter  *limiter.Limiter
	recorder Recorder
	tracer   *observability.LangfuseClient
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientRecorder reports every call to r.
func WithClientRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithTracer traces every call in Langfuse.
func WithTracer(t *observability.LangfuseClient) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}

// NewClient creates a client over provider. A nil provider yields a client
// whose calls fail with ErrNotConfigured.
func NewClient(provider llm.Provider, cfg ClientConfig, opts ...ClientOption) *Client {
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	c := &Client{provider: provider, cfg: cfg}
	if cfg.RateLimit > 0 {
		c.limiter = limiter.New(memory.NewStore(), limiter.Rate{
			Period: time.Minute,
			Limit:  cfg.RateLimit,
		})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a provider is attached.
func (c *Client) Configured() bool {
	return c != nil && c.provider != nil
}

// Generate implements TextGenerator.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateWithProgress(ctx, prompt, nil)
}

// GenerateWithProgress tries up to RetryCount attempts, sleeping
// RetryBaseDelay*attempt between them. The sleep ends early when ctx is done.
func (c *Client) GenerateWithProgress(ctx context.Context, prompt string, onProgress func(string)) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if onProgress == nil {
		onProgress = func(string) {}
	}

	if c.cfg.LogRequests {
		preview := prompt
		if len(preview) > promptLogPreview {
			preview = preview[:promptLogPreview] + "..."
		}
		logger.Info("Generator request", logger.Fields{
			"model":    c.cfg.Model,
			"provider": c.provider.Name(),
			"prompt":   preview,
		})
	}

	trace := c.tracer.StartTrace(ctx, "structure.generate", map[string]interface{}{
		"model":    c.cfg.Model,
		"provider": c.provider.Name(),
	})
	defer trace.Finish()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryCount; attempt++ {
		onProgress(fmt.Sprintf("Attempt %d/%d - Preparing AI request...", attempt, c.cfg.RetryCount))

		if err := c.wait(ctx); err != nil {
			return "", err
		}

		onProgress("Sending request to AI...")
		gen := trace.Generation(fmt.Sprintf("attempt-%d", attempt), c.cfg.Model, prompt)
		text, err := c.call(ctx, prompt, gen)
		if err == nil {
			return text, nil
		}
		lastErr = err

		onProgress(fmt.Sprintf("Attempt %d failed: %v", attempt, err))
		logger.Warn("Generator attempt failed", logger.Fields{
			"attempt":  attempt,
			"model":    c.cfg.Model,
			"provider": c.provider.Name(),
			"error":    err.Error(),
		})

		if attempt < c.cfg.RetryCount {
			delay := c.cfg.RetryBaseDelay * time.Duration(attempt)
			onProgress(fmt.Sprintf("Retrying in %s...", delay))
			if err := sleep(ctx, delay); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", c.cfg.RetryCount, lastErr)
}

func (c *Client) call(ctx context.Context, prompt string, gen *observability.Generation) (string, error) {
	callCtx := ctx
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.provider.Generate(callCtx, &llm.GenerationRequest{
		Model:           c.cfg.Model,
		SystemPrompt:    c.cfg.SystemPrompt,
		Prompt:          prompt,
		Temperature:     c.cfg.Temperature,
		MaxOutputTokens: c.cfg.MaxTokens,
	})
	duration := time.Since(start)

	if err == nil && (resp == nil || resp.RawOutput == "") {
		err = llm.ErrEmptyOutput
	}
	if err != nil {
		gen.Fail(err)
		c.record(ctx, duration, false, llm.Usage{})
		return "", err
	}

	gen.Succeed(resp.RawOutput, resp.Usage)
	c.record(ctx, duration, true, resp.Usage)
	logger.LogGenerationRequest(ctx, c.cfg.Model, duration, resp.Usage.InputTokens, resp.Usage.OutputTokens, logger.Fields{
		"provider": c.provider.Name(),
		"chars":    len(resp.RawOutput),
	})
	return resp.RawOutput, nil
}

// wait blocks until the upstream budget allows another call.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	for {
		lctx, err := c.limiter.Get(ctx, rateLimitKey)
		if err != nil {
			// A broken limiter must not stop generation.
			log.Printf("⚠️  Rate limiter error: %v", err)
			return nil
		}
		if !lctx.Reached {
			return nil
		}
		delay := time.Until(time.Unix(lctx.Reset, 0))
		logger.Warn("Upstream rate limit reached, waiting", logger.Fields{"delay": delay.String()})
		if err := sleep(ctx, max(delay, time.Second)); err != nil {
			return err
		}
	}
}

func (c *Client) record(ctx context.Context, d time.Duration, success bool, usage llm.Usage) {
	if c.recorder != nil {
		c.recorder.RecordGeneration(ctx, c.cfg.Model, d, success, usage.InputTokens, usage.OutputTokens)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
