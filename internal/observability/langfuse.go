package observability

import (
	"context"
	"log"
	"sync"
	"time"

	langfuse "github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"

	"github.com/Conceptual-Machines/voxel-architect/internal/config"
	"github.com/Conceptual-Machines/voxel-architect/internal/llm"
)

// LangfuseClient wraps the Langfuse client with our configuration
type LangfuseClient struct {
	client  *langfuse.Langfuse
	enabled bool
}

var (
	globalMu     sync.RWMutex
	globalClient *LangfuseClient
)

// InitializeLangfuse initializes the global Langfuse client. The SDK reads
// LANGFUSE_HOST and the key pair from the environment.
func InitializeLangfuse(ctx context.Context, cfg *config.Config) *LangfuseClient {
	c := &LangfuseClient{}
	if !cfg.LangfuseEnabled || cfg.LangfuseSecretKey == "" || cfg.LangfusePublicKey == "" {
		log.Println("⚠️  Langfuse not configured (LANGFUSE_ENABLED=false or keys not set)")
	} else {
		c.client = langfuse.New(ctx)
		c.enabled = true
		log.Printf("✅ Langfuse initialized (host: %s)", cfg.LangfuseHost)
	}

	globalMu.Lock()
	globalClient = c
	globalMu.Unlock()
	return c
}

// GetClient returns the global Langfuse client, disabled if never initialized
func GetClient() *LangfuseClient {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalClient == nil {
		return &LangfuseClient{}
	}
	return globalClient
}

// IsEnabled returns whether Langfuse is enabled
func (c *LangfuseClient) IsEnabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Flush sends queued events; called on shutdown.
func (c *LangfuseClient) Flush(ctx context.Context) {
	if c.IsEnabled() {
		c.client.Flush(ctx)
	}
}

// StartTrace starts a new trace in Langfuse
func (c *LangfuseClient) StartTrace(ctx context.Context, name string, metadata map[string]interface{}) *Trace {
	if !c.IsEnabled() {
		return &Trace{}
	}

	trace, err := c.client.Trace(&model.Trace{
		Name:     name,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse trace: %v", err)
		return &Trace{}
	}

	return &Trace{
		trace:   trace,
		enabled: true,
		ctx:     ctx,
		client:  c.client,
	}
}

// Trace represents a Langfuse trace
type Trace struct {
	trace   *model.Trace
	enabled bool
	ctx     context.Context
	client  *langfuse.Langfuse
}

// Generation creates a new generation span within the trace
func (t *Trace) Generation(name, modelName string, input interface{}) *Generation {
	if !t.enabled {
		return &Generation{}
	}

	now := time.Now()
	gen, err := t.client.Generation(&model.Generation{
		TraceID:   t.trace.ID,
		Name:      name,
		Model:     modelName,
		StartTime: &now,
		Input:     input,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse generation: %v", err)
		return &Generation{}
	}

	return &Generation{
		generation: gen,
		enabled:    true,
		client:     t.client,
	}
}

// Finish completes the trace and flushes data to Langfuse
func (t *Trace) Finish() {
	if t.enabled && t.client != nil {
		t.client.Flush(t.ctx)
	}
}

// Generation represents a Langfuse generation span
type Generation struct {
	generation *model.Generation
	enabled    bool
	client     *langfuse.Langfuse
}

// Succeed records output and usage, then ends the generation
func (g *Generation) Succeed(output string, usage llm.Usage) {
	if !g.enabled || g.generation == nil {
		return
	}
	g.generation.Output = output
	g.generation.Usage = model.Usage{
		Input:     usage.InputTokens,
		Output:    usage.OutputTokens,
		Total:     usage.TotalTokens,
		Unit:      model.ModelUsageUnitTokens,
		TotalCost: EstimateCost(g.generation.Model, usage),
	}
	g.end()
}

// Fail marks the generation as an error and ends it
func (g *Generation) Fail(err error) {
	if !g.enabled || g.generation == nil {
		return
	}
	g.generation.Level = model.ObservationLevelError
	g.generation.StatusMessage = err.Error()
	g.end()
}

func (g *Generation) end() {
	now := time.Now()
	g.generation.EndTime = &now
	if _, err := g.client.GenerationEnd(g.generation); err != nil {
		log.Printf("⚠️  Failed to end Langfuse generation: %v", err)
	}
}
