package metrics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Collector keeps process-local counters and forwards every event to
// CloudWatch and Sentry. A nil CloudWatch client is allowed.
type Collector struct {
	cloudwatch *Client
	sentry     *SentryMetrics

	mu       sync.Mutex
	counters map[string]int64
}

// NewCollector creates a collector. cw may be nil.
func NewCollector(cw *Client) *Collector {
	return &Collector{
		cloudwatch: cw,
		sentry:     NewSentryMetrics(),
		counters:   map[string]int64{},
	}
}

func (c *Collector) add(name string, delta int64) {
	c.mu.Lock()
	c.counters[name] += delta
	c.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (c *Collector) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Names returns the counter names in sorted order.
func (c *Collector) Names() []string {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RecordAPIRequest counts one HTTP request.
func (c *Collector) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	c.add("api.requests", 1)
	if statusCode >= httpStatusServerError {
		c.add("api.errors", 1)
	}
	c.sentry.RecordAPIRequest(ctx, endpoint, statusCode, duration)
	c.cloudwatch.RecordAPIRequest(endpoint, statusCode, duration)
}

// RecordGeneration counts one upstream generator call.
func (c *Collector) RecordGeneration(ctx context.Context, model string, duration time.Duration, success bool, inputTokens, outputTokens int) {
	if success {
		c.add("generation.success", 1)
		c.add("generation.tokens", int64(inputTokens+outputTokens))
		c.sentry.RecordTokenUsage(ctx, model, inputTokens, outputTokens)
		c.cloudwatch.RecordTokenUsage(model, inputTokens, outputTokens)
	} else {
		c.add("generation.failure", 1)
	}
	c.sentry.RecordGenerationDuration(ctx, duration, success)
	c.cloudwatch.RecordGenerationDuration(duration, success)
}

// RecordIngestStrategy counts the winning parsing strategy.
func (c *Collector) RecordIngestStrategy(strategy string, suspect bool) {
	c.add("ingest."+strategy, 1)
	if suspect {
		c.add("ingest.suspect", 1)
	}
	c.cloudwatch.RecordIngestStrategy(strategy, suspect)
}

// RecordChunkFailure counts a decomposition cell that fell back.
func (c *Collector) RecordChunkFailure() {
	c.add("decompose.chunk_failures", 1)
	c.cloudwatch.RecordChunkFailure()
}

// RecordBuildOutcome counts a terminal placement state.
func (c *Collector) RecordBuildOutcome(state string, placed int) {
	c.add("builds."+state, 1)
	c.add("builds.voxels_placed", int64(placed))
	c.cloudwatch.RecordBuildOutcome(state, placed)
}
