// Package decompose generates structures too large for one generator call
// by tiling them into a grid of cubic cells.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"github.com/Conceptual-Machines/voxel-architect/internal/generation"
	"github.com/Conceptual-Machines/voxel-architect/internal/ingest"
	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
	"github.com/Conceptual-Machines/voxel-architect/internal/prompt"
)

const minHintLength = 20

// fallbackHints are assigned round-robin when the plan has no usable lines.
var fallbackHints = []string{
	"main entrance and foundation",
	"central courtyard area",
	"residential quarters",
	"decorative gardens",
	"defensive walls and towers",
	"storage and utility areas",
	"ceremonial halls",
	"connecting pathways",
}

// Config holds the tiling parameters.
type Config struct {
	ChunkSize   int
	Delay       time.Duration // pause between cell requests
	Concurrency int           // cells in flight, 1 means sequential
}

// ChunkRecorder is told about cells replaced by their fallback.
type ChunkRecorder interface {
	RecordChunkFailure()
}

// Engine tiles a large target into cells and stitches the results.
type Engine struct {
	generator generation.TextGenerator
	prompts   *prompt.Builder
	pipeline  *ingest.Pipeline
	cfg       Config
	recorder  ChunkRecorder
}

// NewEngine creates an engine. recorder may be nil.
func NewEngine(generator generation.TextGenerator, prompts *prompt.Builder, pipeline *ingest.Pipeline, cfg Config, recorder ChunkRecorder) *Engine {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 16
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Engine{
		generator: generator,
		prompts:   prompts,
		pipeline:  pipeline,
		cfg:       cfg,
		recorder:  recorder,
	}
}

// ChunksPerSide returns the grid edge used for a voxel target.
func ChunksPerSide(targetSize, chunkSize int) int {
	if chunkSize < 1 {
		return 1
	}
	// The epsilon keeps exact cubes from rounding down.
	estimated := int(math.Cbrt(float64(targetSize))+1e-9) * 2
	return max(1, estimated/chunkSize)
}

// cellResult is one cell's contribution, kept by index so concurrent
// generation still merges row-major.
type cellResult struct {
	voxels []*models.Voxel
	done   bool
}

// GenerateLarge builds a description too large for a single call. It never
// fails: cells that error get a pillared fallback, and cancelling ctx stops
// issuing cells and returns what was already generated. With Concurrency
// above 1, onProgress is called from several goroutines.
func (e *Engine) GenerateLarge(ctx context.Context, description string, targetSize int, onProgress func(string)) *models.Structure {
	if onProgress == nil {
		onProgress = func(string) {}
	}
	onProgress("Planning large structure generation...")

	size := e.cfg.ChunkSize
	cps := ChunksPerSide(targetSize, size)
	onProgress(fmt.Sprintf("Structure will be %dx%d chunks (%d total chunks)", cps, cps, cps*cps))

	plan := e.plan(ctx, description, cps, onProgress)
	cells := Cells(plan, cps, description)

	results := make([]cellResult, len(cells))
	var group errgroup.Group
	group.SetLimit(e.cfg.Concurrency)

	for i, cell := range cells {
		if i > 0 && e.cfg.Delay > 0 {
			if err := sleep(ctx, e.cfg.Delay); err != nil {
				logger.Warn("Decomposition interrupted, returning partial structure", logger.Fields{
					"cells_issued": i,
					"cells_total":  len(cells),
				})
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		generate := func() {
			onProgress(fmt.Sprintf("Generating chunk %d/%d (%s)", i+1, len(cells), cell.Description))
			results[i] = e.cell(ctx, i, cell, onProgress)
		}
		if e.cfg.Concurrency == 1 {
			generate()
			continue
		}
		group.Go(func() error {
			generate()
			return nil
		})
	}
	_ = group.Wait()

	combined := &models.Structure{
		Name:        "Large " + description,
		Description: "AI-generated large structure: " + description,
		Size:        models.Size{Width: cps * size, Height: size, Depth: cps * size},
	}
	for i, r := range results {
		if !r.done {
			continue
		}
		dx, dz := cells[i].ChunkX*size, cells[i].ChunkZ*size
		for _, v := range r.voxels {
			combined.Placements = append(combined.Placements, v.Offset(dx, 0, dz))
		}
	}

	onProgress(fmt.Sprintf("Large structure generation completed! Total blocks: %d", len(combined.Placements)))
	logger.Info("Generated large structure", logger.Fields{
		"voxels": len(combined.Placements),
		"cells":  len(cells),
	})
	return combined
}

// plan asks for the advisory layout. Failure yields an empty plan.
func (e *Engine) plan(ctx context.Context, description string, cps int, onProgress func(string)) string {
	onProgress("Creating overall structure plan...")

	p, err := e.prompts.PlanPrompt(description, cps)
	if err != nil {
		logger.Warn("Failed to build plan prompt", logger.Fields{"error": err.Error()})
		return ""
	}
	text, err := e.generator.Generate(ctx, p)
	if err != nil {
		logger.Warn("Planning pass failed, using default cell roles", logger.Fields{"error": err.Error()})
		return ""
	}
	return text
}

// cell generates one cell in local coordinates.
func (e *Engine) cell(ctx context.Context, index int, cell models.ChunkDescriptor, onProgress func(string)) cellResult {
	span := sentry.StartSpan(ctx, "decompose.cell")
	span.SetTag("chunk", fmt.Sprintf("%d,%d", cell.ChunkX, cell.ChunkZ))
	defer span.Finish()

	structure, err := e.generateCell(span.Context(), cell)
	if err != nil {
		if ctx.Err() != nil {
			span.Status = sentry.SpanStatusCanceled
			return cellResult{}
		}
		span.Status = sentry.SpanStatusInternalError
		logger.Warn("Failed to generate chunk", logger.Fields{
			"chunk": index + 1,
			"error": err.Error(),
		})
		onProgress(fmt.Sprintf("Chunk %d failed, creating fallback...", index+1))
		if e.recorder != nil {
			e.recorder.RecordChunkFailure()
		}
		return cellResult{voxels: FallbackCell(e.cfg.ChunkSize), done: true}
	}

	voxels := clip(structure.Placements, e.cfg.ChunkSize)
	if dropped := len(structure.Placements) - len(voxels); dropped > 0 {
		logger.Debug("Dropped voxels outside chunk bounds", logger.Fields{
			"chunk":   index + 1,
			"dropped": dropped,
		})
	}

	span.Status = sentry.SpanStatusOK
	onProgress(fmt.Sprintf("Chunk %d completed with %d blocks", index+1, len(voxels)))
	return cellResult{voxels: voxels, done: true}
}

// clip keeps the voxels inside the local cube [0, size) on every axis so a
// cell never spills into its neighbours.
func clip(voxels []*models.Voxel, size int) []*models.Voxel {
	inside := func(n int) bool { return n >= 0 && n < size }
	kept := make([]*models.Voxel, 0, len(voxels))
	for _, v := range voxels {
		if inside(v.X) && inside(v.Y) && inside(v.Z) {
			kept = append(kept, v)
		}
	}
	return kept
}

func (e *Engine) generateCell(ctx context.Context, cell models.ChunkDescriptor) (s *models.Structure, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chunk generation panicked: %v", r)
		}
	}()

	p, err := e.prompts.ChunkPrompt(cell, e.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	raw, err := e.generator.Generate(ctx, p)
	if err != nil {
		return nil, err
	}
	s = e.pipeline.Ingest(raw, cell.Description)
	if s == nil {
		return nil, errors.New("ingestion returned no structure")
	}
	return s, nil
}

// Cells assigns every grid cell its contextual description, x outer and z
// inner. Hints come from the plan's lines that mention a chunk, section or
// area, in document order, or from the default roles.
func Cells(plan string, cps int, description string) []models.ChunkDescriptor {
	hints := PlanHints(plan)
	if len(hints) == 0 {
		hints = fallbackHints
	}

	cells := make([]models.ChunkDescriptor, 0, cps*cps)
	for x := 0; x < cps; x++ {
		for z := 0; z < cps; z++ {
			hint := hints[len(cells)%len(hints)]
			cells = append(cells, models.ChunkDescriptor{
				ChunkX:      x,
				ChunkZ:      z,
				Description: fmt.Sprintf("%s - %s (chunk %d,%d of %dx%d structure)", description, hint, x, z, cps, cps),
				PlanContext: plan,
			})
		}
	}
	return cells
}

// PlanHints extracts per-cell role lines from plan text.
func PlanHints(plan string) []string {
	var hints []string
	for _, line := range strings.Split(plan, "\n") {
		if !mentionsCell(line) || len(line) <= minHintLength {
			continue
		}
		hints = append(hints, strings.TrimSpace(line))
	}
	return hints
}

func mentionsCell(line string) bool {
	return strings.Contains(line, "chunk") || strings.Contains(line, "Chunk") ||
		strings.Contains(line, "section") || strings.Contains(line, "area")
}

// FallbackCell is a grid of short pillars in local coordinates.
func FallbackCell(chunkSize int) []*models.Voxel {
	var voxels []*models.Voxel
	for x := 0; x < chunkSize; x += 4 {
		for z := 0; z < chunkSize; z += 4 {
			for y := 0; y < 4; y++ {
				material := "COBBLESTONE"
				if y == 0 {
					material = "STONE"
				}
				voxels = append(voxels, models.NewVoxel(x, y, z, material))
			}
		}
	}
	return voxels
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
