package generation

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/Conceptual-Machines/voxel-architect/internal/ingest"
	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
	"github.com/Conceptual-Machines/voxel-architect/internal/prompt"
)

// LargeGenerator builds targets above the single-shot threshold.
type LargeGenerator interface {
	GenerateLarge(ctx context.Context, description string, targetSize int, onProgress func(string)) *models.Structure
}

// ServiceConfig selects between single-shot and decomposed generation.
type ServiceConfig struct {
	ChunkedEnabled   bool
	ChunkedThreshold int
	Workers          int
}

// Outcome is the eventual result of GenerateAsync. Err is set only when ctx
// ended before a worker was free.
type Outcome struct {
	Structure *models.Structure
	Err       error
}

// Service produces a valid structure for any description.
type Service struct {
	generator TextGenerator
	prompts   *prompt.Builder
	pipeline  *ingest.Pipeline
	large     LargeGenerator
	cfg       ServiceConfig
	workers   *semaphore.Weighted
}

// NewService wires a service. large may be nil, which disables decomposition.
func NewService(generator TextGenerator, prompts *prompt.Builder, pipeline *ingest.Pipeline, large LargeGenerator, cfg ServiceConfig) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Service{
		generator: generator,
		prompts:   prompts,
		pipeline:  pipeline,
		large:     large,
		cfg:       cfg,
		workers:   semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Configured reports whether the generator has credentials.
func (s *Service) Configured() bool {
	if c, ok := s.generator.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return s.generator != nil
}

// Generate returns a structure for description aiming at targetSize voxels.
// Upstream failures end in the archetype fallback, never an error.
func (s *Service) Generate(ctx context.Context, description string, targetSize int, onProgress func(string)) *models.Structure {
	if onProgress == nil {
		onProgress = func(string) {}
	}

	if s.cfg.ChunkedEnabled && s.large != nil && targetSize >= s.cfg.ChunkedThreshold {
		onProgress("Large structure detected, using chunked generation...")
		structure := s.large.GenerateLarge(ctx, description, targetSize, onProgress)
		if !structure.IsValid(s.pipeline.MinVoxels()) {
			logger.Warn("Chunked generation produced too few voxels, using fallback", logger.Fields{
				"description": description,
				"voxels":      structure.VoxelCount(),
			})
			return ingest.Fallback(description)
		}
		return structure
	}

	onProgress("Starting AI structure generation...")

	p, err := s.prompts.StructurePrompt(description, targetSize)
	if err != nil {
		logger.Error("Failed to build structure prompt", err, logger.Fields{"description": description})
		onProgress("AI generation failed, creating fallback structure...")
		return ingest.Fallback(description)
	}

	var raw string
	if pg, ok := s.generator.(ProgressGenerator); ok {
		raw, err = pg.GenerateWithProgress(ctx, p, onProgress)
	} else {
		raw, err = s.generator.Generate(ctx, p)
	}
	if err != nil {
		logger.Warn("Generation failed, using fallback structure", logger.Fields{
			"description": description,
			"error":       err.Error(),
		})
		onProgress("AI generation failed, creating fallback structure...")
		return ingest.Fallback(description)
	}

	onProgress("Processing AI response...")
	structure := s.pipeline.Ingest(raw, description)
	onProgress("Structure generation completed successfully!")
	return structure
}

// GenerateAsync runs Generate on the worker pool. The channel yields exactly
// one Outcome and is then closed.
func (s *Service) GenerateAsync(ctx context.Context, description string, targetSize int, onProgress func(string)) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		if err := s.workers.Acquire(ctx, 1); err != nil {
			out <- Outcome{Err: err}
			return
		}
		defer s.workers.Release(1)
		out <- Outcome{Structure: s.Generate(ctx, description, targetSize, onProgress)}
	}()
	return out
}
