package ingest

import (
	"errors"
	"strings"

	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/materials"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

// Strategy names, as reported in results and metrics.
const (
	StrategyDirect      = "direct"
	StrategyExtraction  = "extraction"
	StrategyIncremental = "incremental"
	StrategyRepair      = "repair"
	StrategyFallback    = "fallback"
)

var (
	errNoObject      = errors.New("no JSON object found in response")
	errNothingToFix  = errors.New("repair produced no changes")
	errNoPlacements  = errors.New("no placements parsed")
	errBelowMinimum  = errors.New("structure has too few voxels")
	errEmptyResponse = errors.New("empty response")
)

// Result is the tagged outcome of one strategy.
type Result struct {
	Structure *models.Structure
	Strategy  string
	Err       error
}

// OK reports whether the strategy produced a structure.
func (r Result) OK() bool {
	return r.Err == nil && r.Structure != nil
}

// Strategy turns cleaned or raw generator text into a structure.
type Strategy interface {
	Name() string
	Parse(raw string) Result
}

// Recorder observes which strategy won for each ingested response.
type Recorder interface {
	RecordIngestStrategy(strategy string, suspect bool)
}

// Pipeline converts generator output into a valid structure. It never fails:
// when no parsing strategy yields a valid structure it synthesizes one.
type Pipeline struct {
	minVoxels  int
	strategies []Strategy
	recorder   Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMinVoxels overrides the validity threshold.
func WithMinVoxels(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.minVoxels = n
		}
	}
}

// WithRecorder attaches a strategy recorder (metrics).
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// NewPipeline builds the default cascade: direct, extraction, incremental, repair.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		minVoxels: models.MinVoxelThreshold,
		strategies: []Strategy{
			directStrategy{},
			extractionStrategy{},
			incrementalStrategy{},
			repairStrategy{},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MinVoxels returns the validity threshold in use.
func (p *Pipeline) MinVoxels() int {
	return p.minVoxels
}

// Ingest returns the first valid structure produced by the cascade, or an
// archetype structure for description when every strategy fails.
func (p *Pipeline) Ingest(raw, description string) *models.Structure {
	return p.IngestResult(raw, description).Structure
}

// IngestResult is Ingest with the winning strategy attached.
func (p *Pipeline) IngestResult(raw, description string) Result {
	suspect := IsSuspect(Clean(raw))
	logger.Info("Processing generator response", logger.Fields{
		"chars":   len(raw),
		"suspect": suspect,
	})

	for _, s := range p.strategies {
		res := p.attempt(s, raw)
		if res.OK() {
			logger.Info("Parsed structure", logger.Fields{
				"strategy": res.Strategy,
				"voxels":   res.Structure.VoxelCount(),
			})
			p.record(res.Strategy, suspect)
			return res
		}
		logger.Debug("Parsing strategy failed", logger.Fields{
			"strategy": s.Name(),
			"error":    res.Err,
		})
	}

	logger.Warn("All parsing strategies failed, generating fallback structure", logger.Fields{
		"description": description,
	})
	p.record(StrategyFallback, suspect)
	return Result{Structure: Fallback(description), Strategy: StrategyFallback}
}

// attempt runs one strategy and applies the validity predicate.
func (p *Pipeline) attempt(s Strategy, raw string) (res Result) {
	defer func() {
		// Strategies operate on adversarial input; contain any panic to this strategy.
		if r := recover(); r != nil {
			res = Result{Strategy: s.Name(), Err: errors.New("strategy panicked")}
		}
	}()

	res = s.Parse(raw)
	res.Strategy = s.Name()
	if res.Err != nil {
		return res
	}
	if res.Structure == nil {
		res.Err = errNoPlacements
		return res
	}
	finish(res.Structure)
	if !res.Structure.IsValid(p.minVoxels) {
		return Result{Strategy: s.Name(), Err: errBelowMinimum}
	}
	return res
}

func (p *Pipeline) record(strategy string, suspect bool) {
	if p.recorder != nil {
		p.recorder.RecordIngestStrategy(strategy, suspect)
	}
}

// finish normalizes a parsed structure. Document decoders keep an element
// without a material and it gets the default solid material here; the
// incremental scan only salvages elements that name their material.
func finish(s *models.Structure) {
	s.CompactPlacements()
	for _, v := range s.Placements {
		if strings.TrimSpace(v.Material) == "" {
			v.Material = string(materials.Default)
		}
	}
	s.NormalizeSize()
	if s.Name == "" {
		s.Name = "Generated Structure"
	}
	if s.Description == "" {
		s.Description = "AI Generated Structure"
	}
}
