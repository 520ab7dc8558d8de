package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Conceptual-Machines/voxel-architect/internal/generation"
	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
	"github.com/Conceptual-Machines/voxel-architect/internal/placement"
)

// ErrNoPendingBuild is returned by Confirm and Discard when nothing is parked.
var ErrNoPendingBuild = errors.New("no pending build")

// Generator is the part of generation.Service the build service needs.
type Generator interface {
	GenerateAsync(ctx context.Context, description string, targetSize int, onProgress func(string)) <-chan generation.Outcome
	Configured() bool
}

// BuildStatus is the immediate answer to a build request.
type BuildStatus string

const (
	BuildStarted           BuildStatus = "started"
	BuildNeedsConfirmation BuildStatus = "needs_confirmation"
)

// BuildResult describes an accepted build request.
type BuildResult struct {
	ID     string      `json:"id"`
	Actor  string      `json:"actor"`
	Status BuildStatus `json:"status"`
	Name   string      `json:"name"`
	Voxels int         `json:"voxels"`
	Size   models.Size `json:"size"`
}

// BuildState is what an actor's build looks like right now.
type BuildState struct {
	Actor     string `json:"actor"`
	Active    bool   `json:"active"`
	Progress  int    `json:"progress"`
	Pending   bool   `json:"pending"`
	LastState string `json:"last_state,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Config holds the build limits and the settings reported by Status.
type Config struct {
	MaxStructureSize      int
	RequireConfirmation   bool
	ConfirmationThreshold int

	Model            string
	MaxTokens        int
	Temperature      float64
	BlocksPerTurn    int
	TurnDelay        time.Duration
	ChunkedEnabled   bool
	ChunkedThreshold int
	ChunkSize        int
}

// Settings are the effective performance settings.
type Settings struct {
	Model                 string  `json:"model"`
	MaxTokens             int     `json:"max_tokens"`
	Temperature           float64 `json:"temperature"`
	MaxStructureSize      int     `json:"max_structure_size"`
	RequireConfirmation   bool    `json:"require_confirmation"`
	ConfirmationThreshold int     `json:"confirmation_threshold"`
	BlocksPerTurn         int     `json:"blocks_per_turn"`
	TurnDelayMS           int64   `json:"turn_delay_ms"`
	ChunkedEnabled        bool    `json:"chunked_enabled"`
	ChunkedThreshold      int     `json:"chunked_threshold"`
	ChunkSize             int     `json:"chunk_size"`
}

// Status is the service overview.
type Status struct {
	Configured    bool     `json:"configured"`
	ActiveBuilds  int      `json:"active_builds"`
	PendingBuilds int      `json:"pending_builds"`
	Settings      Settings `json:"settings"`
}

type pendingBuild struct {
	id        string
	structure *models.Structure
	origin    models.Location
}

// BuildService ties generation to placement for each actor.
type BuildService struct {
	generator Generator
	scheduler *placement.Scheduler
	cfg       Config
	events    *hub

	mu         sync.Mutex
	generating map[string]bool
	pending    map[string]*pendingBuild
	finished   map[string]placement.Result
}

// NewBuildService creates the service and its scheduler placing into sink.
func NewBuildService(generator Generator, sink placement.Sink, cfg Config, opts ...placement.Option) *BuildService {
	s := &BuildService{
		generator:  generator,
		cfg:        cfg,
		events:     newHub(),
		generating: make(map[string]bool),
		pending:    make(map[string]*pendingBuild),
		finished:   make(map[string]placement.Result),
	}
	opts = append(opts, placement.WithOnFinish(s.onFinish))
	s.scheduler = placement.NewScheduler(placement.Config{
		MaxStructureSize: cfg.MaxStructureSize,
		BlocksPerTurn:    cfg.BlocksPerTurn,
		TurnDelay:        cfg.TurnDelay,
		LogBuilding:      true,
	}, sink, opts...)
	return s
}

// Configured reports whether the generator has credentials.
func (s *BuildService) Configured() bool {
	return s.generator.Configured()
}

// Scheduler exposes the placement scheduler.
func (s *BuildService) Scheduler() *placement.Scheduler {
	return s.scheduler
}

// Preview generates a structure for description and summarizes it.
func (s *BuildService) Preview(ctx context.Context, description string, onProgress func(string)) (*Preview, *models.Structure, error) {
	if !s.generator.Configured() {
		return nil, nil, generation.ErrNotConfigured
	}
	outcome := <-s.generator.GenerateAsync(ctx, description, PreviewTarget, onProgress)
	if outcome.Err != nil {
		return nil, nil, outcome.Err
	}
	p := Summarize(outcome.Structure)
	return &p, outcome.Structure, nil
}

// Build generates a structure for the actor and either starts placing it at
// origin or parks it until Confirm when it is larger than the threshold.
// An actor with a parked structure must Confirm or Discard it first.
func (s *BuildService) Build(ctx context.Context, actor, description string, origin models.Location, onProgress func(string)) (*BuildResult, error) {
	if !s.generator.Configured() {
		return nil, generation.ErrNotConfigured
	}

	s.mu.Lock()
	_, parked := s.pending[actor]
	if s.generating[actor] || parked || s.scheduler.HasActive(actor) {
		s.mu.Unlock()
		if parked {
			s.progressFor(actor, onProgress)("A structure is awaiting confirmation. Confirm or discard it first.")
		}
		return nil, placement.ErrBuildInProgress
	}
	s.generating[actor] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.generating, actor)
		s.mu.Unlock()
	}()

	progress := s.progressFor(actor, onProgress)
	outcome := <-s.generator.GenerateAsync(ctx, description, s.cfg.MaxStructureSize, progress)
	if outcome.Err != nil {
		return nil, fmt.Errorf("generate structure: %w", outcome.Err)
	}
	structure := outcome.Structure

	res := &BuildResult{
		ID:     uuid.NewString(),
		Actor:  actor,
		Name:   structure.Name,
		Voxels: structure.VoxelCount(),
		Size:   structure.Size,
	}

	if s.cfg.RequireConfirmation && res.Voxels > s.cfg.ConfirmationThreshold {
		s.mu.Lock()
		s.pending[actor] = &pendingBuild{id: res.ID, structure: structure, origin: origin}
		s.mu.Unlock()
		progress(fmt.Sprintf("Structure has %d blocks. Confirm to build or discard.", res.Voxels))
		logger.Info("Build awaiting confirmation", logger.Fields{"actor": actor, "build_id": res.ID, "voxels": res.Voxels})
		res.Status = BuildNeedsConfirmation
		return res, nil
	}

	if err := s.start(actor, res.ID, structure, origin, progress); err != nil {
		return nil, err
	}
	res.Status = BuildStarted
	return res, nil
}

// Confirm starts the actor's parked structure.
func (s *BuildService) Confirm(actor string) (*BuildResult, error) {
	s.mu.Lock()
	p, ok := s.pending[actor]
	if ok {
		delete(s.pending, actor)
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoPendingBuild
	}

	if err := s.start(actor, p.id, p.structure, p.origin, s.progressFor(actor, nil)); err != nil {
		if errors.Is(err, placement.ErrBuildInProgress) {
			s.mu.Lock()
			s.pending[actor] = p
			s.mu.Unlock()
		}
		return nil, err
	}
	return &BuildResult{
		ID:     p.id,
		Actor:  actor,
		Status: BuildStarted,
		Name:   p.structure.Name,
		Voxels: p.structure.VoxelCount(),
		Size:   p.structure.Size,
	}, nil
}

// Discard drops the actor's parked structure.
func (s *BuildService) Discard(actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[actor]; !ok {
		return ErrNoPendingBuild
	}
	delete(s.pending, actor)
	return nil
}

// Cancel stops the actor's build. Cancelling nothing is a no-op.
func (s *BuildService) Cancel(actor string) {
	s.scheduler.Cancel(actor)
}

// CancelAll stops every build.
func (s *BuildService) CancelAll() {
	s.scheduler.CancelAll()
}

// State reports the actor's current build.
func (s *BuildService) State(actor string) BuildState {
	s.mu.Lock()
	_, pending := s.pending[actor]
	last, hasLast := s.finished[actor]
	s.mu.Unlock()

	st := BuildState{
		Actor:    actor,
		Active:   s.scheduler.HasActive(actor),
		Progress: s.scheduler.Progress(actor),
		Pending:  pending,
	}
	if hasLast && !st.Active {
		st.LastState = string(last.State)
		if last.Err != nil {
			st.LastError = last.Err.Error()
		}
	}
	return st
}

// Status reports configuration and load.
func (s *BuildService) Status() Status {
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()

	return Status{
		Configured:    s.generator.Configured(),
		ActiveBuilds:  s.scheduler.ActiveCount(),
		PendingBuilds: pending,
		Settings: Settings{
			Model:                 s.cfg.Model,
			MaxTokens:             s.cfg.MaxTokens,
			Temperature:           s.cfg.Temperature,
			MaxStructureSize:      s.cfg.MaxStructureSize,
			RequireConfirmation:   s.cfg.RequireConfirmation,
			ConfirmationThreshold: s.cfg.ConfirmationThreshold,
			BlocksPerTurn:         s.cfg.BlocksPerTurn,
			TurnDelayMS:           s.cfg.TurnDelay.Milliseconds(),
			ChunkedEnabled:        s.cfg.ChunkedEnabled,
			ChunkedThreshold:      s.cfg.ChunkedThreshold,
			ChunkSize:             s.cfg.ChunkSize,
		},
	}
}

// Subscribe streams the actor's progress events until the returned func is called.
func (s *BuildService) Subscribe(actor string) (<-chan Event, func()) {
	return s.events.subscribe(actor)
}

func (s *BuildService) start(actor, id string, structure *models.Structure, origin models.Location, progress func(string)) error {
	if err := s.scheduler.Start(actor, structure, origin, progress); err != nil {
		return err
	}
	logger.Info("Build started", logger.Fields{"actor": actor, "build_id": id, "voxels": structure.VoxelCount()})
	return nil
}

func (s *BuildService) progressFor(actor string, onProgress func(string)) func(string) {
	return func(msg string) {
		if onProgress != nil {
			onProgress(msg)
		}
		s.events.publish(Event{
			Actor:    actor,
			Message:  msg,
			Progress: s.scheduler.Progress(actor),
			Time:     time.Now(),
		})
	}
}

func (s *BuildService) onFinish(r placement.Result) {
	s.mu.Lock()
	s.finished[r.Actor] = r
	s.mu.Unlock()

	s.events.publish(Event{
		Actor:    r.Actor,
		Message:  fmt.Sprintf("Build %s (%d/%d blocks)", r.State, r.Placed, r.Total),
		Progress: r.Progress,
		State:    string(r.State),
		Time:     time.Now(),
	})
}
