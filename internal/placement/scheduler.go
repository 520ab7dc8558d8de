// Package placement materializes structures into a host world over a
// sequence of bounded turns.
package placement

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/materials"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

var (
	// ErrBuildInProgress is returned by Start when the actor already has a build.
	ErrBuildInProgress = errors.New("build already in progress")
	// ErrInvalidStructure is wrapped by every ValidationError.
	ErrInvalidStructure = errors.New("invalid structure")
	// ErrBuildCancelled is returned by Start when Cancel won the race
	// against validation. The cancellation is the run's terminal state.
	ErrBuildCancelled = errors.New("build cancelled")
)

// maxCubeEdge keeps edge³ inside int64.
const maxCubeEdge = 1 << 20

// ValidationError explains why a structure was rejected before placement.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidStructure, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidStructure }

// State is a build's position in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Sink places one block in the host world.
type Sink interface {
	Place(loc models.Location, material, data string) error
}

// ProgressFunc receives human-readable progress messages.
type ProgressFunc func(message string)

// Recorder receives terminal build outcomes.
type Recorder interface {
	RecordBuildOutcome(state string, placed int)
}

// Result describes how a build ended.
type Result struct {
	Actor    string
	State    State
	Placed   int
	Total    int
	Turns    int
	Progress int
	Err      error
}

// Ticker drives turns. It matches the parts of time.Ticker the scheduler uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Config holds the scheduler limits.
type Config struct {
	MaxStructureSize int
	BlocksPerTurn    int
	TurnDelay        time.Duration
	LogBuilding      bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTicker replaces the turn clock.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(s *Scheduler) {
		s.newTicker = newTicker
	}
}

// WithRecorder reports terminal outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithOnFinish calls fn once per build after it reaches a terminal state.
func WithOnFinish(fn func(Result)) Option {
	return func(s *Scheduler) {
		s.onFinish = fn
	}
}

// Scheduler runs at most one build per actor.
type Scheduler struct {
	cfg       Config
	sink      Sink
	newTicker func(time.Duration) Ticker
	recorder  Recorder
	onFinish  func(Result)

	mu   sync.Mutex
	runs map[string]*run

	// beforeValidate runs between registering a run and validating it.
	beforeValidate func(actor string)
}

// run is the per-actor state record. mu serializes a turn against
// cancellation so no placement starts after Cancel returns.
type run struct {
	actor      string
	structure  *models.Structure
	origin     models.Location
	onProgress ProgressFunc

	progress atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	state    State
	cursor   int
	turns    int
	finished bool
}

// NewScheduler creates a scheduler placing into sink.
func NewScheduler(cfg Config, sink Sink, opts ...Option) *Scheduler {
	if cfg.BlocksPerTurn < 1 {
		cfg.BlocksPerTurn = 1
	}
	if cfg.TurnDelay <= 0 {
		cfg.TurnDelay = 100 * time.Millisecond
	}
	s := &Scheduler{
		cfg:       cfg,
		sink:      sink,
		newTicker: newTimeTicker,
		runs:      make(map[string]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the structure and begins placing it at origin.
// A second Start for an actor with a live build returns ErrBuildInProgress.
// A structure that fails validation ends in StateFailed and the
// *ValidationError is returned.
func (s *Scheduler) Start(actor string, structure *models.Structure, origin models.Location, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(string) {}
	}

	r := &run{
		actor:      actor,
		structure:  structure,
		origin:     origin,
		onProgress: onProgress,
		stop:       make(chan struct{}),
		state:      StateValidating,
	}

	s.mu.Lock()
	if _, busy := s.runs[actor]; busy {
		s.mu.Unlock()
		onProgress("Build already in progress!")
		return ErrBuildInProgress
	}
	s.runs[actor] = r
	s.mu.Unlock()

	if s.beforeValidate != nil {
		s.beforeValidate(actor)
	}
	err := s.validate(structure)

	r.mu.Lock()
	if r.finished {
		// Cancel already reported the terminal state.
		r.mu.Unlock()
		return ErrBuildCancelled
	}
	if err != nil {
		r.state = StateFailed
		r.finished = true
		r.mu.Unlock()

		s.remove(r)
		onProgress("Invalid structure data!")
		logger.Warn("Structure rejected", logger.Fields{"actor": actor, "reason": err.Error()})
		s.report(r, 0, err)
		return err
	}
	r.state = StateRunning
	r.mu.Unlock()

	onProgress(fmt.Sprintf("Starting construction of %s...", structure.Name))
	if s.cfg.LogBuilding {
		logger.Info("Build started", logger.Fields{
			"actor":  actor,
			"name":   structure.Name,
			"voxels": len(structure.Placements),
			"origin": fmt.Sprintf("%d,%d,%d", origin.X, origin.Y, origin.Z),
		})
	}

	go s.loop(r)
	return nil
}

func (s *Scheduler) validate(structure *models.Structure) error {
	if structure == nil || len(structure.Placements) == 0 {
		return &ValidationError{Reason: "structure has no voxels"}
	}
	limit := s.cfg.MaxStructureSize
	// Past maxCubeEdge the cube exceeds any slice length, so only small limits bind.
	if limit > 0 && limit <= maxCubeEdge {
		if maxVoxels := int64(limit) * int64(limit) * int64(limit); int64(len(structure.Placements)) > maxVoxels {
			return &ValidationError{Reason: fmt.Sprintf("%d voxels exceeds the maximum of %d", len(structure.Placements), maxVoxels)}
		}
	}
	for i, v := range structure.Placements {
		if v == nil {
			return &ValidationError{Reason: fmt.Sprintf("voxel %d is empty", i)}
		}
		if limit > 0 && (abs(v.X) > limit || abs(v.Y) > limit || abs(v.Z) > limit) {
			return &ValidationError{Reason: fmt.Sprintf("voxel %d at (%d,%d,%d) is outside ±%d", i, v.X, v.Y, v.Z, limit)}
		}
	}
	return nil
}

func (s *Scheduler) loop(r *run) {
	ticker := s.newTicker(s.cfg.TurnDelay)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C():
			if s.turn(r) {
				return
			}
		}
	}
}

// turn places up to BlocksPerTurn voxels and reports whether the run is over.
func (s *Scheduler) turn(r *run) bool {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return true
	}

	total := len(r.structure.Placements)
	step := max(1, total/10)
	r.turns++

	var err error
	for placed := 0; placed < s.cfg.BlocksPerTurn && r.cursor < total; placed++ {
		v := r.structure.Placements[r.cursor]
		if err = s.place(r, v); err != nil {
			break
		}
		r.cursor++
		r.progress.Store(int64(percent(r.cursor, total)))
		if r.cursor%step == 0 && r.cursor < total {
			r.onProgress(fmt.Sprintf("Construction progress: %d%% (%d/%d blocks)", r.progress.Load(), r.cursor, total))
		}
	}

	if err == nil && r.cursor < total {
		r.mu.Unlock()
		return false
	}

	r.finished = true
	cursor := r.cursor
	if err != nil {
		r.state = StateFailed
	} else {
		r.state = StateCompleted
	}
	r.mu.Unlock()

	s.remove(r)
	if err != nil {
		r.onProgress("Build failed: " + err.Error())
		logger.Error("Build failed", err, logger.Fields{"actor": r.actor, "placed": cursor, "total": total})
	} else {
		r.onProgress(fmt.Sprintf("Construction completed! Built %d blocks.", total))
		if s.cfg.LogBuilding {
			logger.Info("Build completed", logger.Fields{"actor": r.actor, "voxels": total, "turns": r.turns})
		}
	}
	s.report(r, cursor, err)
	return true
}

func (s *Scheduler) place(r *run, v *models.Voxel) error {
	material, ok := materials.Resolve(v.Material)
	if !ok {
		logger.Warn("Unsafe or unknown material replaced", logger.Fields{
			"actor":       r.actor,
			"material":    v.Material,
			"replacement": string(material),
		})
	}
	if err := s.sink.Place(r.origin.Add(v), string(material), v.Data); err != nil {
		return fmt.Errorf("place voxel %d: %w", r.cursor, err)
	}
	return nil
}

// Cancel stops the actor's build. It is a no-op when nothing is active.
// When Cancel returns no further voxels are placed for the actor.
func (s *Scheduler) Cancel(actor string) {
	s.mu.Lock()
	r, ok := s.runs[actor]
	if ok {
		delete(s.runs, actor)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.state = StateCancelled
	cursor := r.cursor
	r.mu.Unlock()

	r.onProgress("Build cancelled.")
	if s.cfg.LogBuilding {
		logger.Info("Build cancelled", logger.Fields{"actor": actor, "placed": cursor})
	}
	s.report(r, cursor, nil)
}

// CancelAll cancels every live build.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	actors := make([]string, 0, len(s.runs))
	for actor := range s.runs {
		actors = append(actors, actor)
	}
	s.mu.Unlock()

	for _, actor := range actors {
		s.Cancel(actor)
	}
}

// HasActive reports whether the actor has a build that has not finished.
func (s *Scheduler) HasActive(actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[actor]
	return ok
}

// Progress returns the actor's completion percentage, 0 when idle.
func (s *Scheduler) Progress(actor string) int {
	s.mu.Lock()
	r, ok := s.runs[actor]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return int(r.progress.Load())
}

// ActiveCount returns the number of live builds.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// remove drops the entry only if it still belongs to r.
func (s *Scheduler) remove(r *run) {
	s.mu.Lock()
	if s.runs[r.actor] == r {
		delete(s.runs, r.actor)
	}
	s.mu.Unlock()
}

func (s *Scheduler) report(r *run, placed int, err error) {
	total := 0
	if r.structure != nil {
		total = len(r.structure.Placements)
	}
	res := Result{
		Actor:    r.actor,
		State:    r.state,
		Placed:   placed,
		Total:    total,
		Turns:    r.turns,
		Progress: percent(placed, total),
		Err:      err,
	}
	if s.recorder != nil {
		s.recorder.RecordBuildOutcome(string(res.State), placed)
	}
	if s.onFinish != nil {
		s.onFinish(res)
	}
}

func percent(cursor, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(cursor) / float64(total) * 100))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
