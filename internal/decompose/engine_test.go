package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/voxel-architect/internal/ingest"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
	"github.com/Conceptual-Machines/voxel-architect/internal/prompt"
)

// mockGenerator answers plan prompts with planText and chunk prompts with
// a cell document, unless failCell names the chunk to fail.
type mockGenerator struct {
	mu       sync.Mutex
	planText string
	planErr  error
	failCell string
	cellText string
	calls    []string
}

func (m *mockGenerator) Generate(ctx context.Context, p string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, p)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.HasPrefix(p, "Create a detailed plan") {
		return m.planText, m.planErr
	}
	if m.failCell != "" && strings.Contains(p, "This is chunk ("+m.failCell+")") {
		return "", errors.New("upstream timeout")
	}
	if m.cellText != "" {
		return m.cellText, nil
	}
	return cellDocument(), nil
}

func (m *mockGenerator) chunkCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, "Generate a voxel structure chunk") {
			n++
		}
	}
	return n
}

// cellDocument starts with the voxel (3,1,2) followed by a floor strip.
func cellDocument() string {
	parts := []string{`{"x":3,"y":1,"z":2,"material":"STONE_BRICKS"}`}
	for i := 0; i < 12; i++ {
		parts = append(parts, fmt.Sprintf(`{"x":%d,"y":0,"z":0,"material":"STONE"}`, i%8))
	}
	return `{"name":"cell","blocks":[` + strings.Join(parts, ",") + `]}`
}

func newEngine(t *testing.T, gen *mockGenerator, cfg Config, rec ChunkRecorder) *Engine {
	t.Helper()
	b, err := prompt.NewPromptBuilder()
	require.NoError(t, err)
	return NewEngine(gen, b, ingest.NewPipeline(), cfg, rec)
}

func TestChunksPerSide(t *testing.T) {
	tests := []struct {
		target, chunk, want int
	}{
		{512, 8, 2},
		{1000, 16, 1},
		{27000, 16, 3},
		{1, 16, 1},
		{0, 16, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChunksPerSide(tt.target, tt.chunk), "target %d chunk %d", tt.target, tt.chunk)
	}
}

func TestGenerateLarge_OffsetsCells(t *testing.T) {
	gen := &mockGenerator{}
	e := newEngine(t, gen, Config{ChunkSize: 8}, nil)

	s := e.GenerateLarge(context.Background(), "castle", 512, nil)
	require.NotNil(t, s)

	assert.Equal(t, "Large castle", s.Name)
	assert.Equal(t, models.Size{Width: 16, Height: 8, Depth: 16}, s.Size)
	assert.Equal(t, 4, gen.chunkCalls())
	require.Len(t, s.Placements, 4*13)

	// Cells merge row-major over (cx, cz): (0,0) (0,1) (1,0) (1,1).
	first := func(cell int) *models.Voxel { return s.Placements[cell*13] }
	assert.Equal(t, models.NewVoxel(3, 1, 2, "STONE_BRICKS"), first(0))
	assert.Equal(t, models.NewVoxel(3, 1, 10, "STONE_BRICKS"), first(1))
	assert.Equal(t, models.NewVoxel(11, 1, 2, "STONE_BRICKS"), first(2))
	assert.Equal(t, models.NewVoxel(11, 1, 10, "STONE_BRICKS"), first(3))
}

func TestGenerateLarge_ClipsToCellBounds(t *testing.T) {
	parts := []string{
		`{"x":8,"y":0,"z":0,"material":"GLASS"}`,
		`{"x":-1,"y":0,"z":0,"material":"GLASS"}`,
		`{"x":0,"y":8,"z":0,"material":"GLASS"}`,
		`{"x":0,"y":0,"z":12,"material":"GLASS"}`,
	}
	for i := 0; i < 12; i++ {
		parts = append(parts, fmt.Sprintf(`{"x":%d,"y":0,"z":7,"material":"STONE"}`, i%8))
	}
	gen := &mockGenerator{cellText: `{"name":"cell","blocks":[` + strings.Join(parts, ",") + `]}`}
	e := newEngine(t, gen, Config{ChunkSize: 8}, nil)

	s := e.GenerateLarge(context.Background(), "castle", 512, nil)
	require.Len(t, s.Placements, 4*12)
	for _, v := range s.Placements {
		assert.Equal(t, "STONE", v.Material)
		assert.True(t, v.X >= 0 && v.X < 16 && v.Z >= 0 && v.Z < 16, "voxel %+v outside the grid", *v)
	}
	// The z=7 strip of cell (0,0) stays there instead of reaching into (0,1).
	assert.Equal(t, 7, s.Placements[0].Z)
	assert.Equal(t, 15, s.Placements[12].Z)
}

type chunkFailures struct {
	mu sync.Mutex
	n  int
}

func (c *chunkFailures) RecordChunkFailure() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestGenerateLarge_FailedCellGetsFallback(t *testing.T) {
	gen := &mockGenerator{failCell: "1,0"}
	rec := &chunkFailures{}
	e := newEngine(t, gen, Config{ChunkSize: 8}, rec)

	var msgs []string
	s := e.GenerateLarge(context.Background(), "castle", 512, func(m string) { msgs = append(msgs, m) })

	fallback := FallbackCell(8)
	require.Len(t, s.Placements, 3*13+len(fallback))
	assert.Equal(t, 1, rec.n)
	assert.Contains(t, msgs, "Chunk 3 failed, creating fallback...")

	// The third cell is (1,0), offset by 8 on x.
	got := s.Placements[2*13]
	assert.Equal(t, models.NewVoxel(8, 0, 0, "STONE"), got)
	assert.Equal(t, "Large structure generation completed! Total blocks: "+fmt.Sprint(len(s.Placements)), msgs[len(msgs)-1])
}

func TestGenerateLarge_PlanFailureIsAdvisory(t *testing.T) {
	gen := &mockGenerator{planErr: errors.New("quota exceeded")}
	e := newEngine(t, gen, Config{ChunkSize: 8}, nil)

	s := e.GenerateLarge(context.Background(), "castle", 512, nil)
	assert.Len(t, s.Placements, 4*13)
}

func TestGenerateLarge_InterruptReturnsPartial(t *testing.T) {
	gen := &mockGenerator{}
	e := newEngine(t, gen, Config{ChunkSize: 8, Delay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *models.Structure, 1)
	go func() {
		done <- e.GenerateLarge(ctx, "castle", 512, nil)
	}()

	require.Eventually(t, func() bool { return gen.chunkCalls() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case s := <-done:
		assert.Len(t, s.Placements, 13, "only the first cell was issued")
	case <-time.After(5 * time.Second):
		t.Fatal("delay was not interrupted")
	}
}

func TestGenerateLarge_ConcurrentKeepsOrder(t *testing.T) {
	gen := &mockGenerator{}
	sequential := newEngine(t, gen, Config{ChunkSize: 8}, nil).GenerateLarge(context.Background(), "castle", 27000, nil)
	concurrent := newEngine(t, gen, Config{ChunkSize: 8, Concurrency: 4}, nil).GenerateLarge(context.Background(), "castle", 27000, nil)

	require.Equal(t, len(sequential.Placements), len(concurrent.Placements))
	assert.Equal(t, sequential.Placements, concurrent.Placements)
}

func TestCells(t *testing.T) {
	plan := strings.Join([]string{
		"Grid layout:",
		"Chunk (0,0): gatehouse with a portcullis",
		"short area",
		"The northern section holds the keep and great hall",
	}, "\n")

	cells := Cells(plan, 2, "castle")
	require.Len(t, cells, 4)
	assert.Equal(t, "castle - Chunk (0,0): gatehouse with a portcullis (chunk 0,0 of 2x2 structure)", cells[0].Description)
	assert.Equal(t, "castle - The northern section holds the keep and great hall (chunk 0,1 of 2x2 structure)", cells[1].Description)
	assert.Equal(t, "castle - Chunk (0,0): gatehouse with a portcullis (chunk 1,0 of 2x2 structure)", cells[2].Description)
	assert.Equal(t, 1, cells[2].ChunkX)
	assert.Equal(t, 0, cells[2].ChunkZ)
	assert.Equal(t, plan, cells[3].PlanContext)
}

func TestCells_DefaultRoles(t *testing.T) {
	cells := Cells("", 3, "city")
	require.Len(t, cells, 9)
	assert.Equal(t, "city - main entrance and foundation (chunk 0,0 of 3x3 structure)", cells[0].Description)
	assert.Equal(t, "city - main entrance and foundation (chunk 2,2 of 3x3 structure)", cells[8].Description)
}

func TestFallbackCell(t *testing.T) {
	voxels := FallbackCell(8)
	require.Len(t, voxels, 2*2*4)
	assert.Equal(t, "STONE", voxels[0].Material)
	assert.Equal(t, "COBBLESTONE", voxels[1].Material)
	for _, v := range voxels {
		assert.Zero(t, v.X%4)
		assert.Zero(t, v.Z%4)
		assert.Less(t, v.Y, 4)
	}
}
