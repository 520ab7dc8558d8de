package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/voxel-architect/internal/generation"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
	"github.com/Conceptual-Machines/voxel-architect/internal/services"
	"github.com/Conceptual-Machines/voxel-architect/internal/world"
)

type mockGenerator struct {
	structure  *models.Structure
	configured bool
}

func (m *mockGenerator) GenerateAsync(_ context.Context, _ string, _ int, onProgress func(string)) <-chan generation.Outcome {
	out := make(chan generation.Outcome, 1)
	onProgress("Starting AI structure generation...")
	out <- generation.Outcome{Structure: m.structure}
	close(out)
	return out
}

func (m *mockGenerator) Configured() bool { return m.configured }

func column(n int) *models.Structure {
	s := &models.Structure{Name: "Column", Description: "a column", Size: models.Size{Width: 1, Height: n, Depth: 1}}
	for y := 0; y < n; y++ {
		s.Placements = append(s.Placements, models.NewVoxel(0, y, 0, "QUARTZ_PILLAR"))
	}
	return s
}

func newTestRouter(t *testing.T, gen *mockGenerator) (*gin.Engine, *services.BuildService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	builds := services.NewBuildService(gen, world.NewMemory(), services.Config{
		MaxStructureSize:      100,
		RequireConfirmation:   true,
		ConfirmationThreshold: 50,
		BlocksPerTurn:         10,
		TurnDelay:             time.Millisecond,
	})
	t.Cleanup(builds.CancelAll)

	h := NewBuildHandler(builds)
	r := gin.New()
	r.GET("/status", h.Status)
	r.POST("/preview", h.Preview)
	r.POST("/builds", h.Create)
	r.GET("/builds/:actor", h.Get)
	r.DELETE("/builds/:actor", h.Cancel)
	r.POST("/builds/:actor/confirm", h.Confirm)
	r.DELETE("/builds/:actor/pending", h.Discard)
	return r, builds
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreate_StartsBuild(t *testing.T) {
	r, builds := newTestRouter(t, &mockGenerator{structure: column(20), configured: true})

	w := do(r, http.MethodPost, "/builds", gin.H{
		"actor_id":    "alex",
		"description": "a quartz column",
		"origin":      gin.H{"x": 10, "y": 64, "z": -3},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "started", body["status"])
	assert.EqualValues(t, 20, body["voxels"])

	require.Eventually(t, func() bool { return builds.State("alex").LastState == "completed" }, 5*time.Second, 5*time.Millisecond)

	w = do(r, http.MethodGet, "/builds/alex", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w)
	assert.Equal(t, false, state["active"])
	assert.Equal(t, "completed", state["last_state"])
}

func TestCreate_NeedsConfirmationThenConfirm(t *testing.T) {
	r, _ := newTestRouter(t, &mockGenerator{structure: column(80), configured: true})

	w := do(r, http.MethodPost, "/builds", gin.H{"actor_id": "alex", "description": "a tall column"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "needs_confirmation", decode(t, w)["status"])

	w = do(r, http.MethodPost, "/builds/alex/confirm", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(r, http.MethodPost, "/builds/alex/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscard(t *testing.T) {
	r, _ := newTestRouter(t, &mockGenerator{structure: column(80), configured: true})

	do(r, http.MethodPost, "/builds", gin.H{"actor_id": "alex", "description": "a tall column"})

	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/builds/alex/pending", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/builds/alex/pending", nil).Code)
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		gen        *mockGenerator
		body       any
		wantStatus int
	}{
		{
			name:       "missing actor",
			gen:        &mockGenerator{structure: column(20), configured: true},
			body:       gin.H{"description": "a column"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank description",
			gen:        &mockGenerator{structure: column(20), configured: true},
			body:       gin.H{"actor_id": "alex", "description": "   "},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not configured",
			gen:        &mockGenerator{structure: column(20)},
			body:       gin.H{"actor_id": "alex", "description": "a column"},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "out of bounds structure",
			gen:        &mockGenerator{structure: &models.Structure{Name: "Spike", Placements: []*models.Voxel{models.NewVoxel(0, 500, 0, "STONE")}}, configured: true},
			body:       gin.H{"actor_id": "alex", "description": "a spike"},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, tt.gen)
			w := do(r, http.MethodPost, "/builds", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Contains(t, decode(t, w), "error")
		})
	}
}

func TestCancel_AlwaysOK(t *testing.T) {
	r, _ := newTestRouter(t, &mockGenerator{structure: column(20), configured: true})

	w := do(r, http.MethodDelete, "/builds/nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["cancelled"])
}

func TestPreview(t *testing.T) {
	r, _ := newTestRouter(t, &mockGenerator{structure: column(20), configured: true})

	w := do(r, http.MethodPost, "/preview", gin.H{"description": "a column"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	preview := body["preview"].(map[string]any)
	assert.EqualValues(t, 20, preview["total_voxels"])
	assert.Equal(t, "1x20x1", preview["dimensions"])
	assert.NotEmpty(t, body["lines"])
}

func TestStatus(t *testing.T) {
	r, _ := newTestRouter(t, &mockGenerator{configured: true})

	w := do(r, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["configured"])
	settings := body["settings"].(map[string]any)
	assert.EqualValues(t, 10, settings["blocks_per_turn"])
	assert.EqualValues(t, 100, settings["max_structure_size"])
}
