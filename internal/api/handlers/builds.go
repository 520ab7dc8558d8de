package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/voxel-architect/internal/generation"
	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
	"github.com/Conceptual-Machines/voxel-architect/internal/placement"
	"github.com/Conceptual-Machines/voxel-architect/internal/services"
)

type BuildHandler struct {
	builds *services.BuildService
}

func NewBuildHandler(builds *services.BuildService) *BuildHandler {
	return &BuildHandler{builds: builds}
}

type PreviewRequest struct {
	Description string `json:"description" binding:"required"`
}

type BuildRequest struct {
	ActorID     string          `json:"actor_id" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Origin      models.Location `json:"origin"`
}

func validDescription(c *gin.Context, description string) (string, bool) {
	description = strings.TrimSpace(description)
	if description == "" || len(description) > maxDescriptionLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description must be between 1 and 500 characters"})
		return "", false
	}
	return description, true
}

// Status returns configuration and load
func (h *BuildHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.builds.Status())
}

// Preview generates a structure and returns its summary without building it
func (h *BuildHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	description, ok := validDescription(c, req.Description)
	if !ok {
		return
	}

	preview, _, err := h.builds.Preview(c.Request.Context(), description, nil)
	if err != nil {
		h.respondError(c, "Preview failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"preview": preview,
		"lines":   preview.Lines(),
	})
}

// Create generates a structure for an actor and starts or parks the build
func (h *BuildHandler) Create(c *gin.Context) {
	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	description, ok := validDescription(c, req.Description)
	if !ok {
		return
	}

	res, err := h.builds.Build(c.Request.Context(), req.ActorID, description, req.Origin, nil)
	if err != nil {
		h.respondError(c, "Build failed", err)
		return
	}

	if res.Status == services.BuildNeedsConfirmation {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// Confirm starts a parked build
func (h *BuildHandler) Confirm(c *gin.Context) {
	res, err := h.builds.Confirm(c.Param("actor"))
	if err != nil {
		h.respondError(c, "Confirm failed", err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// Discard drops a parked build
func (h *BuildHandler) Discard(c *gin.Context) {
	if err := h.builds.Discard(c.Param("actor")); err != nil {
		h.respondError(c, "Discard failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discarded": true})
}

// Get returns the actor's build state
func (h *BuildHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.builds.State(c.Param("actor")))
}

// Cancel stops the actor's build. Cancelling nothing still succeeds.
func (h *BuildHandler) Cancel(c *gin.Context) {
	actor := c.Param("actor")
	wasActive := h.builds.State(actor).Active
	h.builds.Cancel(actor)
	c.JSON(http.StatusOK, gin.H{"cancelled": wasActive})
}

func (h *BuildHandler) respondError(c *gin.Context, msg string, err error) {
	var vErr *placement.ValidationError
	switch {
	case errors.Is(err, generation.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI is not configured"})
	case errors.Is(err, placement.ErrBuildInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Build already in progress"})
	case errors.Is(err, placement.ErrBuildCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": "Build cancelled"})
	case errors.Is(err, services.ErrNoPendingBuild):
		c.JSON(http.StatusNotFound, gin.H{"error": "No pending build"})
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": vErr.Reason})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request cancelled"})
	default:
		logger.Error(msg, err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
