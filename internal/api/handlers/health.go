package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusReporter reports whether the generator has credentials.
type StatusReporter interface {
	Configured() bool
}

// HealthHandler answers liveness checks.
type HealthHandler struct {
	generator StatusReporter
}

func NewHealthHandler(generator StatusReporter) *HealthHandler {
	return &HealthHandler{generator: generator}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	generatorStatus := "not_configured"
	if h.generator != nil && h.generator.Configured() {
		generatorStatus = "configured"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"generator": generatorStatus,
	})
}
