package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/voxel-architect/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/voxel-architect/internal/api/middleware"
	"github.com/Conceptual-Machines/voxel-architect/internal/config"
	"github.com/Conceptual-Machines/voxel-architect/internal/metrics"
	"github.com/Conceptual-Machines/voxel-architect/internal/services"
)

func SetupRouter(cfg *config.Config, builds *services.BuildService, collector *metrics.Collector, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(collector))

	router.Use(apimiddleware.CORS(cfg.AllowedOrigins...))

	healthHandler := handlers.NewHealthHandler(builds)
	router.GET("/health", healthHandler.HealthCheck)

	metricsHandler := handlers.NewMetricsHandler(version, collector, builds.Scheduler())
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	v1 := router.Group("/api/v1")
	{
		buildHandler := handlers.NewBuildHandler(builds)
		eventsHandler := handlers.NewEventsHandler(builds, cfg.AllowedOrigins)
		limited := apimiddleware.RateLimit(cfg.APIRateLimit, time.Minute)

		v1.GET("/status", buildHandler.Status)
		v1.POST("/structures/preview", limited, buildHandler.Preview)

		v1.POST("/builds", limited, buildHandler.Create)
		v1.GET("/builds/:actor", buildHandler.Get)
		v1.DELETE("/builds/:actor", buildHandler.Cancel)
		v1.POST("/builds/:actor/confirm", buildHandler.Confirm)
		v1.DELETE("/builds/:actor/pending", buildHandler.Discard)
		v1.GET("/builds/:actor/events", eventsHandler.Stream)
	}

	return router
}
