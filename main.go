package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Conceptual-Machines/voxel-architect/internal/api"
	"github.com/Conceptual-Machines/voxel-architect/internal/config"
	"github.com/Conceptual-Machines/voxel-architect/internal/decompose"
	"github.com/Conceptual-Machines/voxel-architect/internal/generation"
	"github.com/Conceptual-Machines/voxel-architect/internal/ingest"
	"github.com/Conceptual-Machines/voxel-architect/internal/llm"
	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/metrics"
	"github.com/Conceptual-Machines/voxel-architect/internal/observability"
	"github.com/Conceptual-Machines/voxel-architect/internal/placement"
	"github.com/Conceptual-Machines/voxel-architect/internal/prompt"
	"github.com/Conceptual-Machines/voxel-architect/internal/services"
	"github.com/Conceptual-Machines/voxel-architect/internal/world"
)

const (
	sentryFlushTimeout = 2 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg       *config.Config
	collector *metrics.Collector
	langfuse  *observability.LangfuseClient
	builds    *services.BuildService
}

var rootCmd = &cobra.Command{
	Use:   "voxel-architect",
	Short: "Generate voxel structures from text and place them block by block",
	Long: `voxel-architect turns a natural-language description into a voxel structure
using a text generator, then places it into the world over successive turns.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var previewCmd = &cobra.Command{
	Use:   "preview [description]",
	Short: "Generate a structure once and print its preview as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPreview,
}

func init() {
	rootCmd.AddCommand(serveCmd, previewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*app, func(), error) {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetDebug(!cfg.IsProduction())

	cleanup := initSentry(cfg)

	langfuse := observability.InitializeLangfuse(ctx, cfg)
	collector := metrics.NewCollector(metrics.NewClient(ctx, cfg.Environment))

	prompts, err := prompt.NewPromptBuilder()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var provider llm.Provider
	if cfg.IsConfigured() {
		factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
		provider, err = factory.GetProvider(ctx, cfg.GeminiModel, cfg.LLMProvider)
		if err != nil {
			sentry.CaptureException(err)
			log.Printf("⚠️  Generator unavailable: %v", err)
			provider = nil
		}
	} else {
		log.Println("⚠️  No generator API key configured, build requests will be rejected")
	}

	client := generation.NewClient(provider, generation.ClientConfig{
		Model:          cfg.GeminiModel,
		SystemPrompt:   prompt.SystemPrompt,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		RequestTimeout: cfg.RequestTimeout,
		RetryCount:     cfg.RetryCount,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RateLimit:      cfg.GenerationRateLimit,
		LogRequests:    cfg.LogAIRequests,
	}, generation.WithClientRecorder(collector), generation.WithTracer(langfuse))

	pipeline := ingest.NewPipeline(ingest.WithRecorder(collector))
	engine := decompose.NewEngine(client, prompts, pipeline, decompose.Config{
		ChunkSize:   cfg.ChunkSize,
		Delay:       cfg.ChunkDelay,
		Concurrency: cfg.ChunkConcurrency,
	}, collector)
	generator := generation.NewService(client, prompts, pipeline, engine, generation.ServiceConfig{
		ChunkedEnabled:   cfg.ChunkedEnabled,
		ChunkedThreshold: cfg.ChunkedThreshold,
		Workers:          cfg.GenerationWorkers,
	})

	builds := services.NewBuildService(generator, world.NewMemory(), services.Config{
		MaxStructureSize:      cfg.MaxStructureSize,
		RequireConfirmation:   cfg.RequireConfirmation,
		ConfirmationThreshold: cfg.ConfirmationThreshold,
		Model:                 cfg.GeminiModel,
		MaxTokens:             cfg.MaxTokens,
		Temperature:           cfg.Temperature,
		BlocksPerTurn:         cfg.BlocksPerTurn,
		TurnDelay:             cfg.TurnDelay,
		ChunkedEnabled:        cfg.ChunkedEnabled,
		ChunkedThreshold:      cfg.ChunkedThreshold,
		ChunkSize:             cfg.ChunkSize,
	}, placement.WithRecorder(collector))

	return &app{cfg: cfg, collector: collector, langfuse: langfuse, builds: builds}, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), sentryFlushTimeout)
		defer cancel()
		langfuse.Flush(flushCtx)
		cleanup()
	}, nil
}

func initSentry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
		return func() {}
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "voxel-architect@" + releaseVersion,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		EnableLogs:       true,
		Debug:            !cfg.IsProduction(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
			}
			return event
		},
	}); err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
		return func() {}
	}

	log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           api.SetupRouter(a.cfg, a.builds, a.collector, GetVersion()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Starting server on port %s", a.cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			sentry.CaptureException(err)
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("🛑 Shutting down")
	a.builds.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	description := strings.Join(args, " ")
	preview, _, err := a.builds.Preview(ctx, description, func(msg string) {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(preview)
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
