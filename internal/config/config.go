package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxStructureSizeLimit keeps the voxel budget, size³, within int32.
const MaxStructureSizeLimit = 1290

// Config holds the application configuration. It is read-only after Load;
// components receive the values they need at construction.
type Config struct {
	// Environment
	Environment string
	Port        string

	// LLM
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	LLMProvider    string // empty means infer from the model name
	MaxTokens      int
	Temperature    float64
	RequestTimeout time.Duration
	RetryCount     int
	RetryBaseDelay time.Duration

	// Structures
	MaxStructureSize      int
	RequireConfirmation   bool
	ConfirmationThreshold int

	// Placement
	BlocksPerTurn int
	TurnDelay     time.Duration

	// Decomposition
	ChunkedEnabled   bool
	ChunkedThreshold int
	ChunkSize        int
	ChunkDelay       time.Duration
	ChunkConcurrency int

	// Capacity
	GenerationWorkers   int
	GenerationRateLimit int64 // upstream calls per minute
	APIRateLimit        int64 // requests per minute per client

	// HTTP
	AllowedOrigins []string

	// Logging
	LogAIRequests bool
	LogBuilding   bool

	// Observability
	SentryDSN         string
	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string
	LangfuseEnabled   bool
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMProvider:    getEnv("LLM_PROVIDER", ""),
		MaxTokens:      getEnvInt("LLM_MAX_TOKENS", 4000),
		Temperature:    getEnvFloat("LLM_TEMPERATURE", 0.7),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		RetryCount:     getEnvInt("RETRY_COUNT", 3),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),

		MaxStructureSize:      getEnvInt("MAX_STRUCTURE_SIZE", 100),
		RequireConfirmation:   getEnvBool("REQUIRE_CONFIRMATION", true),
		ConfirmationThreshold: getEnvInt("CONFIRMATION_THRESHOLD", 50),

		// Two 50ms game ticks between turns.
		BlocksPerTurn: getEnvInt("BLOCKS_PER_TURN", 10),
		TurnDelay:     getEnvDuration("TURN_DELAY", 100*time.Millisecond),

		ChunkedEnabled:   getEnvBool("CHUNKED_GENERATION_ENABLED", true),
		ChunkedThreshold: getEnvInt("CHUNKED_THRESHOLD", 1000),
		ChunkSize:        getEnvInt("CHUNK_SIZE", 16),
		ChunkDelay:       getEnvDuration("CHUNK_DELAY", time.Second),
		ChunkConcurrency: getEnvInt("CHUNK_CONCURRENCY", 1),

		GenerationWorkers:   getEnvInt("GENERATION_WORKERS", 4),
		GenerationRateLimit: int64(getEnvInt("GENERATION_RATE_LIMIT", 60)),
		APIRateLimit:        int64(getEnvInt("API_RATE_LIMIT", 30)),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		LogAIRequests: getEnvBool("LOG_AI_REQUESTS", false),
		LogBuilding:   getEnvBool("LOG_BUILDING", true),

		SentryDSN:         getEnv("SENTRY_DSN", ""),
		LangfusePublicKey: getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey: getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:   getEnvBool("LANGFUSE_ENABLED", false),
	}
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	var errs []error
	for _, setting := range []struct {
		key   string
		value int
	}{
		{"MAX_STRUCTURE_SIZE", c.MaxStructureSize},
		{"BLOCKS_PER_TURN", c.BlocksPerTurn},
		{"CHUNK_SIZE", c.ChunkSize},
		{"CHUNK_CONCURRENCY", c.ChunkConcurrency},
		{"RETRY_COUNT", c.RetryCount},
		{"GENERATION_WORKERS", c.GenerationWorkers},
		{"LLM_MAX_TOKENS", c.MaxTokens},
		{"CHUNKED_THRESHOLD", c.ChunkedThreshold},
	} {
		if setting.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", setting.key, setting.value))
		}
	}
	if c.MaxStructureSize > MaxStructureSizeLimit {
		errs = append(errs, fmt.Errorf("MAX_STRUCTURE_SIZE must be at most %d, got %d", MaxStructureSizeLimit, c.MaxStructureSize))
	}
	if c.ConfirmationThreshold < 0 {
		errs = append(errs, fmt.Errorf("CONFIRMATION_THRESHOLD must not be negative, got %d", c.ConfirmationThreshold))
	}
	if c.TurnDelay <= 0 {
		errs = append(errs, fmt.Errorf("TURN_DELAY must be positive, got %s", c.TurnDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be within [0, 2], got %.2f", c.Temperature))
	}
	if c.GenerationRateLimit <= 0 || c.APIRateLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsConfigured reports whether any generator API key is present. Template
// placeholders such as YOUR_API_KEY_HERE count as absent.
func (c *Config) IsConfigured() bool {
	return isRealKey(c.GeminiAPIKey) || isRealKey(c.OpenAIAPIKey)
}

func isRealKey(key string) bool {
	k := strings.TrimSpace(key)
	return k != "" && !(strings.HasPrefix(k, "YOUR_") && strings.HasSuffix(k, "_HERE"))
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("250ms") and bare milliseconds ("250").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
