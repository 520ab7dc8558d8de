package logger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// Fields represents structured log fields
type Fields map[string]interface{}

var debugEnabled atomic.Bool

// SetDebug toggles Debug output. Breadcrumbs are recorded either way.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// WithContext extracts request context for logging
func WithContext(c *gin.Context) Fields {
	fields := Fields{
		"request_id": c.GetString("request_id"),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	}
	if actor := c.Param("actor"); actor != "" {
		fields["actor"] = actor
	}
	return fields
}

// Info logs an informational message with structured fields
func Info(msg string, fields Fields) {
	log.Printf("[INFO] %s %s", msg, formatFields(fields))
	breadcrumb("info", msg, fields, sentry.LevelInfo)
}

// Warn logs a warning message with structured fields
func Warn(msg string, fields Fields) {
	log.Printf("[WARN] %s %s", msg, formatFields(fields))
	breadcrumb("warning", msg, fields, sentry.LevelWarning)
}

// Debug logs a debug message when debug output is enabled
func Debug(msg string, fields Fields) {
	if debugEnabled.Load() {
		log.Printf("[DEBUG] %s %s", msg, formatFields(fields))
	}
	breadcrumb("debug", msg, fields, sentry.LevelDebug)
}

// Error logs an error message with structured fields and sends to Sentry
func Error(msg string, err error, fields Fields) {
	log.Printf("[ERROR] %s: %v %s", msg, err, formatFields(fields))

	hub := sentry.CurrentHub()
	if hub.Client() == nil || err == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetContext("fields", convertFieldsToMap(fields))
		// Tags for filtering in Sentry
		for _, key := range []string{"request_id", "actor", "model", "provider"} {
			if v, ok := fields[key].(string); ok && v != "" {
				scope.SetTag(key, v)
			}
		}
		hub.CaptureException(err)
	})
}

// LogAPIRequest logs API request metrics
func LogAPIRequest(c *gin.Context, duration time.Duration, statusCode int, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	for k, v := range WithContext(c) {
		fields[k] = v
	}
	fields["duration_ms"] = duration.Milliseconds()
	fields["status_code"] = statusCode
	fields["client_ip"] = c.ClientIP()

	Info("API request completed", fields)
}

// LogGenerationRequest logs a completed generator call and records a span
// on the request's hub.
func LogGenerationRequest(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["model"] = model
	fields["duration_ms"] = duration.Milliseconds()
	fields["input_tokens"] = inputTokens
	fields["output_tokens"] = outputTokens
	fields["total_tokens"] = inputTokens + outputTokens

	Info("Generation request completed", fields)

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		span := sentry.StartSpan(ctx, "llm.generate.logged")
		span.Description = model
		span.SetData("input_tokens", inputTokens)
		span.SetData("output_tokens", outputTokens)
		span.Finish()
	}
}

func breadcrumb(kind, msg string, fields Fields, level sentry.Level) {
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     kind,
			Category: "log",
			Message:  msg,
			Data:     convertFieldsToMap(fields),
			Level:    level,
		})
	}
}

// formatFields renders fields as {k=v, ...} with keys sorted.
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(fields[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.2f", val)
	case time.Duration:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func convertFieldsToMap(fields Fields) map[string]interface{} {
	result := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		result[k] = v
	}
	return result
}
