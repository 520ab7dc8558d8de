package metrics

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace                = "VoxelArchitect/API"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// putMetricDataAPI is the slice of the CloudWatch client we use.
type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      putMetricDataAPI
	enabled     bool
	environment string
}

// NewClient creates a new CloudWatch metrics client. It is a no-op outside production.
func NewClient(ctx context.Context, environment string) *Client {
	if environment != "production" {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{environment: environment}
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{environment: environment}
	}

	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)
	return &Client{
		client:      cloudwatch.NewFromConfig(cfg),
		enabled:     true,
		environment: environment,
	}
}

// Enabled reports whether metrics are shipped.
func (m *Client) Enabled() bool {
	return m != nil && m.enabled
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if !m.Enabled() {
		return
	}

	metricName := "APIRequests"
	if statusCode >= httpStatusServerError {
		metricName = "APIErrors"
	}
	dims := m.dimensions("Endpoint", endpoint)
	m.send(
		datum(metricName, 1, types.StandardUnitCount, dims),
		datum("APILatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims),
	)
}

// RecordTokenUsage records generator token usage
func (m *Client) RecordTokenUsage(model string, inputTokens, outputTokens int) {
	if !m.Enabled() {
		return
	}

	dims := m.dimensions("Model", model)
	m.send(
		datum("LLMTokens/Input", float64(inputTokens), types.StandardUnitCount, dims),
		datum("LLMTokens/Output", float64(outputTokens), types.StandardUnitCount, dims),
		datum("LLMTokens/Total", float64(inputTokens+outputTokens), types.StandardUnitCount, dims),
	)
}

// RecordGenerationDuration records one generator call
func (m *Client) RecordGenerationDuration(duration time.Duration, success bool) {
	if !m.Enabled() {
		return
	}

	m.send(datum("GenerationDuration", float64(duration.Milliseconds()), types.StandardUnitMilliseconds,
		m.dimensions("Success", boolToString(success))))
}

// RecordIngestStrategy records which parsing strategy produced a structure
func (m *Client) RecordIngestStrategy(strategy string, suspect bool) {
	if !m.Enabled() {
		return
	}

	m.send(datum("IngestStrategy", 1, types.StandardUnitCount,
		m.dimensions("Strategy", strategy, "Suspect", boolToString(suspect))))
}

// RecordChunkFailure records a decomposition cell replaced by its fallback
func (m *Client) RecordChunkFailure() {
	if !m.Enabled() {
		return
	}

	m.send(datum("ChunkFailures", 1, types.StandardUnitCount, m.dimensions()))
}

// RecordBuildOutcome records a terminal placement state
func (m *Client) RecordBuildOutcome(state string, placed int) {
	if !m.Enabled() {
		return
	}

	dims := m.dimensions("State", state)
	m.send(
		datum("Builds", 1, types.StandardUnitCount, dims),
		datum("VoxelsPlaced", float64(placed), types.StandardUnitCount, dims),
	)
}

// send ships the datums in one call, off the caller's goroutine
func (m *Client) send(data ...types.MetricDatum) {
	if m.client == nil {
		return
	}

	go func() {
		cwCtx, cancel := context.WithTimeout(context.Background(), cloudwatchTimeoutSeconds*time.Second)
		defer cancel()

		_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(namespace),
			MetricData: data,
		})
		if err != nil {
			log.Printf("Failed to record %d metric(s) starting with %s: %v", len(data), aws.ToString(data[0].MetricName), err)
		}
	}()
}

// dimensions builds name/value pairs plus the environment dimension
func (m *Client) dimensions(pairs ...string) []types.Dimension {
	dims := make([]types.Dimension, 0, len(pairs)/2+1)
	for i := 0; i+1 < len(pairs); i += 2 {
		dims = append(dims, types.Dimension{Name: aws.String(pairs[i]), Value: aws.String(pairs[i+1])})
	}
	return append(dims, types.Dimension{Name: aws.String("Environment"), Value: aws.String(m.environment)})
}

func datum(name string, value float64, unit types.StandardUnit, dims []types.Dimension) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
