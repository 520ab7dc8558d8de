package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudWatch struct {
	inputs chan *cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs <- in
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestClient_DisabledOutsideProduction(t *testing.T) {
	c := NewClient(context.Background(), "development")
	assert.False(t, c.Enabled())

	// Calls on a disabled or nil client are no-ops.
	c.RecordBuildOutcome("completed", 10)
	var nilClient *Client
	nilClient.RecordChunkFailure()
	assert.False(t, nilClient.Enabled())
}

func TestClient_RecordBuildOutcome(t *testing.T) {
	fake := &fakeCloudWatch{inputs: make(chan *cloudwatch.PutMetricDataInput, 1)}
	c := &Client{client: fake, enabled: true, environment: "production"}

	c.RecordBuildOutcome("completed", 95)

	select {
	case in := <-fake.inputs:
		assert.Equal(t, namespace, aws.ToString(in.Namespace))
		require.Len(t, in.MetricData, 2)
		assert.Equal(t, "Builds", aws.ToString(in.MetricData[0].MetricName))
		assert.Equal(t, 95.0, aws.ToFloat64(in.MetricData[1].Value))

		dims := map[string]string{}
		for _, d := range in.MetricData[0].Dimensions {
			dims[aws.ToString(d.Name)] = aws.ToString(d.Value)
		}
		assert.Equal(t, map[string]string{"State": "completed", "Environment": "production"}, dims)
	case <-time.After(2 * time.Second):
		t.Fatal("metric was not sent")
	}
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	c.RecordIngestStrategy("direct", false)
	c.RecordIngestStrategy("repair", true)
	c.RecordChunkFailure()
	c.RecordBuildOutcome("completed", 95)
	c.RecordGeneration(ctx, "gemini-2.0-flash", time.Second, true, 10, 20)
	c.RecordGeneration(ctx, "gemini-2.0-flash", time.Second, false, 0, 0)
	c.RecordAPIRequest(ctx, "/health", 200, time.Millisecond)
	c.RecordAPIRequest(ctx, "/api/v1/builds", 500, time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap["ingest.direct"])
	assert.Equal(t, int64(1), snap["ingest.repair"])
	assert.Equal(t, int64(1), snap["ingest.suspect"])
	assert.Equal(t, int64(1), snap["decompose.chunk_failures"])
	assert.Equal(t, int64(1), snap["builds.completed"])
	assert.Equal(t, int64(95), snap["builds.voxels_placed"])
	assert.Equal(t, int64(1), snap["generation.success"])
	assert.Equal(t, int64(1), snap["generation.failure"])
	assert.Equal(t, int64(30), snap["generation.tokens"])
	assert.Equal(t, int64(2), snap["api.requests"])
	assert.Equal(t, int64(1), snap["api.errors"])
	assert.IsIncreasing(t, c.Names())
}
