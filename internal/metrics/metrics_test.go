package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewWithNilMeterIsNoOp(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	// Must not panic even though every instrument is unset.
	r.JobDispatched(context.Background(), "implementor")
	r.Retry(context.Background(), "audit")
	r.FailureRecorded(context.Background(), "test")
	r.SetQueueDepth(context.Background(), 3)
}

func TestRecorderTracksCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	r, err := New(meter)
	require.NoError(t, err)

	ctx := context.Background()
	r.JobDispatched(ctx, "implementor")
	r.JobDispatched(ctx, "implementor")
	r.Retry(ctx, "audit")
	r.FailureRecorded(ctx, "test")
	r.SetQueueDepth(ctx, 5)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &data))

	found := map[string]bool{}
	for _, sm := range data.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	require.True(t, found["metaagentd.jobs_dispatched"])
	require.True(t, found["metaagentd.retries"])
	require.True(t, found["metaagentd.workflow_failures"])
	require.True(t, found["metaagentd.queue_depth"])
}
