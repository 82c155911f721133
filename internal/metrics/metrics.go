// Package metrics instruments the orchestrator's tick loop with OpenTelemetry
// counters and gauges: jobs dispatched per WorkerJobKind, retries per kind,
// WorkflowFailures recorded, and queue depth.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder wraps the otel instruments the orchestrator updates on every
// tick and job transition. A zero-value Recorder is safe to call — every
// method becomes a no-op, mirroring how tracing is optional.
type Recorder struct {
	jobsDispatched metric.Int64Counter
	retries        metric.Int64Counter
	failures       metric.Int64Counter
	queueDepth     metric.Int64Gauge
}

// New builds a Recorder against the given meter. Pass nil to get a
// Recorder whose methods are all no-ops (metrics disabled).
func New(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		return &Recorder{}, nil
	}

	jobsDispatched, err := meter.Int64Counter("metaagentd.jobs_dispatched",
		metric.WithDescription("worker jobs dispatched, by kind"))
	if err != nil {
		return nil, fmt.Errorf("metrics: jobs_dispatched counter: %w", err)
	}
	retries, err := meter.Int64Counter("metaagentd.retries",
		metric.WithDescription("audit/test retries, by kind"))
	if err != nil {
		return nil, fmt.Errorf("metrics: retries counter: %w", err)
	}
	failures, err := meter.Int64Counter("metaagentd.workflow_failures",
		metric.WithDescription("WorkflowFailure records, by kind"))
	if err != nil {
		return nil, fmt.Errorf("metrics: workflow_failures counter: %w", err)
	}
	queueDepth, err := meter.Int64Gauge("metaagentd.queue_depth",
		metric.WithDescription("pending jobs in the workflow queue"))
	if err != nil {
		return nil, fmt.Errorf("metrics: queue_depth gauge: %w", err)
	}

	return &Recorder{
		jobsDispatched: jobsDispatched,
		retries:        retries,
		failures:       failures,
		queueDepth:     queueDepth,
	}, nil
}

func kindAttr(kind string) attribute.KeyValue {
	return attribute.String("kind", kind)
}

// JobDispatched records one worker job dispatch of the given kind.
func (r *Recorder) JobDispatched(ctx context.Context, kind string) {
	if r == nil || r.jobsDispatched == nil {
		return
	}
	r.jobsDispatched.Add(ctx, 1, metric.WithAttributes(kindAttr(kind)))
}

// Retry records one audit or test retry of the given kind ("audit" or
// "test").
func (r *Recorder) Retry(ctx context.Context, kind string) {
	if r == nil || r.retries == nil {
		return
	}
	r.retries.Add(ctx, 1, metric.WithAttributes(kindAttr(kind)))
}

// FailureRecorded records one WorkflowFailure of the given kind.
func (r *Recorder) FailureRecorded(ctx context.Context, kind string) {
	if r == nil || r.failures == nil {
		return
	}
	r.failures.Add(ctx, 1, metric.WithAttributes(kindAttr(kind)))
}

// SetQueueDepth reports the current number of pending jobs.
func (r *Recorder) SetQueueDepth(ctx context.Context, depth int) {
	if r == nil || r.queueDepth == nil {
		return
	}
	r.queueDepth.Record(ctx, int64(depth))
}
