package tracing

// Span attribute keys for orchestrator tracing.
// These constants define the semantic conventions for span attributes
// across the tick loop, adapters, and workflow transitions.
const (
	// Tick attributes
	AttrTickEventBudget = "tick.event_budget"
	AttrTickEventsDrained = "tick.events_drained"

	// Adapter attributes
	AttrAdapterBackend    = "adapter.backend"
	AttrAdapterContextKey = "adapter.parent_context_key"

	// Job attributes
	AttrJobKind = "job.kind"
	AttrJobPass = "job.pass"

	// Task attributes
	AttrTaskID    = "task.id"
	AttrTaskKind  = "task.kind"
	AttrTopTaskID = "task.top_id"

	// Session attributes
	AttrSessionID    = "session.id"
	AttrSessionDir   = "session.dir"
	AttrBackendKind  = "backend.kind"

	// Audit/test outcome attributes
	AttrAuditPass      = "audit.pass"
	AttrAuditRetries   = "audit.retries"
	AttrTestRetries    = "test.retries"
	AttrFailureKind    = "failure.kind"

	// Error attributes
	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// SpanKind constants for categorizing span types.
const (
	SpanKindTick     = "tick"
	SpanKindAdapter  = "adapter"
	SpanKindWorkflow = "workflow"
	SpanKindSession  = "session"
)

// Span name prefixes for consistent naming.
const (
	SpanPrefixTick     = "tick."
	SpanPrefixAdapter  = "adapter."
	SpanPrefixWorkflow = "workflow."
	SpanPrefixSession  = "session."
)

// Event names for span events.
const (
	EventJobDispatched      = "job.dispatched"
	EventJobCompleted       = "job.completed"
	EventWorkflowFailure    = "workflow.failure_recorded"
	EventDocsReverted       = "docs.reverted"
	EventStructuralRejected = "structural.rejected"
	EventErrorOccurred      = "error.occurred"
)
