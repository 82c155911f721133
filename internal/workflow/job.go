// Package workflow implements the scheduler's state machine: it walks a
// taskgraph.Graph, maintains a fire-and-forget job queue with one active
// job at a time, and decides what to run next after every worker
// completion (spec.md 4.4).
package workflow

// Role identifies which kind of agent a job dispatches to.
type Role int

const (
	RoleImplementor Role = iota
	RoleAuditor
	RoleTestWriter
	RoleTestRunner
	RoleFinalAudit
)

func (r Role) String() string {
	switch r {
	case RoleImplementor:
		return "Implementor"
	case RoleAuditor:
		return "Auditor"
	case RoleTestWriter:
		return "TestWriter"
	case RoleTestRunner:
		return "TestRunner"
	case RoleFinalAudit:
		return "FinalAudit"
	default:
		return "Unknown"
	}
}

// JobKind is the discriminated union of spec.md 3.2's worker job variants.
// Exactly one of the embedded structs is meaningful per job; Kind names
// which.
type JobKind int

const (
	KindImplementor JobKind = iota
	KindAuditor
	KindTestWriter
	KindTestWriterAuditor
	KindTestRunner
	KindImplementorTestRunner
	KindFinalAudit
)

// ImplementorPayload is the Implementor job variant.
type ImplementorPayload struct {
	ImplementorID     uint64
	Pass              uint8
	Feedback          string
	ResumeAuditorID   uint64 // 0 = none
	ResumeAuditPass   uint8
}

// AuditorPayload is the Auditor job variant.
type AuditorPayload struct {
	ImplementorID         uint64
	AuditorID             uint64
	Pass                  uint8
	ImplementationReport  string
	ChangedFilesSummary   string
}

// TestWriterPayload is the TestWriter job variant.
type TestWriterPayload struct {
	TestWriterID             uint64
	Pass                     uint8
	Feedback                 string
	SkipTestRunnerOnSuccess  bool
	ResumeAuditorID          uint64
	ResumeAuditPass          uint8
}

// TestWriterAuditorPayload is the TestWriterAuditor job variant.
type TestWriterAuditorPayload struct {
	TestWriterID uint64
	AuditorID    uint64
	Pass         uint8
	TestReport   string
}

// TestRunnerPayload is the TestRunner job variant.
type TestRunnerPayload struct {
	TestWriterID  uint64
	TestRunnerID  uint64
	Pass          uint8
}

// ImplementorTestRunnerPayload is the ImplementorTestRunner job variant.
type ImplementorTestRunnerPayload struct {
	ImplementorID uint64
	TestRunnerID  uint64
	Pass          uint8
}

// FinalAuditPayload is the FinalAudit job variant.
type FinalAuditPayload struct {
	FinalAuditID uint64
	Pass         uint8
	Feedback     string
}

// Job is one queued unit of work (spec.md 3.2). TopTaskID is the root task
// it belongs to (or, for FinalAudit, the FinalAudit node's own id).
type Job struct {
	TopTaskID uint64
	Kind      JobKind

	Implementor         ImplementorPayload
	Auditor              AuditorPayload
	TestWriter           TestWriterPayload
	TestWriterAuditor    TestWriterAuditorPayload
	TestRunner           TestRunnerPayload
	ImplementorTestRunner ImplementorTestRunnerPayload
	FinalAudit           FinalAuditPayload
}

// Role returns the job's worker role, used to pick which adapter pool runs
// it.
func (j Job) Role() Role {
	switch j.Kind {
	case KindImplementor, KindImplementorTestRunner:
		if j.Kind == KindImplementorTestRunner {
			return RoleTestRunner
		}
		return RoleImplementor
	case KindAuditor, KindTestWriterAuditor:
		return RoleAuditor
	case KindTestWriter:
		return RoleTestWriter
	case KindTestRunner:
		return RoleTestRunner
	case KindFinalAudit:
		return RoleFinalAudit
	default:
		return RoleImplementor
	}
}

// ParentContextKey identifies the adapter/session pool this job reuses
// (spec.md 3.2): the Orchestrator keeps one persistent adapter per key so
// the external agent's conversational session survives across passes.
func (j Job) ParentContextKey() string {
	switch j.Kind {
	case KindImplementor:
		return keyFor("implementor", j.Implementor.ImplementorID)
	case KindAuditor:
		return keyFor("auditor", j.Auditor.AuditorID)
	case KindTestWriter:
		return keyFor("test_writer", j.TestWriter.TestWriterID)
	case KindTestWriterAuditor:
		return keyFor("auditor", j.TestWriterAuditor.AuditorID)
	case KindFinalAudit:
		return keyFor("final_audit", j.FinalAudit.FinalAuditID)
	case KindImplementorTestRunner, KindTestRunner:
		return ""
	default:
		return ""
	}
}

func keyFor(prefix string, id uint64) string {
	return prefix + ":" + uint64ToString(id)
}
