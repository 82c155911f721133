package workflow

import (
	"github.com/zjrosen/metaagentd/internal/taskgraph"
)

const (
	maxAuditRetries = 4
	maxTestRetries  = 5
	contextCapacity = 16
)

// Failure is an exhaustion record appended to task-fails.json when a
// retry budget runs out (spec.md 3.4, 3.5).
type Failure struct {
	Kind         string // "Audit" or "Test"
	TopTaskID    uint64
	TopTaskTitle string
	Attempts     uint8
	Reason       string
	ActionTaken  string
}

// activeJob is the one job currently dispatched to an adapter, plus the
// transcript accumulated from its Output events so far.
type activeJob struct {
	job        Job
	transcript []string
}

// Machine is the workflow state machine: one instance per session,
// holding the loaded task graph, the pending job queue, the single active
// job, the rolling context ring, and failures accumulated since the last
// drain.
type Machine struct {
	graph            *taskgraph.Graph
	queue            []Job
	active           *activeJob
	executionEnabled bool

	rollingContext []string
	failures       []Failure
}

// New wraps a loaded graph in a fresh Machine with execution disabled and
// an empty queue.
func New(graph *taskgraph.Graph) *Machine {
	return &Machine{graph: graph}
}

// Graph exposes the underlying task graph (e.g. for tasks.json snapshotting).
func (m *Machine) Graph() *taskgraph.Graph { return m.graph }

// ReplaceGraph swaps in a freshly reloaded graph after a master run edits
// tasks.json (spec.md 4.5 step 2), re-deriving the ready queue against the
// new tree. Execution enablement, the rolling context, and recorded
// failures all carry over unchanged.
func (m *Machine) ReplaceGraph(graph *taskgraph.Graph) {
	m.graph = graph
	m.queue = nil
	m.active = nil
	if m.executionEnabled {
		m.enqueueReadyTopTasks()
	}
}

// RollingContext returns the current ring buffer contents, oldest first.
func (m *Machine) RollingContext() []string {
	return append([]string(nil), m.rollingContext...)
}

// SetRollingContext replaces the ring buffer, e.g. when resuming a session
// from rolling_context.json. Entries beyond contextCapacity are dropped
// from the front.
func (m *Machine) SetRollingContext(entries []string) {
	if len(entries) > contextCapacity {
		entries = entries[len(entries)-contextCapacity:]
	}
	m.rollingContext = append([]string(nil), entries...)
}

// DrainFailures returns and clears failures recorded since the last drain.
func (m *Machine) DrainFailures() []Failure {
	out := m.failures
	m.failures = nil
	return out
}

func (m *Machine) pushContext(entry string) {
	m.rollingContext = append(m.rollingContext, entry)
	if len(m.rollingContext) > contextCapacity {
		m.rollingContext = m.rollingContext[1:]
	}
}

// StartExecution turns execution on (if not already) and enqueues ready
// top tasks, returning a human-readable status line (spec.md 4.4,
// start_execution).
func (m *Machine) StartExecution() string {
	if m.executionEnabled {
		if m.active != nil {
			return "System: Execution is already running; continuing current task."
		}
		queued := m.enqueueReadyTopTasks()
		if queued > 0 {
			return "System: Resumed from last unfinished task(s)."
		}
		return "System: Execution is already enabled. No unfinished tasks to resume."
	}
	m.executionEnabled = true
	m.enqueueReadyTopTasks()
	return "System: Execution enabled."
}

// StartNextJob pops the next queued job and marks its statuses InProgress,
// or returns (Job{}, false) if execution is disabled, a job is already
// active, or the queue is empty.
func (m *Machine) StartNextJob() (Job, bool) {
	if !m.executionEnabled || m.active != nil || len(m.queue) == 0 {
		return Job{}, false
	}
	job := m.queue[0]
	m.queue = m.queue[1:]
	m.markJobStarted(job)
	m.active = &activeJob{job: job}
	return job, true
}

// ActiveJob returns the currently dispatched job, if any.
func (m *Machine) ActiveJob() (Job, bool) {
	if m.active == nil {
		return Job{}, false
	}
	return m.active.job, true
}

// HasPendingWork reports whether a job is active or queued. spec.md
// 4.5.1 blocks tasks.json/master mutations "while execution is running
// and unfinished worker jobs exist"; this is that check.
func (m *Machine) HasPendingWork() bool {
	return m.active != nil || len(m.queue) > 0
}

// AppendActiveOutput records one transcript line for the active job.
func (m *Machine) AppendActiveOutput(line string) {
	if m.active != nil {
		m.active.transcript = append(m.active.transcript, line)
	}
}

func (m *Machine) markJobStarted(job Job) {
	m.setStatus(job.TopTaskID, taskgraph.StatusInProgress)
	switch job.Kind {
	case KindImplementor:
		m.setStatus(job.Implementor.ImplementorID, taskgraph.StatusInProgress)
	case KindAuditor:
		m.setStatus(job.Auditor.AuditorID, taskgraph.StatusInProgress)
	case KindTestWriterAuditor:
		m.setStatus(job.TestWriterAuditor.AuditorID, taskgraph.StatusInProgress)
	case KindTestWriter:
		m.setStatus(job.TestWriter.TestWriterID, taskgraph.StatusInProgress)
	case KindTestRunner:
		m.setStatus(job.TestRunner.TestRunnerID, taskgraph.StatusInProgress)
	case KindImplementorTestRunner:
		m.setStatus(job.ImplementorTestRunner.TestRunnerID, taskgraph.StatusInProgress)
	case KindFinalAudit:
		m.setStatus(job.FinalAudit.FinalAuditID, taskgraph.StatusInProgress)
	}
}

func (m *Machine) setStatus(id uint64, status taskgraph.Status) {
	if n := m.graph.Find(id); n != nil {
		n.Status = status
	}
}

func (m *Machine) statusOf(id uint64) (taskgraph.Status, bool) {
	n := m.graph.Find(id)
	if n == nil {
		return taskgraph.StatusPending, false
	}
	return n.Status, true
}

func (m *Machine) taskTitle(id uint64) string {
	n := m.graph.Find(id)
	if n == nil {
		return "Task"
	}
	return n.DisplayTitle()
}
