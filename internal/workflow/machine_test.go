package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/metaagentd/internal/taskgraph"
)

func ptr[T any](v T) *T { return &v }

func loadGraph(t *testing.T, entries []taskgraph.Entry) *taskgraph.Graph {
	t.Helper()
	g, err := taskgraph.Load(entries)
	require.NoError(t, err)
	return g
}

func simplePlan() []taskgraph.Entry {
	return []taskgraph.Entry{
		{ID: "top-1", Title: "Ship feature", Details: "do the thing", Kind: "task", Order: ptr(uint32(0))},
		{ID: "impl-1", Title: "Implementation", Details: "implement", Kind: "implementor", ParentID: ptr("top-1"), Order: ptr(uint32(0))},
		{ID: "aud-1", Title: "Audit", Details: "review", Kind: "auditor", ParentID: ptr("impl-1"), Order: ptr(uint32(0))},
	}
}

func TestStartExecutionQueuesImplementor(t *testing.T) {
	g := loadGraph(t, simplePlan())
	m := New(g)

	status := m.StartExecution()
	require.Contains(t, status, "Execution enabled")

	job, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindImplementor, job.Kind)
	require.Equal(t, uint8(1), job.Implementor.Pass)
}

func TestImplementorSuccessQueuesAuditor(t *testing.T) {
	g := loadGraph(t, simplePlan())
	m := New(g)
	m.StartExecution()

	job, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindImplementor, job.Kind)

	m.AppendActiveOutput("FILES_CHANGED_BEGIN")
	m.AppendActiveOutput("main.go")
	m.AppendActiveOutput("FILES_CHANGED_END")
	m.FinishActiveJob(true, 0)

	next, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindAuditor, next.Kind)
	require.Contains(t, next.Auditor.ChangedFilesSummary, "main.go")
}

func TestAuditorPassMarksTopDone(t *testing.T) {
	g := loadGraph(t, simplePlan())
	m := New(g)
	m.StartExecution()

	implJob, _ := m.StartNextJob()
	m.FinishActiveJob(true, 0)
	require.Equal(t, taskgraph.StatusDone, g.Find(implJob.Implementor.ImplementorID).Status)

	auditJob, ok := m.StartNextJob()
	require.True(t, ok)
	m.AppendActiveOutput("AUDIT_RESULT: PASS")
	m.FinishActiveJob(true, 0)

	top := g.Find(auditJob.TopTaskID)
	require.Equal(t, taskgraph.StatusDone, top.Status)
}

func TestAuditorFailureRetriesImplementorThenExhausts(t *testing.T) {
	g := loadGraph(t, simplePlan())
	m := New(g)
	m.StartExecution()

	// Implementor pass 1.
	m.StartNextJob()
	m.FinishActiveJob(true, 0)

	for pass := uint8(1); pass <= maxAuditRetries; pass++ {
		auditJob, ok := m.StartNextJob()
		require.True(t, ok)
		require.Equal(t, KindAuditor, auditJob.Kind)
		m.AppendActiveOutput("AUDIT_RESULT: FAIL")
		m.FinishActiveJob(true, 0)

		if pass < maxAuditRetries {
			implJob, ok := m.StartNextJob()
			require.True(t, ok, "expected implementor retry at pass %d", pass)
			require.Equal(t, KindImplementor, implJob.Kind)
			require.Equal(t, pass+1, implJob.Implementor.Pass)
			m.FinishActiveJob(true, 0)
		}
	}

	failures := m.DrainFailures()
	require.Len(t, failures, 1)
	require.Equal(t, "Audit", failures[0].Kind)
	require.Equal(t, uint8(maxAuditRetries), failures[0].Attempts)

	top := g.Find(g.Roots[0].ID)
	require.Equal(t, taskgraph.StatusDone, top.Status)
}

func TestImplementorFailureRetriesWithIncrementedPass(t *testing.T) {
	g := loadGraph(t, simplePlan())
	m := New(g)
	m.StartExecution()

	job, _ := m.StartNextJob()
	require.Equal(t, uint8(1), job.Implementor.Pass)
	m.FinishActiveJob(false, 17)

	retry, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindImplementor, retry.Kind)
	require.Equal(t, uint8(2), retry.Implementor.Pass)
	require.Contains(t, retry.Implementor.Feedback, "code 17")
}

func testWriterPlan() []taskgraph.Entry {
	entries := simplePlan()
	return append(entries,
		taskgraph.Entry{ID: "tw-1", Title: "Test Writing", Details: "write tests", Kind: "test_writer", ParentID: ptr("top-1"), Order: ptr(uint32(1))},
		taskgraph.Entry{ID: "tr-1", Title: "Run tests", Details: "run", Kind: "test_runner", ParentID: ptr("tw-1"), Order: ptr(uint32(0))},
	)
}

func TestTestWriterBranchRunsAfterImplementorAndRunnerClosesTop(t *testing.T) {
	g := loadGraph(t, testWriterPlan())
	m := New(g)
	m.StartExecution()

	implJob, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindImplementor, implJob.Kind)
	m.FinishActiveJob(true, 0)

	twJob, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindTestWriter, twJob.Kind)
	m.FinishActiveJob(true, 0)

	auditJob, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindAuditor, auditJob.Kind)
	m.AppendActiveOutput("AUDIT_RESULT: PASS")
	m.FinishActiveJob(true, 0)

	top := g.Find(auditJob.TopTaskID)
	require.NotEqual(t, taskgraph.StatusDone, top.Status, "top should wait on test-writer branch")

	runnerJob, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindTestRunner, runnerJob.Kind)
	m.FinishActiveJob(true, 0)

	require.Equal(t, taskgraph.StatusDone, top.Status)
}

func TestTestRunnerExhaustionQueuesCleanupPass(t *testing.T) {
	g := loadGraph(t, testWriterPlan())
	m := New(g)
	m.StartExecution()

	m.StartNextJob()
	m.FinishActiveJob(true, 0)

	m.StartNextJob() // test writer pass 1
	m.FinishActiveJob(true, 0)

	auditJob, _ := m.StartNextJob()
	m.AppendActiveOutput("AUDIT_RESULT: PASS")
	m.FinishActiveJob(true, 0)
	_ = auditJob

	for pass := uint8(1); pass <= maxTestRetries; pass++ {
		runnerJob, ok := m.StartNextJob()
		require.True(t, ok)
		require.Equal(t, KindTestRunner, runnerJob.Kind)
		m.FinishActiveJob(false, 1)

		writerJob, ok := m.StartNextJob()
		require.True(t, ok)
		require.Equal(t, KindTestWriter, writerJob.Kind)
		if pass == maxTestRetries {
			require.True(t, writerJob.TestWriter.SkipTestRunnerOnSuccess)
		}
		m.FinishActiveJob(true, 0)
	}

	failures := m.DrainFailures()
	require.Len(t, failures, 1)
	require.Equal(t, "Test", failures[0].Kind)
}

func TestRollingContextCapsAtSixteen(t *testing.T) {
	m := New(loadGraph(t, simplePlan()))
	for i := 0; i < 20; i++ {
		m.pushContext("entry")
	}
	require.Len(t, m.RollingContext(), contextCapacity)
}

func TestFinalAuditGatedUntilNonFinalTopsDone(t *testing.T) {
	entries := append(simplePlan(),
		taskgraph.Entry{ID: "final-1", Title: "Final", Details: "final check", Kind: "final_audit", Order: ptr(uint32(1))},
	)
	g := loadGraph(t, entries)
	m := New(g)
	m.StartExecution()

	// Only the implementor job should be queued; final audit must not run yet.
	job, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindImplementor, job.Kind)
	m.FinishActiveJob(true, 0)

	auditJob, _ := m.StartNextJob()
	m.AppendActiveOutput("AUDIT_RESULT: PASS")
	m.FinishActiveJob(true, 0)
	_ = auditJob

	finalJob, ok := m.StartNextJob()
	require.True(t, ok)
	require.Equal(t, KindFinalAudit, finalJob.Kind)
}
