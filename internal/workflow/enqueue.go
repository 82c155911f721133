package workflow

import "github.com/zjrosen/metaagentd/internal/taskgraph"

// enqueueReadyTopTasks implements spec.md 4.4.1: find the first non-Done
// top task, make sure its Implementor and TestWriter branches each have
// exactly one job in flight, and gate FinalAudit jobs until every non-final
// top is Done. Returns the number of jobs newly queued.
func (m *Machine) enqueueReadyTopTasks() int {
	queued := 0

	var nextTop *taskgraph.Node
	var finalAudits []*taskgraph.Node
	for _, root := range m.graph.Roots {
		if root.Kind == taskgraph.KindFinalAudit {
			finalAudits = append(finalAudits, root)
			continue
		}
		if nextTop == nil && root.Status != taskgraph.StatusDone {
			nextTop = root
		}
	}

	m.retainFinalAuditJobsOnlyWhenNonFinalDone()

	if nextTop != nil {
		hasAnyChildren := len(nextTop.Children) > 0
		implementor := nextTop.FindChild(taskgraph.KindImplementor)
		if implementor == nil && !hasAnyChildren {
			implementor = m.startKindForTop(nextTop, taskgraph.KindImplementor, "Implementation")
		}

		if implementor != nil &&
			!m.branchHasActiveOrQueued(nextTop.ID, taskgraph.KindImplementor) &&
			nextTop.Status != taskgraph.StatusNeedsChanges {

			implStatus := implementor.Status
			pendingAudit := implementor.FindChildPending(taskgraph.KindAuditor)

			switch {
			case implStatus == taskgraph.StatusDone || (implStatus == taskgraph.StatusInProgress && pendingAudit != nil):
				if implStatus == taskgraph.StatusInProgress && pendingAudit != nil {
					m.setStatus(implementor.ID, taskgraph.StatusDone)
				}
				if m.queueNextImplementorAudit(nextTop.ID, implementor.ID, 1, "", "") {
					queued++
				}
			default:
				m.queue = append(m.queue, Job{
					TopTaskID: nextTop.ID,
					Kind:      KindImplementor,
					Implementor: ImplementorPayload{
						ImplementorID: implementor.ID,
						Pass:          1,
					},
				})
				queued++
			}
		}

		testWriter := nextTop.FindChild(taskgraph.KindTestWriter)
		if testWriter == nil && !hasAnyChildren {
			testWriter = m.startKindForTop(nextTop, taskgraph.KindTestWriter, "Test Writing")
		}
		if testWriter != nil &&
			!m.branchHasActiveOrQueued(nextTop.ID, taskgraph.KindTestWriter) &&
			nextTop.Status != taskgraph.StatusNeedsChanges {

			writerStatus := testWriter.Status
			pendingWriterAudit := testWriter.FindChildPending(taskgraph.KindAuditor)
			pendingWriterRunner := testWriter.FindChildPending(taskgraph.KindTestRunner)

			switch {
			case writerStatus == taskgraph.StatusDone && (pendingWriterAudit != nil || pendingWriterRunner != nil):
				if m.queueTestWriterNextStep(nextTop.ID, testWriter.ID, 1, true, "") {
					queued++
				}
			case writerStatus != taskgraph.StatusDone:
				m.queue = append(m.queue, Job{
					TopTaskID: nextTop.ID,
					Kind:      KindTestWriter,
					TestWriter: TestWriterPayload{
						TestWriterID: testWriter.ID,
						Pass:         1,
					},
				})
				queued++
			}
		}
	}

	nonFinalAllDone := true
	for _, root := range m.graph.Roots {
		if root.Kind == taskgraph.KindTop && root.Status != taskgraph.StatusDone {
			nonFinalAllDone = false
			break
		}
	}

	if !nonFinalAllDone {
		for _, fa := range finalAudits {
			if fa.Status == taskgraph.StatusDone {
				m.setStatus(fa.ID, taskgraph.StatusPending)
			}
		}
		return queued
	}

	for _, fa := range finalAudits {
		if !m.finalAuditHasActiveOrQueued(fa.ID) && fa.Status != taskgraph.StatusDone {
			m.queue = append(m.queue, Job{
				TopTaskID: fa.ID,
				Kind:      KindFinalAudit,
				FinalAudit: FinalAuditPayload{
					FinalAuditID: fa.ID,
					Pass:         1,
				},
			})
			queued++
		}
	}
	return queued
}

// retainFinalAuditJobsOnlyWhenNonFinalDone drops any already-queued
// FinalAudit jobs while some non-final top task is still not Done.
func (m *Machine) retainFinalAuditJobsOnlyWhenNonFinalDone() {
	nonFinalAllDone := true
	for _, root := range m.graph.Roots {
		if root.Kind == taskgraph.KindTop && root.Status != taskgraph.StatusDone {
			nonFinalAllDone = false
			break
		}
	}
	if nonFinalAllDone {
		return
	}
	kept := m.queue[:0]
	for _, j := range m.queue {
		if j.Kind != KindFinalAudit {
			kept = append(kept, j)
		}
	}
	m.queue = kept
}

func (m *Machine) finalAuditHasActiveOrQueued(finalAuditID uint64) bool {
	if m.active != nil && m.active.job.Kind == KindFinalAudit && m.active.job.FinalAudit.FinalAuditID == finalAuditID {
		return true
	}
	for _, j := range m.queue {
		if j.Kind == KindFinalAudit && j.FinalAudit.FinalAuditID == finalAuditID {
			return true
		}
	}
	return false
}

// branchHasActiveOrQueued reports whether the Implementor or TestWriter
// branch of topID has a job active or queued, so enqueueReadyTopTasks
// never double-queues a branch.
func (m *Machine) branchHasActiveOrQueued(topID uint64, branch taskgraph.Kind) bool {
	inBranch := func(k JobKind) bool {
		switch branch {
		case taskgraph.KindImplementor:
			return k == KindImplementor || k == KindImplementorTestRunner || k == KindAuditor
		case taskgraph.KindTestWriter:
			return k == KindTestWriter || k == KindTestRunner || k == KindTestWriterAuditor
		default:
			return false
		}
	}
	if m.active != nil && m.active.job.TopTaskID == topID && inBranch(m.active.job.Kind) {
		return true
	}
	for _, j := range m.queue {
		if j.TopTaskID == topID && inBranch(j.Kind) {
			return true
		}
	}
	return false
}

func (m *Machine) startKindForTop(top *taskgraph.Node, kind taskgraph.Kind, title string) *taskgraph.Node {
	if existing := top.FindChild(kind); existing != nil {
		return existing
	}
	child := &taskgraph.Node{
		ID:     m.graph.AllocID(),
		Title:  title,
		Kind:   kind,
		Status: taskgraph.StatusPending,
	}
	top.Children = append(top.Children, child)
	return child
}

func (m *Machine) findOrCreateChildKind(parent *taskgraph.Node, kind taskgraph.Kind, title string) *taskgraph.Node {
	return m.startKindForTop(parent, kind, title)
}

// queueNextImplementorAudit implements the Implementor→Auditor step
// (spec.md 4.4.2): queue the next pending Auditor child, or if none
// remain, the ImplementorTestRunner (if a TestRunner child exists), or
// else close the Implementor branch and attempt to mark the top task Done.
func (m *Machine) queueNextImplementorAudit(topID, implementorID uint64, pass uint8, implementationReport, changedFilesSummary string) bool {
	implementor := m.graph.Find(implementorID)
	if implementor == nil {
		return false
	}
	auditor := implementor.FindChildPending(taskgraph.KindAuditor)
	if auditor == nil {
		if runner := implementor.FindChildPending(taskgraph.KindTestRunner); runner != nil {
			m.queue = append(m.queue, Job{
				TopTaskID: topID,
				Kind:      KindImplementorTestRunner,
				ImplementorTestRunner: ImplementorTestRunnerPayload{
					ImplementorID: implementorID,
					TestRunnerID:  runner.ID,
					Pass:          pass,
				},
			})
			return true
		}
		m.setStatus(implementorID, taskgraph.StatusDone)
		m.tryMarkTopDone(topID)
		return false
	}
	m.queue = append(m.queue, Job{
		TopTaskID: topID,
		Kind:      KindAuditor,
		Auditor: AuditorPayload{
			ImplementorID:        implementorID,
			AuditorID:            auditor.ID,
			Pass:                 pass,
			ImplementationReport: implementationReport,
			ChangedFilesSummary:  changedFilesSummary,
		},
	})
	return true
}

// queueTestWriterNextStep implements the TestWriter branch's post-pass
// step (spec.md 4.4.3): queue a pending TestWriterAuditor when allowed, or
// else the (lazily-created) TestRunner child.
func (m *Machine) queueTestWriterNextStep(topID, testWriterID uint64, pass uint8, allowAuditor bool, testReport string) bool {
	writer := m.graph.Find(testWriterID)
	if writer == nil {
		return false
	}
	if allowAuditor {
		if auditor := writer.FindChildPending(taskgraph.KindAuditor); auditor != nil {
			m.queue = append(m.queue, Job{
				TopTaskID: topID,
				Kind:      KindTestWriterAuditor,
				TestWriterAuditor: TestWriterAuditorPayload{
					TestWriterID: testWriterID,
					AuditorID:    auditor.ID,
					Pass:         pass,
					TestReport:   testReport,
				},
			})
			return true
		}
	}
	runner := m.findOrCreateChildKind(writer, taskgraph.KindTestRunner, "Deterministic Test Run")
	m.queue = append(m.queue, Job{
		TopTaskID: topID,
		Kind:      KindTestRunner,
		TestRunner: TestRunnerPayload{
			TestWriterID: testWriterID,
			TestRunnerID: runner.ID,
			Pass:         pass,
		},
	})
	return true
}

// tryMarkTopDone marks top Done once its Implementor child is Done and
// (if it has one) its TestWriter child is also Done (spec.md 4.4.5),
// pushing a rolling-context entry on the transition.
func (m *Machine) tryMarkTopDone(topID uint64) {
	top := m.graph.Find(topID)
	if top == nil || top.Status == taskgraph.StatusDone {
		return
	}
	implementor := top.FindChild(taskgraph.KindImplementor)
	implDone := implementor != nil && implementor.Status == taskgraph.StatusDone

	testWriter := top.FindChild(taskgraph.KindTestWriter)
	testDone := testWriter == nil || testWriter.Status == taskgraph.StatusDone

	if implDone && testDone {
		m.setStatus(topID, taskgraph.StatusDone)
		m.pushContext("Task \"" + top.DisplayTitle() + "\" is complete after implementation, audit, test writing, and deterministic test runs all finished successfully.")
	}
}
