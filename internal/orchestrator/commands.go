package orchestrator

import (
	"fmt"

	"github.com/zjrosen/metaagentd/internal/taskgraph"
)

// SendUserMessage forwards a chat message to the master adapter, snapshots
// every task's current docs so a later sanitizeDocsPolicy call can detect
// and revert any edits the master makes to them (spec.md 6.5), and marks
// the master busy so Tick drains its response.
func (o *Orchestrator) SendUserMessage(text string) {
	o.baselineDocs = snapshotDocs(o.machine.Graph())
	o.correctiveReruns = 0
	o.sendToMaster(text)
}

func (o *Orchestrator) sendToMaster(prompt string) {
	o.masterBusy = true
	o.master.SendPrompt(prompt)
}

// StartExecution implements spec.md 4.5.1's "start execution" command.
func (o *Orchestrator) StartExecution() string {
	status := o.machine.StartExecution()
	o.snapshotTasks()
	o.dispatchNextWorkerIfAny()
	return status
}

// NewMaster implements spec.md 4.5.1's "new master": resets every
// persistent adapter and drops worker adapters, but never touches on-disk
// state.
func (o *Orchestrator) NewMaster() {
	o.master = o.newPersistentAdapter()
	o.masterReport = o.newPersistentAdapter()
	o.projectInfo = o.newPersistentAdapter()
	o.workers.Reset()
	o.masterBusy = false
	o.masterReportBusy = false
	o.masterReportQueue = nil
	o.correctiveReruns = 0
	o.baselineDocs = nil
	o.say("system", "master session reset")
}

// AddFinalAudit implements spec.md 4.5.1's "add final audit": appends a
// new FinalAudit root and re-snapshots tasks.json so it sorts last.
// Refused while execution is running with unfinished worker jobs, same
// as every other tasks.json mutation.
func (o *Orchestrator) AddFinalAudit(title, details string) (uint64, error) {
	if o.machine.HasPendingWork() {
		return 0, fmt.Errorf("orchestrator: cannot add a final audit while a worker job is active or queued")
	}
	n := taskgraph.AddFinalAuditRoot(o.machine.Graph(), title, details)
	o.snapshotTasks()
	o.say("system", "added final audit task #%d: %s", n.ID, title)
	return n.ID, nil
}

// RemoveFinalAudit implements spec.md 4.5.1's "remove final audit".
func (o *Orchestrator) RemoveFinalAudit(id uint64) error {
	if o.machine.HasPendingWork() {
		return fmt.Errorf("orchestrator: cannot remove a final audit while a worker job is active or queued")
	}
	if err := taskgraph.RemoveFinalAuditRoot(o.machine.Graph(), id); err != nil {
		return err
	}
	o.snapshotTasks()
	o.say("system", "removed final audit task #%d", id)
	return nil
}

// snapshotDocs captures every node's docs, keyed by external id, for the
// docs-policy sanitizer's before/after comparison.
func snapshotDocs(graph *taskgraph.Graph) map[string][]taskgraph.Doc {
	out := make(map[string][]taskgraph.Doc)
	var walk func(n *taskgraph.Node)
	walk = func(n *taskgraph.Node) {
		out[n.FileID()] = append([]taskgraph.Doc(nil), n.Docs...)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, root := range graph.Roots {
		walk(root)
	}
	return out
}

// sanitizeDocsPolicy reverts any docs field the master altered, per
// spec.md 6.5: docs management is the docs-attach agent's sole job. Silent
// except for one System chat line when a reversion happens.
func (o *Orchestrator) sanitizeDocsPolicy(entries []taskgraph.Entry) []taskgraph.Entry {
	if o.baselineDocs == nil {
		return entries
	}
	reverted := false
	for i := range entries {
		baseline, ok := o.baselineDocs[entries[i].ID]
		if !ok {
			continue
		}
		if !docsEqual(entries[i].Docs, baseline) {
			entries[i].Docs = baseline
			reverted = true
		}
	}
	if reverted {
		o.say("system", "reverted master edits to task docs; docs are managed by the docs-attach agent")
	}
	return entries
}

func docsEqual(a, b []taskgraph.Doc) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
