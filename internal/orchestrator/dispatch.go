package orchestrator

import (
	"github.com/google/uuid"

	"github.com/zjrosen/metaagentd/internal/log"
	"github.com/zjrosen/metaagentd/internal/workflow"
)

// dispatchNextWorkerIfAny takes the Workflow's next queued job (if any) and
// sends it to the adapter for its branch, reusing a pooled adapter when one
// already exists for that parent_context_key (spec.md 4.5 step 3). Each
// dispatch gets a fresh in-memory run id so its log lines can be correlated
// end to end even when several jobs share one pooled adapter over time.
func (o *Orchestrator) dispatchNextWorkerIfAny() {
	if _, active := o.machine.ActiveJob(); active {
		return
	}
	job, ok := o.machine.StartNextJob()
	if !ok {
		return
	}
	o.snapshotTasks()
	runID := uuid.New().String()

	switch job.Kind {
	case workflow.KindTestRunner, workflow.KindImplementorTestRunner:
		log.Info(log.CatOrch, "dispatching deterministic test run", "top_task_id", job.TopTaskID, "run_id", runID)
		o.testRunner.RunCommand(o.testCommand)
	default:
		key := job.ParentContextKey()
		a := o.workers.GetOrCreate(key, o.newWorkerAdapter)
		prompt := o.machine.RenderPrompt(job)
		log.Info(log.CatOrch, "dispatching worker job", "top_task_id", job.TopTaskID, "kind", job.Kind, "key", key, "run_id", runID)
		a.SendPrompt(prompt)
	}
}
