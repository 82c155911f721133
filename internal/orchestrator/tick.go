package orchestrator

import (
	"strconv"
	"time"

	"github.com/zjrosen/metaagentd/internal/agent"
	"github.com/zjrosen/metaagentd/internal/log"
	"github.com/zjrosen/metaagentd/internal/taskgraph"
	"github.com/zjrosen/metaagentd/internal/workflow"
)

// tailDrainMaxPolls and tailDrainMaxIdle bound the post-completion tail
// drain to roughly 240ms (spec.md 4.5, 5): up to 24 polls at 10ms each,
// stopping early after 8 consecutive polls return nothing.
const (
	tailDrainMaxPolls    = 24
	tailDrainMaxIdle     = 8
	tailDrainPollPeriod  = 10 * time.Millisecond
	tailDrainEventBudget = 128
)

// Tick runs one iteration of the outer loop (spec.md 4.5): drain every
// adapter's events bounded to eventBudgetPerTick, fold completions into
// state, and attempt to dispatch the next worker.
func (o *Orchestrator) Tick() {
	o.tickMaster()
	o.tickMasterReport()
	o.tickProjectInfo()
	o.tickActiveWorker()
}

func (o *Orchestrator) tickMaster() {
	if !o.masterBusy {
		return
	}
	for _, evt := range o.master.DrainEventsLimited(eventBudgetPerTick) {
		switch evt.Kind {
		case agent.EventOutput:
			o.say("master", "%s", evt.Line)
		case agent.EventSystem:
			o.say("system", "%s", evt.Line)
		case agent.EventCompleted:
			o.masterBusy = false
			o.onMasterCompleted(evt.Success, evt.Code)
		}
	}
}

// onMasterCompleted implements spec.md 4.5 step 2's Master Completed fold:
// while execution is idle, reread tasks.json, apply the docs-policy
// sanitizer, and resync the graph; on structural failure ask the master to
// correct itself up to maxCorrectiveReruns times.
func (o *Orchestrator) onMasterCompleted(success bool, code int) {
	if !success {
		o.say("system", "master run failed with code %d", code)
		return
	}
	if _, active := o.machine.ActiveJob(); active {
		o.dispatchNextWorkerIfAny()
		return
	}

	entries, err := o.store.ReadTasks()
	if err != nil {
		log.ErrorErr(log.CatOrch, "failed to reread tasks.json after master completion", err)
		o.say("system", "could not reread tasks.json: %v", err)
		return
	}

	entries = o.sanitizeDocsPolicy(entries)

	graph, err := taskgraph.Load(entries)
	if err != nil {
		o.correctiveReruns++
		o.say("system", "task plan is invalid: %v", err)
		if o.correctiveReruns <= maxCorrectiveReruns {
			o.say("system", "asking master to correct the plan (attempt %d of %d)", o.correctiveReruns, maxCorrectiveReruns)
			o.sendToMaster("The last tasks.json edit is structurally invalid: " + err.Error() + ". Please fix it.")
		} else {
			o.say("system", "master correction retries exhausted; keeping the prior task graph")
		}
		return
	}
	o.correctiveReruns = 0
	o.machine.ReplaceGraph(graph)
	o.snapshotTasks()
	o.baselineDocs = nil
	o.dispatchNextWorkerIfAny()
}

func (o *Orchestrator) tickMasterReport() {
	for _, evt := range o.masterReport.DrainEventsLimited(eventBudgetPerTick) {
		switch evt.Kind {
		case agent.EventOutput:
			o.say("master-report", "%s", evt.Line)
		case agent.EventSystem:
			o.say("system", "%s", evt.Line)
		case agent.EventCompleted:
			o.masterReportBusy = false
			o.drainMasterReportQueue()
		}
	}
}

func (o *Orchestrator) drainMasterReportQueue() {
	if o.masterReportBusy || len(o.masterReportQueue) == 0 {
		return
	}
	next := o.masterReportQueue[0]
	o.masterReportQueue = o.masterReportQueue[1:]
	o.masterReportBusy = true
	o.masterReport.SendPrompt(next)
}

// enqueueMasterReport schedules a failure-report prompt, serialized so only
// one master-report run is ever in flight (spec.md 4.5 step 2, 9).
func (o *Orchestrator) enqueueMasterReport(prompt string) {
	o.masterReportQueue = append(o.masterReportQueue, prompt)
	o.drainMasterReportQueue()
}

func (o *Orchestrator) tickProjectInfo() {
	for _, evt := range o.projectInfo.DrainEventsLimited(eventBudgetPerTick) {
		switch evt.Kind {
		case agent.EventOutput:
			if err := o.store.WriteProjectInfo(evt.Line); err != nil {
				log.ErrorErr(log.CatOrch, "failed to write project-info.md", err)
			}
		case agent.EventSystem:
			o.say("system", "%s", evt.Line)
		case agent.EventCompleted:
			// nothing pending on the master queue in this simplified
			// single-stage flow; gather-only, see DESIGN.md.
		}
	}
}

// tickActiveWorker drains whichever adapter is running the Workflow's
// active job (a pooled worker adapter, or the TestRunner for deterministic
// test runs), feeding every Output line into the job's transcript and, on
// Completed, draining the post-completion tail before folding the result
// into the Workflow.
func (o *Orchestrator) tickActiveWorker() {
	job, active := o.machine.ActiveJob()
	if !active {
		if !o.masterBusy {
			o.dispatchNextWorkerIfAny()
		}
		return
	}

	if job.Kind == workflow.KindTestRunner || job.Kind == workflow.KindImplementorTestRunner {
		o.drainTestRunner()
		return
	}

	a, ok := o.workers.Get(job.ParentContextKey())
	if !ok {
		return
	}
	o.drainWorkerAdapter(a)
}

func (o *Orchestrator) drainWorkerAdapter(a *agent.Adapter) {
	events := a.DrainEventsLimited(eventBudgetPerTick)
	completed, success, code, ok := foldWorkerEvents(o, events)
	if !ok {
		return
	}
	if !completed {
		return
	}
	o.finishActiveJob(success, code, a)
}

func (o *Orchestrator) drainTestRunner() {
	events := o.testRunner.DrainEventsLimited(eventBudgetPerTick)
	completed, success, code, ok := foldWorkerEvents(o, events)
	if !ok {
		return
	}
	if !completed {
		return
	}
	o.finishActiveJob(success, code, nil)
}

// foldWorkerEvents appends Output/System lines to the active job's
// transcript and reports whether a Completed event was among them.
func foldWorkerEvents(o *Orchestrator, events []agent.Event) (completed, success bool, code int, handled bool) {
	if len(events) == 0 {
		return false, false, 0, false
	}
	for _, evt := range events {
		switch evt.Kind {
		case agent.EventOutput, agent.EventSystem:
			o.machine.AppendActiveOutput(evt.Line)
		case agent.EventCompleted:
			completed = true
			success = evt.Success
			code = evt.Code
		}
	}
	return completed, success, code, true
}

// finishActiveJob runs the bounded post-completion tail drain (spec.md 4.5
// step 2, 5), then closes out the job through the Workflow and attempts to
// dispatch whatever comes next.
func (o *Orchestrator) finishActiveJob(success bool, code int, a *agent.Adapter) {
	o.drainTail(a)

	messages := o.machine.FinishActiveJob(success, code)
	for _, m := range messages {
		o.say("system", "%s", m)
	}
	o.persistRollingContext()

	for _, f := range o.machine.DrainFailures() {
		o.persistFailure(f)
		o.say("system", "workflow failure recorded: %s (%s, %d attempts): %s", f.TopTaskTitle, f.Kind, f.Attempts, f.ActionTaken)
		o.enqueueMasterReport(failureReportPrompt(f))
	}

	o.snapshotTasks()
	o.dispatchNextWorkerIfAny()
}

// drainTail polls a worker adapter a bounded number of times to catch
// output that arrives after the process exits but before its pipes close.
// a is nil for the TestRunner's non-pooled adapter.
func (o *Orchestrator) drainTail(a *agent.Adapter) {
	idle := 0
	for i := 0; i < tailDrainMaxPolls && idle < tailDrainMaxIdle; i++ {
		sleepTail(tailDrainPollPeriod)
		var events []agent.Event
		if a != nil {
			events = a.DrainEventsLimited(tailDrainEventBudget)
		} else {
			events = o.testRunner.DrainEventsLimited(tailDrainEventBudget)
		}
		if len(events) == 0 {
			idle++
			continue
		}
		idle = 0
		for _, evt := range events {
			if evt.Kind == agent.EventOutput || evt.Kind == agent.EventSystem {
				o.machine.AppendActiveOutput(evt.Line)
			}
		}
	}
}

func failureReportPrompt(f workflow.Failure) string {
	return "A workflow step exhausted its retries and needs summarizing for the operator.\n" +
		"Kind: " + f.Kind + "\n" +
		"Task: " + f.TopTaskTitle + "\n" +
		"Attempts: " + strconv.Itoa(int(f.Attempts)) + "\n" +
		"Reason: " + f.Reason + "\n" +
		"Action taken: " + f.ActionTaken + "\n" +
		"Summarize this for the operator and ask whether to record it in TODO.md."
}
