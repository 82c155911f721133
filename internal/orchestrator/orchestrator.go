// Package orchestrator implements the single-threaded outer loop (spec.md
// 4.5): it owns every long-lived agent adapter for one session, drains
// their event streams every tick, folds completions into the workflow
// state machine, and persists the task graph back to the session store.
package orchestrator

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zjrosen/metaagentd/internal/agent"
	"github.com/zjrosen/metaagentd/internal/agent/testrunner"
	"github.com/zjrosen/metaagentd/internal/config"
	"github.com/zjrosen/metaagentd/internal/log"
	"github.com/zjrosen/metaagentd/internal/sessionstore"
	"github.com/zjrosen/metaagentd/internal/taskgraph"
	"github.com/zjrosen/metaagentd/internal/workflow"
)

// eventBudgetPerTick caps how many events are drained from any one adapter
// per Tick call, so one noisy adapter cannot starve the others (spec.md 5).
const eventBudgetPerTick = 128

// maxCorrectiveReruns bounds how many times the Orchestrator asks the
// master to fix a structurally invalid tasks.json before giving up
// (spec.md 7, "Structural" error handling).
const maxCorrectiveReruns = 2

// ChatLine is one line appended to the operator-facing chat transcript,
// e.g. a System notice surfaced per spec.md 7's propagation policy.
type ChatLine struct {
	Role string // "master", "master-report", "project-info", "system", or a worker role name
	Text string
}

// Orchestrator is the per-session outer loop described in spec.md 4.5.
type Orchestrator struct {
	store *sessionstore.Store

	program     string
	workDir     string
	buildArgs   agent.ArgsBuilder
	backendKind agent.BackendKind

	master       *agent.Adapter
	masterReport *agent.Adapter
	projectInfo  *agent.Adapter
	testRunner   *testrunner.Adapter
	testCommand  string

	// spawn is injected into every adapter this Orchestrator builds,
	// mirroring the teacher's WithCommandFactory test seam. Defaults to
	// agent.DefaultSpawn; tests substitute a fake.
	spawn agent.SpawnFunc

	workers *adapterPool

	machine *workflow.Machine

	// baselineDocs snapshots tasks.json's docs fields just before the
	// most recent master send, for the docs-policy sanitizer (spec.md
	// 6.5). Keyed by external task id.
	baselineDocs map[string][]taskgraph.Doc

	masterBusy        bool
	correctiveReruns  int
	masterReportQueue []string
	masterReportBusy  bool

	chat []ChatLine
}

// New builds an Orchestrator for a session already opened at store, with
// a task graph already loaded from its tasks.json (see LoadGraph).
func New(store *sessionstore.Store, cfg config.Config, graph *taskgraph.Graph, workDir string) (*Orchestrator, error) {
	buildArgs, backendKind, err := resolveBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:       store,
		program:     backendProgram(cfg.Backend),
		workDir:     workDir,
		buildArgs:   buildArgs,
		backendKind: backendKind,
		testRunner:  testrunner.New(),
		workers:     newAdapterPool(),
		machine:     workflow.New(graph),
		spawn:       agent.DefaultSpawn,
	}
	o.master = o.newPersistentAdapter()
	o.masterReport = o.newPersistentAdapter()
	o.projectInfo = o.newPersistentAdapter()

	meta, err := store.ReadSessionMeta()
	if err == nil && meta.TestCommand != nil {
		o.testCommand = *meta.TestCommand
	}

	rollingContext, err := store.ReadRollingContext()
	if err == nil {
		o.machine.SetRollingContext(rollingContext)
	}

	return o, nil
}

// LoadGraph reads and validates tasks.json from store, the first step of
// constructing an Orchestrator for a (re-)opened session.
func LoadGraph(store *sessionstore.Store) (*taskgraph.Graph, error) {
	entries, err := store.ReadTasks()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading tasks.json: %w", err)
	}
	graph, err := taskgraph.Load(entries)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: loading task graph: %w", err)
	}
	return graph, nil
}

// Machine exposes the underlying workflow state machine, e.g. for tests or
// a CLI `status` subcommand.
func (o *Orchestrator) Machine() *workflow.Machine { return o.machine }

// Chat returns every chat line recorded so far.
func (o *Orchestrator) Chat() []ChatLine {
	return append([]ChatLine(nil), o.chat...)
}

func (o *Orchestrator) say(role, format string, args ...any) {
	o.chat = append(o.chat, ChatLine{Role: role, Text: fmt.Sprintf(format, args...)})
}

// snapshotTasks persists the current graph to tasks.json, per spec.md
// 4.5's "persist a task-status snapshot on every transition".
func (o *Orchestrator) snapshotTasks() {
	entries := taskgraph.ToEntries(o.machine.Graph().OrderedRoots())
	if err := o.store.WriteTasks(entries); err != nil {
		log.ErrorErr(log.CatOrch, "failed to snapshot tasks.json", err)
	}
}

func (o *Orchestrator) persistRollingContext() {
	if err := o.store.WriteRollingContext(o.machine.RollingContext()); err != nil {
		log.ErrorErr(log.CatOrch, "failed to persist rolling_context.json", err)
	}
}

func (o *Orchestrator) persistFailure(f workflow.Failure) {
	err := o.store.AppendTaskFail(sessionstore.TaskFailure{
		Kind:               f.Kind,
		TopTaskID:          strconv.FormatUint(f.TopTaskID, 10),
		TopTaskTitle:       f.TopTaskTitle,
		Attempts:           int(f.Attempts),
		Reason:             f.Reason,
		ActionTaken:        f.ActionTaken,
		CreatedAtEpochSecs: time.Now().Unix(),
	})
	if err != nil {
		log.ErrorErr(log.CatOrch, "failed to append task-fails.json", err)
	}
}

// sleepTail is overridable in tests so the post-completion tail drain
// doesn't actually block test runs for ~240ms.
var sleepTail = time.Sleep
