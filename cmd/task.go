package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/metaagentd/internal/sessionstore"
	"github.com/zjrosen/metaagentd/internal/taskgraph"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Mutate a session's tasks.json in-core (no master agent involved)",
}

var addFinalAuditCmd = &cobra.Command{
	Use:   "add-final-audit <session-dir> <title> <details>",
	Short: "Append a pending final-audit root task, sorted after every other top task",
	Args:  cobra.ExactArgs(3),
	RunE:  runAddFinalAudit,
}

var removeFinalAuditCmd = &cobra.Command{
	Use:   "remove-final-audit <session-dir> <final-audit-id>",
	Short: "Remove a final-audit root task by its internal id",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemoveFinalAudit,
}

func init() {
	taskCmd.AddCommand(addFinalAuditCmd, removeFinalAuditCmd)
	rootCmd.AddCommand(taskCmd)
}

type taskMutationResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ID    uint64 `json:"id,omitempty"`
}

func runAddFinalAudit(cmd *cobra.Command, args []string) error {
	store, graph, err := openSessionGraph(args[0])
	if err != nil {
		return emitTaskResult(cmd, taskMutationResult{OK: false, Error: err.Error()})
	}

	n := taskgraph.AddFinalAuditRoot(graph, args[1], args[2])
	if err := store.WriteTasks(taskgraph.ToEntries(graph.OrderedRoots())); err != nil {
		return emitTaskResult(cmd, taskMutationResult{OK: false, Error: fmt.Sprintf("writing tasks.json: %v", err)})
	}
	return emitTaskResult(cmd, taskMutationResult{OK: true, ID: n.ID})
}

func runRemoveFinalAudit(cmd *cobra.Command, args []string) error {
	store, graph, err := openSessionGraph(args[0])
	if err != nil {
		return emitTaskResult(cmd, taskMutationResult{OK: false, Error: err.Error()})
	}

	var id uint64
	if _, err := fmt.Sscanf(args[1], "%d", &id); err != nil {
		return emitTaskResult(cmd, taskMutationResult{OK: false, Error: fmt.Sprintf("invalid final-audit id %q", args[1])})
	}

	if err := taskgraph.RemoveFinalAuditRoot(graph, id); err != nil {
		return emitTaskResult(cmd, taskMutationResult{OK: false, Error: err.Error()})
	}
	if err := store.WriteTasks(taskgraph.ToEntries(graph.OrderedRoots())); err != nil {
		return emitTaskResult(cmd, taskMutationResult{OK: false, Error: fmt.Sprintf("writing tasks.json: %v", err)})
	}
	return emitTaskResult(cmd, taskMutationResult{OK: true, ID: id})
}

func openSessionGraph(dirName string) (*sessionstore.Store, *taskgraph.Graph, error) {
	mgr := sessionstore.NewManager(cfg.Storage.RootDir, nil)
	store, err := sessionstore.OpenExisting(mgr, dirName, time.Now().Unix())
	if err != nil {
		return nil, nil, fmt.Errorf("opening session: %w", err)
	}
	entries, err := store.ReadTasks()
	if err != nil {
		return nil, nil, fmt.Errorf("reading tasks.json: %w", err)
	}
	graph, err := taskgraph.Load(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("loading task graph: %w", err)
	}
	return store, graph, nil
}

func emitTaskResult(cmd *cobra.Command, res taskMutationResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("task mutation rejected: %s", res.Error)
	}
	return nil
}
