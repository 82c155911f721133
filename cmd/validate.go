package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zjrosen/metaagentd/internal/taskgraph"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [tasks.json]",
	Short: "Load a task plan and report structural validation errors",
	Long: `Parses a tasks.json entry list, builds the task tree, and runs the
same structural validation the orchestrator runs before accepting a plan
from the master agent. Emits a single JSON object: {"ok": true} or
{"ok": false, "error": "..."}.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Roots int    `json:"roots,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return emitValidateResult(cmd, validateResult{OK: false, Error: fmt.Sprintf("reading file: %v", err)})
	}

	entries, err := taskgraph.ParseEntries(data)
	if err != nil {
		return emitValidateResult(cmd, validateResult{OK: false, Error: err.Error()})
	}

	graph, err := taskgraph.Load(entries)
	if err != nil {
		return emitValidateResult(cmd, validateResult{OK: false, Error: err.Error()})
	}

	return emitValidateResult(cmd, validateResult{OK: true, Roots: len(graph.Roots)})
}

func emitValidateResult(cmd *cobra.Command, res validateResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("plan rejected: %s", res.Error)
	}
	return nil
}
