package orchestrator

import (
	"fmt"

	"github.com/zjrosen/metaagentd/internal/agent"
	"github.com/zjrosen/metaagentd/internal/agent/claude"
	"github.com/zjrosen/metaagentd/internal/agent/codex"
	"github.com/zjrosen/metaagentd/internal/config"
)

// resolveBackend picks the argv builder and BackendKind for the configured
// CLI dialect (spec.md 6.6's backend.selected).
func resolveBackend(cfg config.BackendConfig) (agent.ArgsBuilder, agent.BackendKind, error) {
	switch cfg.Selected {
	case "", "codex":
		return codex.NewArgsBuilder(cfg.Codex.ArgsPrefix), agent.BackendCodex, nil
	case "claude":
		return claude.NewArgsBuilder(cfg.Claude.ArgsPrefix), agent.BackendClaude, nil
	default:
		return nil, agent.BackendCodex, fmt.Errorf("orchestrator: unknown backend %q", cfg.Selected)
	}
}

func backendProgram(cfg config.BackendConfig) string {
	switch cfg.Selected {
	case "claude":
		return cfg.Claude.Program
	default:
		return cfg.Codex.Program
	}
}

// newPersistentAdapter builds one of the master/master-report/project-info
// adapters: JSONAssistantOnly output, strict reader join (spec.md 4.5).
func (o *Orchestrator) newPersistentAdapter() *agent.Adapter {
	return agent.New(agent.Config{
		Program:    o.program,
		BuildArgs:  o.buildArgs,
		WorkDir:    o.workDir,
		OutputMode: agent.JSONAssistantOnly,
		Backend:    o.backendKind,
		Spawn:      o.spawn,
	})
}

// newWorkerAdapter builds an implementor/auditor/test-writer/final-audit
// worker adapter: plain-text output, since the workflow's detect.go scans
// every transcript line, not just a final structured assistant message.
func (o *Orchestrator) newWorkerAdapter() *agent.Adapter {
	return agent.New(agent.Config{
		Program:    o.program,
		BuildArgs:  o.buildArgs,
		WorkDir:    o.workDir,
		OutputMode: agent.PlainText,
		Backend:    o.backendKind,
		Spawn:      o.spawn,
	})
}
