package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/metaagentd/internal/agent"
	"github.com/zjrosen/metaagentd/internal/config"
)

func TestResolveBackendDefaultsToCodex(t *testing.T) {
	builder, kind, err := resolveBackend(config.BackendConfig{})
	require.NoError(t, err)
	require.Equal(t, agent.BackendCodex, kind)
	require.NotNil(t, builder)
}

func TestResolveBackendClaude(t *testing.T) {
	builder, kind, err := resolveBackend(config.BackendConfig{
		Selected: "claude",
		Claude:   config.BackendClaudeConfig{Program: "claude", ArgsPrefix: []string{"--dangerously-skip-permissions"}},
	})
	require.NoError(t, err)
	require.Equal(t, agent.BackendClaude, kind)
	require.NotNil(t, builder)
}

func TestResolveBackendUnknownSelected(t *testing.T) {
	_, _, err := resolveBackend(config.BackendConfig{Selected: "nonsense"})
	require.Error(t, err)
}

func TestBackendProgram(t *testing.T) {
	cfg := config.BackendConfig{
		Codex:  config.BackendCodexConfig{Program: "codex"},
		Claude: config.BackendClaudeConfig{Program: "claude"},
	}
	require.Equal(t, "codex", backendProgram(cfg))
	cfg.Selected = "claude"
	require.Equal(t, "claude", backendProgram(cfg))
}
