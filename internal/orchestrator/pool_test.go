package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/metaagentd/internal/agent"
)

func TestAdapterPoolGetOrCreateReusesExistingEntry(t *testing.T) {
	p := newAdapterPool()
	builds := 0
	build := func() *agent.Adapter {
		builds++
		return agent.New(agent.Config{Program: "codex"})
	}

	first := p.GetOrCreate("branch-1", build)
	second := p.GetOrCreate("branch-1", build)

	require.Same(t, first, second)
	require.Equal(t, 1, builds)
}

func TestAdapterPoolGetMissingKey(t *testing.T) {
	p := newAdapterPool()
	_, ok := p.Get("nope")
	require.False(t, ok)
}

func TestAdapterPoolResetDropsEntries(t *testing.T) {
	p := newAdapterPool()
	p.GetOrCreate("branch-1", func() *agent.Adapter { return agent.New(agent.Config{Program: "codex"}) })
	require.Len(t, p.All(), 1)

	p.Reset()
	require.Empty(t, p.All())
	_, ok := p.Get("branch-1")
	require.False(t, ok)
}
