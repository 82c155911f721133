package claude

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewArgsBuilderFreshRun(t *testing.T) {
	build := NewArgsBuilder([]string{"--dangerously-skip-permissions"})
	args := build("do the thing", "")
	require.Equal(t, []string{"--dangerously-skip-permissions", "--print", "--output-format", "stream-json", "--verbose", "-p", "do the thing"}, args)
}

func TestNewArgsBuilderResumeIncludesSessionID(t *testing.T) {
	build := NewArgsBuilder([]string{"--dangerously-skip-permissions"})
	args := build("keep going", "sess-456")
	require.Equal(t, []string{"--dangerously-skip-permissions", "--print", "--output-format", "stream-json", "--verbose", "--resume", "sess-456", "-p", "keep going"}, args)
}
