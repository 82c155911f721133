// Package claude builds argument lists for the claude CLI dialect.
package claude

import "github.com/zjrosen/metaagentd/internal/agent"

// NewArgsBuilder returns an agent.ArgsBuilder for the claude CLI, given
// the configured program args prefix (e.g.
// ["--dangerously-skip-permissions"]). A fresh run streams JSON output
// with --print; a resumed run adds --resume <session_id>.
func NewArgsBuilder(argsPrefix []string) agent.ArgsBuilder {
	prefix := append([]string(nil), argsPrefix...)
	return func(prompt, sessionID string) []string {
		args := append([]string(nil), prefix...)
		args = append(args, "--print", "--output-format", "stream-json", "--verbose")
		if sessionID != "" {
			args = append(args, "--resume", sessionID)
		}
		args = append(args, "-p", prompt)
		return args
	}
}
