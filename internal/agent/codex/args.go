// Package codex builds argument lists for the codex CLI dialect, matching
// the arg shapes set out in the scheduler's resume dialect: a fresh run
// uses the configured prefix verbatim, a resumed run drops the prefix's
// leading "exec" and strips "--color" pairs before inserting "resume
// <session_id>".
package codex

import "github.com/zjrosen/metaagentd/internal/agent"

// NewArgsBuilder returns an agent.ArgsBuilder for the codex CLI, given the
// configured program args prefix (e.g. ["exec",
// "--dangerously-bypass-approvals-and-sandbox", "--color", "never"]).
func NewArgsBuilder(argsPrefix []string) agent.ArgsBuilder {
	prefix := append([]string(nil), argsPrefix...)
	return func(prompt, sessionID string) []string {
		if sessionID == "" {
			args := append([]string(nil), prefix...)
			return append(args, prompt)
		}

		resumeArgs := sanitizeResumeArgs(stripLeadingExec(prefix))
		args := append([]string{"exec", "resume"}, resumeArgs...)
		args = append(args, sessionID, prompt)
		return args
	}
}

func stripLeadingExec(args []string) []string {
	if len(args) > 0 && args[0] == "exec" {
		return args[1:]
	}
	return args
}

// sanitizeResumeArgs removes "--color <value>" pairs: `codex exec resume`
// does not accept --color, and passing it through causes a CLI error.
func sanitizeResumeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "--color" {
			i++ // also skip the value
			continue
		}
		out = append(out, args[i])
	}
	return out
}
