// Package agent implements the AgentAdapter contract (spec.md 4.2): spawning
// an external CLI, folding its stdout/stderr into one ordered event stream,
// harvesting a resumable session id, and enforcing the strict
// Output/System-before-Completed ordering guarantee.
package agent

// EventKind discriminates the three members of the adapter's event
// protocol.
type EventKind int

const (
	// EventOutput is one line of the agent's textual response.
	EventOutput EventKind = iota
	// EventSystem is a scheduler-originated notice (spawn error, nonzero
	// exit, etc).
	EventSystem
	// EventCompleted is terminal; exactly one is emitted per run.
	EventCompleted
)

// Event is one member of an AgentAdapter's event stream.
type Event struct {
	Kind EventKind
	// Line holds the text for EventOutput/EventSystem.
	Line string
	// Success and Code are only meaningful for EventCompleted.
	Success bool
	Code    int
}

// Output constructs an Output event.
func Output(line string) Event { return Event{Kind: EventOutput, Line: line} }

// System constructs a System event.
func System(line string) Event { return Event{Kind: EventSystem, Line: line} }

// Completed constructs a terminal Completed event.
func Completed(success bool, code int) Event {
	return Event{Kind: EventCompleted, Success: success, Code: code}
}
