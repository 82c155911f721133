// Package taskgraph models the hierarchical task plan a master agent edits
// and the scheduler executes: top tasks, their implementor/auditor/test
// branches, and final audits, plus the structural validator that keeps the
// shape legal.
package taskgraph

import "fmt"

// Kind is the type of a task node.
type Kind int

const (
	// KindTop is a root-level task representing user-visible work.
	KindTop Kind = iota
	// KindFinalAudit is a root-level task that only runs once every
	// non-final top task is Done.
	KindFinalAudit
	// KindImplementor does the work for a Top task.
	KindImplementor
	// KindAuditor reviews an Implementor's or TestWriter's output.
	KindAuditor
	// KindTestWriter writes tests for a Top task.
	KindTestWriter
	// KindTestRunner runs the session's deterministic test command.
	KindTestRunner
)

// String renders the wire-format name used in tasks.json.
func (k Kind) String() string {
	switch k {
	case KindTop:
		return "task"
	case KindFinalAudit:
		return "final_audit"
	case KindImplementor:
		return "implementor"
	case KindAuditor:
		return "auditor"
	case KindTestWriter:
		return "test_writer"
	case KindTestRunner:
		return "test_runner"
	default:
		return "unknown"
	}
}

// ParseKind parses the wire-format kind name. Unknown/empty defaults to
// KindTop, matching spec.md 6.1's "default task".
func ParseKind(s string) Kind {
	switch s {
	case "final_audit":
		return KindFinalAudit
	case "implementor":
		return KindImplementor
	case "auditor":
		return KindAuditor
	case "test_writer":
		return KindTestWriter
	case "test_runner":
		return KindTestRunner
	default:
		return KindTop
	}
}

// Status is the lifecycle state of a task node.
type Status int

const (
	// StatusPending has not started.
	StatusPending Status = iota
	// StatusInProgress is currently being worked.
	StatusInProgress
	// StatusNeedsChanges failed a review and awaits rework.
	StatusNeedsChanges
	// StatusDone has completed successfully.
	StatusDone
)

// String renders the wire-format name used in tasks.json.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusNeedsChanges:
		return "needs_changes"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// ParseStatus parses the wire-format status name, defaulting to Pending.
func ParseStatus(s string) Status {
	switch s {
	case "in_progress":
		return StatusInProgress
	case "needs_changes":
		return StatusNeedsChanges
	case "done":
		return StatusDone
	default:
		return StatusPending
	}
}

// Doc is one documentation reference attached to a task.
type Doc struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// Node is one task in the plan. Children are held inline; a node reached
// via Find is always part of exactly one tree.
type Node struct {
	// ID is the dense internal numeric id assigned at load time.
	ID uint64
	// ExternalID is the string id as it appeared in tasks.json, if any.
	ExternalID string
	Title      string
	Details    string
	Docs       []Doc
	Kind       Kind
	Status     Status
	Children   []*Node
}

// FileID returns the id this node should be serialized under: its original
// external id, or a synthesized "internal-<id>" when it has none.
func (n *Node) FileID() string {
	if n.ExternalID != "" {
		return n.ExternalID
	}
	return fmt.Sprintf("internal-%d", n.ID)
}

// DisplayTitle returns n.Title, falling back to "Task #<id>" when empty,
// matching original_source's task_title fallback.
func (n *Node) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return fmt.Sprintf("Task #%d", n.ID)
}

// DisplayDetails returns n.Details, falling back to the placeholder used
// by original_source's node_details when empty. Structural validation
// should already have rejected empty details for any node that reaches
// this path in a synced graph, but the fallback is kept for nodes built
// outside the loader (e.g. lazily-created children).
func (n *Node) DisplayDetails() string {
	if n.Details != "" {
		return n.Details
	}
	return "(no details provided)"
}

// FindChild returns the first direct child of the given kind, or nil.
func (n *Node) FindChild(k Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// FindChildPending returns the first direct child of the given kind whose
// status is not Done, or nil.
func (n *Node) FindChildPending(k Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == k && c.Status != StatusDone {
			return c
		}
	}
	return nil
}

// Find performs a DFS search over the node and its descendants for the id.
func (n *Node) Find(id uint64) *Node {
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}
