package taskgraph

import "fmt"

// AddFinalAuditRoot appends a new, pending FinalAudit root task to the
// graph (spec.md 4.5.1's "add final audit"). The caller is expected to
// persist the result via ToEntries(g.OrderedRoots()), which sorts the new
// root after every non-final top task regardless of insertion order.
func AddFinalAuditRoot(g *Graph, title, details string) *Node {
	n := &Node{
		ID:      g.AllocID(),
		Title:   title,
		Details: details,
		Kind:    KindFinalAudit,
		Status:  StatusPending,
	}
	g.Roots = append(g.Roots, n)
	return n
}

// RemoveFinalAuditRoot deletes the FinalAudit root with the given internal
// id (spec.md 4.5.1's "remove final audit"). It is an error to name a
// root that doesn't exist or isn't a FinalAudit, mirroring the structural
// guardrails the rest of this package enforces.
func RemoveFinalAuditRoot(g *Graph, id uint64) error {
	for i, r := range g.Roots {
		if r.ID != id {
			continue
		}
		if r.Kind != KindFinalAudit {
			return fmt.Errorf("taskgraph: root %s is not a final_audit task", r.FileID())
		}
		g.Roots = append(g.Roots[:i], g.Roots[i+1:]...)
		return nil
	}
	return fmt.Errorf("taskgraph: no root task with id %d", id)
}
