package taskgraph

import "fmt"

// Validate applies the structural invariants of spec.md 3.1 to a built
// (already-acyclic, already-connected) tree. Any violation returns an
// error describing it; the caller must discard the candidate tree and
// keep whatever graph it had before attempting this load.
func Validate(roots []*Node) error {
	for _, root := range roots {
		if err := validateNode(root); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node) error {
	if n.Details == "" {
		return fmt.Errorf("taskgraph: node %s has empty details", n.FileID())
	}

	switch n.Kind {
	case KindImplementor:
		if countChildren(n, KindAuditor) < 1 {
			return fmt.Errorf("taskgraph: implementor %s must have at least one auditor child", n.FileID())
		}
		if err := validateRunnerAfterAudits(n); err != nil {
			return err
		}
	case KindTestWriter:
		if countChildren(n, KindTestRunner) < 1 {
			return fmt.Errorf("taskgraph: test_writer %s must have at least one test_runner child", n.FileID())
		}
	}

	for _, c := range n.Children {
		if n.Kind != KindTop && c.Kind == KindTestWriter {
			return fmt.Errorf("taskgraph: test_writer %s must be a direct child of a top task", c.FileID())
		}
		if err := validateNode(c); err != nil {
			return err
		}
	}
	return nil
}

func countChildren(n *Node, k Kind) int {
	count := 0
	for _, c := range n.Children {
		if c.Kind == k {
			count++
		}
	}
	return count
}

// validateRunnerAfterAudits enforces that when an Implementor has a
// TestRunner child, its position among siblings (order in the Children
// slice, which Load already sorted by the file's `order` field) is after
// every Auditor sibling.
func validateRunnerAfterAudits(n *Node) error {
	lastAuditorIdx := -1
	runnerIdx := -1
	for i, c := range n.Children {
		switch c.Kind {
		case KindAuditor:
			lastAuditorIdx = i
		case KindTestRunner:
			if runnerIdx == -1 {
				runnerIdx = i
			}
		}
	}
	if runnerIdx != -1 && runnerIdx < lastAuditorIdx {
		return fmt.Errorf("taskgraph: implementor %s test_runner must be ordered after all auditor siblings", n.FileID())
	}
	return nil
}
