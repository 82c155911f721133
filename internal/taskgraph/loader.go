package taskgraph

import "fmt"

// Graph is the loaded, validated in-memory plan plus the allocator state
// needed to mint ids for lazily-created children later.
type Graph struct {
	Roots  []*Node
	nextID uint64
}

// AllocID mints the next dense internal id, matching original_source's
// monotonically-increasing alloc_id counter.
func (g *Graph) AllocID() uint64 {
	g.nextID++
	return g.nextID
}

// Find searches every root's subtree for the given id.
func (g *Graph) Find(id uint64) *Node {
	for _, r := range g.Roots {
		if n := r.Find(id); n != nil {
			return n
		}
	}
	return nil
}

// OrderedRoots returns root nodes with non-FinalAudit tasks first (in their
// relative order) and FinalAudit tasks last, matching original_source's
// ordered_root_nodes / spec.md 4.5.1's "renumbering so FinalAudit tasks
// sort last".
func (g *Graph) OrderedRoots() []*Node {
	var normal, final []*Node
	for _, r := range g.Roots {
		if r.Kind == KindFinalAudit {
			final = append(final, r)
		} else {
			normal = append(normal, r)
		}
	}
	return append(normal, final...)
}

// Load builds a validated Graph from file entries, per spec.md 4.3:
//  1. assign dense internal ids, map external id -> internal id
//  2. group children by parent_id, sort by order (ties by file order)
//  3. DFS from roots, detecting cycles
//  4. require every entry to be visited (no orphans)
//  5. apply structural invariants
//
// On any failure the returned error describes the violation and no Graph
// is returned; the caller is expected to keep using its previous Graph.
func Load(entries []Entry) (*Graph, error) {
	idToNum := make(map[string]uint64, len(entries))
	var nextID uint64
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("taskgraph: entry id cannot be empty")
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("taskgraph: duplicate entry id %q", e.ID)
		}
		seen[e.ID] = true
		nextID++
		idToNum[e.ID] = nextID
	}

	for _, e := range entries {
		if e.ParentID != nil {
			if _, ok := idToNum[*e.ParentID]; !ok {
				return nil, fmt.Errorf("taskgraph: entry %q references missing parent_id %q", e.ID, *e.ParentID)
			}
		}
	}

	childrenByParent := make(map[string][]*Entry)
	for i := range entries {
		e := &entries[i]
		childrenByParent[parentKey(e.ParentID)] = append(childrenByParent[parentKey(e.ParentID)], e)
	}
	for key := range childrenByParent {
		sortByOrder(childrenByParent[key])
	}

	visited := make(map[string]bool, len(entries))
	stack := make(map[string]bool)

	var build func(parentKeyStr string, isRootLevel bool) ([]*Node, error)
	build = func(parentKeyStr string, isRootLevel bool) ([]*Node, error) {
		var out []*Node
		for _, e := range childrenByParent[parentKeyStr] {
			if stack[e.ID] {
				return nil, fmt.Errorf("taskgraph: cycle detected at %q", e.ID)
			}
			stack[e.ID] = true
			visited[e.ID] = true
			children, err := build(e.ID, false)
			if err != nil {
				return nil, err
			}
			delete(stack, e.ID)

			kind := ParseKind(e.Kind)
			if isRootLevel && kind != KindTop && kind != KindFinalAudit {
				return nil, fmt.Errorf("taskgraph: root entry %q must have kind \"task\" or \"final_audit\"", e.ID)
			}
			out = append(out, &Node{
				ID:         idToNum[e.ID],
				ExternalID: e.ID,
				Title:      e.Title,
				Details:    e.Details,
				Docs:       e.Docs,
				Status:     ParseStatus(e.Status),
				Kind:       kind,
				Children:   children,
			})
		}
		return out, nil
	}

	roots, err := build(parentKeyNone, true)
	if err != nil {
		return nil, err
	}
	if len(visited) != len(entries) {
		return nil, fmt.Errorf("taskgraph: graph has disconnected or cyclic nodes")
	}

	if err := Validate(roots); err != nil {
		return nil, err
	}

	return &Graph{Roots: roots, nextID: nextID}, nil
}

const parentKeyNone = "\x00root"

func parentKey(id *string) string {
	if id == nil {
		return parentKeyNone
	}
	return *id
}
