package taskgraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Entry is the on-disk shape of one tasks.json record (spec.md 6.1).
type Entry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Details  string  `json:"details"`
	Docs     []Doc   `json:"docs,omitempty"`
	Kind     string  `json:"kind"`
	Status   string  `json:"status"`
	ParentID *string `json:"parent_id"`
	Order    *uint32 `json:"order"`
}

// rawEntry accepts the permissive wire format: numeric ids coerced to
// string, and docs in any of the three legacy shapes (spec.md 6.1).
type rawEntry struct {
	ID       json.RawMessage `json:"id"`
	Title    string          `json:"title"`
	Details  string          `json:"details"`
	Docs     json.RawMessage `json:"docs"`
	Kind     string          `json:"kind"`
	Status   string          `json:"status"`
	ParentID json.RawMessage `json:"parent_id"`
	Order    *uint32         `json:"order"`
}

// ParseEntries decodes a tasks.json payload, coercing numeric ids/parent_ids
// to strings and normalizing the docs field's three legacy shapes.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raws []rawEntry
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("taskgraph: decoding tasks.json: %w", err)
	}
	out := make([]Entry, 0, len(raws))
	for _, r := range raws {
		id, err := coerceString(r.ID)
		if err != nil {
			return nil, fmt.Errorf("taskgraph: entry id: %w", err)
		}
		var parentID *string
		if len(r.ParentID) > 0 && string(r.ParentID) != "null" {
			pid, err := coerceString(r.ParentID)
			if err != nil {
				return nil, fmt.Errorf("taskgraph: entry %s parent_id: %w", id, err)
			}
			parentID = &pid
		}
		docs, err := parseDocs(r.Docs)
		if err != nil {
			return nil, fmt.Errorf("taskgraph: entry %s docs: %w", id, err)
		}
		out = append(out, Entry{
			ID:       id,
			Title:    r.Title,
			Details:  r.Details,
			Docs:     docs,
			Kind:     r.Kind,
			Status:   r.Status,
			ParentID: parentID,
			Order:    r.Order,
		})
	}
	return out, nil
}

func coerceString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("neither string nor number: %s", raw)
}

// parseDocs accepts an object list, a string list, or a single comma
// separated string, matching original_source's legacy docs compatibility
// (SPEC_FULL.md "Supplemented features").
func parseDocs(raw json.RawMessage) ([]Doc, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var asDocs []Doc
	if err := json.Unmarshal(raw, &asDocs); err == nil {
		return asDocs, nil
	}

	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil {
		return docsFromStrings(asStrings), nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return docsFromStrings(strings.Split(asString, ",")), nil
	}

	return nil, fmt.Errorf("unsupported docs shape: %s", raw)
}

func docsFromStrings(pieces []string) []Doc {
	docs := make([]Doc, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		docs = append(docs, Doc{Title: piece, URL: piece, Summary: ""})
	}
	return docs
}

// ToEntries flattens the ordered root nodes (FinalAudit roots sorted last,
// via OrderedRoots) back into the file representation, preserving sibling
// order. This is the inverse of Load, used for planner_tasks_for_file.
func ToEntries(roots []*Node) []Entry {
	var out []Entry
	var walk func(n *Node, parent *string, order uint32)
	walk = func(n *Node, parent *string, order uint32) {
		id := n.FileID()
		o := order
		out = append(out, Entry{
			ID:       id,
			Title:    n.Title,
			Details:  n.Details,
			Docs:     n.Docs,
			Kind:     n.Kind.String(),
			Status:   n.Status.String(),
			ParentID: parent,
			Order:    &o,
		})
		for idx, c := range n.Children {
			childOrder := uint32(idx)
			walk(c, &id, childOrder)
		}
	}
	for idx, root := range roots {
		walk(root, nil, uint32(idx))
	}
	return out
}

// sortByOrder sorts entries by Order ascending (nil/absent sorts last),
// ties broken by original file position (stable sort on the input slice
// index), matching spec.md 4.3 step 2.
func sortByOrder(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		oi, oj := entries[i].Order, entries[j].Order
		switch {
		case oi == nil && oj == nil:
			return false
		case oi == nil:
			return false
		case oj == nil:
			return true
		default:
			return *oi < *oj
		}
	})
}
