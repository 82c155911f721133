package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func u32Ptr(v uint32) *uint32 { return &v }

func validPlan() []Entry {
	return []Entry{
		{ID: "top-1", Title: "Ship fix", Details: "ship it", Kind: "task", Status: "pending"},
		{ID: "impl-1", Details: "implement", Kind: "implementor", ParentID: strPtr("top-1"), Order: u32Ptr(0)},
		{ID: "audit-1", Details: "review", Kind: "auditor", ParentID: strPtr("impl-1"), Order: u32Ptr(0)},
		{ID: "tw-1", Details: "tests", Kind: "test_writer", ParentID: strPtr("top-1"), Order: u32Ptr(1)},
		{ID: "tr-1", Details: "run tests", Kind: "test_runner", ParentID: strPtr("tw-1"), Order: u32Ptr(0)},
	}
}

func TestLoadValidPlan(t *testing.T) {
	g, err := Load(validPlan())
	require.NoError(t, err)
	require.Len(t, g.Roots, 1)
	top := g.Roots[0]
	require.Equal(t, KindTop, top.Kind)
	require.Len(t, top.Children, 2)
}

func TestLoadRejectsImplementorWithoutAuditor(t *testing.T) {
	entries := []Entry{
		{ID: "top-1", Details: "ship it", Kind: "task"},
		{ID: "impl-1", Details: "implement", Kind: "implementor", ParentID: strPtr("top-1")},
	}
	_, err := Load(entries)
	require.Error(t, err)
}

func TestLoadRejectsEmptyDetails(t *testing.T) {
	entries := []Entry{
		{ID: "top-1", Details: "", Kind: "task"},
	}
	_, err := Load(entries)
	require.Error(t, err)
}

func TestLoadRejectsCycle(t *testing.T) {
	entries := []Entry{
		{ID: "a", Details: "a", Kind: "task", ParentID: strPtr("b")},
		{ID: "b", Details: "b", Kind: "implementor", ParentID: strPtr("a")},
	}
	_, err := Load(entries)
	require.Error(t, err)
}

func TestLoadRejectsMissingParent(t *testing.T) {
	entries := []Entry{
		{ID: "a", Details: "a", Kind: "task", ParentID: strPtr("ghost")},
	}
	_, err := Load(entries)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	entries := []Entry{
		{ID: "a", Details: "a", Kind: "task"},
		{ID: "a", Details: "a2", Kind: "task"},
	}
	_, err := Load(entries)
	require.Error(t, err)
}

func TestLoadRejectsNestedTestWriter(t *testing.T) {
	entries := []Entry{
		{ID: "top-1", Details: "d", Kind: "task"},
		{ID: "impl-1", Details: "d", Kind: "implementor", ParentID: strPtr("top-1")},
		{ID: "audit-1", Details: "d", Kind: "auditor", ParentID: strPtr("impl-1")},
		{ID: "tw-1", Details: "d", Kind: "test_writer", ParentID: strPtr("impl-1")},
		{ID: "tr-1", Details: "d", Kind: "test_runner", ParentID: strPtr("tw-1")},
	}
	_, err := Load(entries)
	require.Error(t, err)
}

func TestLoadRejectsRunnerBeforeAuditor(t *testing.T) {
	entries := []Entry{
		{ID: "top-1", Details: "d", Kind: "task"},
		{ID: "impl-1", Details: "d", Kind: "implementor", ParentID: strPtr("top-1")},
		{ID: "tr-1", Details: "d", Kind: "test_runner", ParentID: strPtr("impl-1"), Order: u32Ptr(0)},
		{ID: "audit-1", Details: "d", Kind: "auditor", ParentID: strPtr("impl-1"), Order: u32Ptr(1)},
	}
	_, err := Load(entries)
	require.Error(t, err)
}

func TestLoadCoercesNumericIDs(t *testing.T) {
	data := []byte(`[
		{"id": 1, "title": "Top", "details": "d", "kind": "task"},
		{"id": 2, "details": "d", "kind": "implementor", "parent_id": 1},
		{"id": 3, "details": "d", "kind": "auditor", "parent_id": 2}
	]`)
	entries, err := ParseEntries(data)
	require.NoError(t, err)
	require.Equal(t, "1", entries[0].ID)
	require.Equal(t, "1", *entries[1].ParentID)

	g, err := Load(entries)
	require.NoError(t, err)
	require.Len(t, g.Roots, 1)
}

func TestRoundTripPreservesTreeShape(t *testing.T) {
	g, err := Load(validPlan())
	require.NoError(t, err)

	entries := ToEntries(g.OrderedRoots())
	g2, err := Load(entries)
	require.NoError(t, err)

	require.Equal(t, len(g.Roots), len(g2.Roots))
	require.Equal(t, g.Roots[0].DisplayTitle(), g2.Roots[0].DisplayTitle())
	require.Equal(t, len(g.Roots[0].Children), len(g2.Roots[0].Children))
}

func TestOrderedRootsPutsFinalAuditLast(t *testing.T) {
	entries := []Entry{
		{ID: "final-1", Details: "d", Kind: "final_audit"},
		{ID: "top-1", Details: "d", Kind: "task"},
	}
	g, err := Load(entries)
	require.NoError(t, err)
	ordered := g.OrderedRoots()
	require.Equal(t, KindTop, ordered[0].Kind)
	require.Equal(t, KindFinalAudit, ordered[1].Kind)
}

func TestParseDocsLegacyShapes(t *testing.T) {
	docs, err := parseDocs([]byte(`"a,b, c"`))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "a", docs[0].Title)

	docs, err = parseDocs([]byte(`["x","y"]`))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs, err = parseDocs([]byte(`[{"title":"t","url":"u","summary":"s"}]`))
	require.NoError(t, err)
	require.Equal(t, "t", docs[0].Title)
}
