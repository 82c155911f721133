package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddFinalAuditRootSortsLast(t *testing.T) {
	g, err := Load(validPlan())
	require.NoError(t, err)

	fa := AddFinalAuditRoot(g, "Final review", "review everything before ship")
	require.Equal(t, KindFinalAudit, fa.Kind)
	require.Equal(t, StatusPending, fa.Status)

	ordered := g.OrderedRoots()
	require.Len(t, ordered, 2)
	require.Equal(t, KindFinalAudit, ordered[len(ordered)-1].Kind)

	entries := ToEntries(ordered)
	last := entries[len(entries)-1]
	require.Equal(t, "final_audit", last.Kind)
	require.Equal(t, uint32(1), *last.Order)
}

func TestAddFinalAuditRootAllocatesFreshID(t *testing.T) {
	g, err := Load(validPlan())
	require.NoError(t, err)
	before := g.AllocID()

	fa := AddFinalAuditRoot(g, "Final review", "details")
	require.Greater(t, fa.ID, before)
}

func TestRemoveFinalAuditRoot(t *testing.T) {
	g, err := Load(validPlan())
	require.NoError(t, err)
	fa := AddFinalAuditRoot(g, "Final review", "details")

	require.NoError(t, RemoveFinalAuditRoot(g, fa.ID))
	require.Len(t, g.Roots, 1)
	require.Equal(t, KindTop, g.Roots[0].Kind)
}

func TestRemoveFinalAuditRootRejectsNonFinalAudit(t *testing.T) {
	g, err := Load(validPlan())
	require.NoError(t, err)
	err = RemoveFinalAuditRoot(g, g.Roots[0].ID)
	require.Error(t, err)
}

func TestRemoveFinalAuditRootRejectsUnknownID(t *testing.T) {
	g, err := Load(validPlan())
	require.NoError(t, err)
	require.Error(t, RemoveFinalAuditRoot(g, 99999))
}
