package sessionstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/metaagentd/internal/taskgraph"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), nil)
}

func TestInitializeWritesEmptyDefaultsAndMetadata(t *testing.T) {
	m := newTestManager(t)
	s, err := Initialize(m, "/work/my-app", 1000)
	require.NoError(t, err)
	require.Equal(t, "1000-my-app", filepath.Base(s.Dir()))

	tasks, err := s.ReadTasks()
	require.NoError(t, err)
	require.Empty(t, tasks)

	rc, err := s.ReadRollingContext()
	require.NoError(t, err)
	require.Empty(t, rc)

	fails, err := s.ReadTaskFails()
	require.NoError(t, err)
	require.Empty(t, fails)

	planner, err := s.ReadPlanner()
	require.NoError(t, err)
	require.Equal(t, "", planner)
}

func TestInitializeAppendsSuffixOnCollision(t *testing.T) {
	m := newTestManager(t)
	first, err := Initialize(m, "/work/my-app", 2000)
	require.NoError(t, err)
	second, err := Initialize(m, "/work/my-app", 2000)
	require.NoError(t, err)

	require.Equal(t, "2000-my-app", filepath.Base(first.Dir()))
	require.Equal(t, "2000-my-app-1", filepath.Base(second.Dir()))
}

func TestInitializeMintsUniqueSessionID(t *testing.T) {
	m := newTestManager(t)
	a, err := Initialize(m, "/work/my-app", 4000)
	require.NoError(t, err)
	b, err := Initialize(m, "/work/my-app", 4000)
	require.NoError(t, err)

	idA, err := a.SessionID()
	require.NoError(t, err)
	idB, err := b.SessionID()
	require.NoError(t, err)

	require.NotEmpty(t, idA)
	require.NotEmpty(t, idB)
	require.NotEqual(t, idA, idB)
}

func TestOpenExistingPreservesSessionID(t *testing.T) {
	m := newTestManager(t)
	s, err := Initialize(m, "/work/my-app", 4500)
	require.NoError(t, err)
	dirName := filepath.Base(s.Dir())
	id, err := s.SessionID()
	require.NoError(t, err)

	reopened, err := OpenExisting(m, dirName, 4600)
	require.NoError(t, err)
	reopenedID, err := reopened.SessionID()
	require.NoError(t, err)
	require.Equal(t, id, reopenedID)
}

func TestOpenExistingTouchesLastUsed(t *testing.T) {
	m := newTestManager(t)
	s, err := Initialize(m, "/work/my-app", 3000)
	require.NoError(t, err)
	dirName := filepath.Base(s.Dir())

	reopened, err := OpenExisting(m, dirName, 3500)
	require.NoError(t, err)
	meta, err := reopened.readMetadata()
	require.NoError(t, err)
	require.Equal(t, int64(3000), meta.CreatedAtEpochSecs)
	require.Equal(t, int64(3500), meta.LastUsedEpochSecs)
}

func TestListSessionsSortsByLastUsedThenCreatedDesc(t *testing.T) {
	m := newTestManager(t)
	_, err := Initialize(m, "/work/a", 100)
	require.NoError(t, err)
	_, err = Initialize(m, "/work/b", 200)
	require.NoError(t, err)
	_, err = Initialize(m, "/work/c", 150)
	require.NoError(t, err)

	summaries, err := m.ListSessions()
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	require.Equal(t, "/work/b", summaries[0].Workspace)
	require.Equal(t, "/work/c", summaries[1].Workspace)
	require.Equal(t, "/work/a", summaries[2].Workspace)
}

func TestWriteAndReadTasksRoundTrips(t *testing.T) {
	m := newTestManager(t)
	s, err := Initialize(m, "/work/my-app", 1)
	require.NoError(t, err)

	order := uint32(0)
	entries := []taskgraph.Entry{
		{ID: "top-1", Title: "Build the thing", Details: "do it", Kind: "task", Status: "pending", Order: &order},
	}
	require.NoError(t, s.WriteTasks(entries))

	got, err := s.ReadTasks()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "top-1", got[0].ID)
}

func TestAppendTaskFailRecoversFromCorruptFile(t *testing.T) {
	m := newTestManager(t)
	s, err := Initialize(m, "/work/my-app", 1)
	require.NoError(t, err)

	require.NoError(t, s.writeFile(taskFailsFilename, []byte("not json")))

	err = s.AppendTaskFail(TaskFailure{Kind: "Audit", TopTaskID: "top-1", Attempts: 4, CreatedAtEpochSecs: 99})
	require.NoError(t, err)

	fails, err := s.ReadTaskFails()
	require.NoError(t, err)
	require.Len(t, fails, 1)
	require.Equal(t, "top-1", fails[0].TopTaskID)
}

func TestRollingContextRoundTrips(t *testing.T) {
	m := newTestManager(t)
	s, err := Initialize(m, "/work/my-app", 1)
	require.NoError(t, err)

	require.NoError(t, s.WriteRollingContext([]string{"implementor-1 finished pass 1", "auditor-1 approved pass 1"}))
	got, err := s.ReadRollingContext()
	require.NoError(t, err)
	require.Equal(t, []string{"implementor-1 finished pass 1", "auditor-1 approved pass 1"}, got)
}

func TestReadSessionMetaFreshSessionReturnsZeroValue(t *testing.T) {
	m := newTestManager(t)
	s, err := Initialize(m, "/work/my-app", 1)
	require.NoError(t, err)

	meta, err := s.ReadSessionMeta()
	require.NoError(t, err)
	require.Equal(t, SessionMeta{}, meta)
}
