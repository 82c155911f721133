package index

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	db := openTestDB(t)
	rows, err := db.List()
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestUpsertThenGet(t *testing.T) {
	db := openTestDB(t)

	row := Row{DirName: "1700000000-myproject", Workspace: "myproject", EpochSecs: 1700000000, CreatedAt: 1700000000, LastUsedAt: 1700000000, Status: "idle"}
	require.NoError(t, db.Upsert(row))

	got, err := db.Get(row.DirName)
	require.NoError(t, err)
	require.Equal(t, row, got)
}

func TestGetMissingReturnsErrNoRows(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Get("does-not-exist")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpsertIsIdempotentAndUpdatesLastUsed(t *testing.T) {
	db := openTestDB(t)
	row := Row{DirName: "d1", Workspace: "w1", EpochSecs: 1, CreatedAt: 1, LastUsedAt: 1, Status: "idle"}
	require.NoError(t, db.Upsert(row))

	row.LastUsedAt = 2
	row.Status = "active"
	require.NoError(t, db.Upsert(row))

	got, err := db.Get("d1")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.LastUsedAt)
	require.Equal(t, "active", got.Status)
	require.Equal(t, int64(1), got.CreatedAt)
}

func TestListOrdersByLastUsedThenCreatedDesc(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Upsert(Row{DirName: "old", Workspace: "w", EpochSecs: 1, CreatedAt: 1, LastUsedAt: 1, Status: "idle"}))
	require.NoError(t, db.Upsert(Row{DirName: "new", Workspace: "w", EpochSecs: 2, CreatedAt: 2, LastUsedAt: 2, Status: "idle"}))

	rows, err := db.List()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "new", rows[0].DirName)
	require.Equal(t, "old", rows[1].DirName)
}

func TestTouchUpdatesLastUsedOnly(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Upsert(Row{DirName: "d1", Workspace: "w1", EpochSecs: 1, CreatedAt: 1, LastUsedAt: 1, Status: "idle"}))
	require.NoError(t, db.Touch("d1", 99))

	got, err := db.Get("d1")
	require.NoError(t, err)
	require.Equal(t, int64(99), got.LastUsedAt)
	require.Equal(t, "idle", got.Status)
}

func TestDeleteRemovesRow(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Upsert(Row{DirName: "d1", Workspace: "w1", EpochSecs: 1, CreatedAt: 1, LastUsedAt: 1, Status: "idle"}))
	require.NoError(t, db.Delete("d1"))

	_, err := db.Get("d1")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
