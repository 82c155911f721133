package index

import (
	"database/sql"
	"fmt"
)

// Row is one indexed session directory.
type Row struct {
	DirName    string
	Workspace  string
	EpochSecs  int64
	CreatedAt  int64
	LastUsedAt int64
	Status     string
}

const rowColumns = `dir_name, workspace, epoch_secs, created_at, last_used_at, status`

// Upsert inserts the indexed row for a session directory or, if one
// exists, updates its workspace, last_used_at and status (epoch_secs and
// created_at keep their first values). Initialize calls it; OpenExisting
// uses Touch instead. The index is advisory only — a missing or stale row
// never blocks a read of the real directory.
func (d *DB) Upsert(row Row) error {
	_, err := d.conn.Exec(
		`INSERT INTO sessions (`+rowColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dir_name) DO UPDATE SET
		   workspace = excluded.workspace,
		   last_used_at = excluded.last_used_at,
		   status = excluded.status`,
		row.DirName, row.Workspace, row.EpochSecs, row.CreatedAt, row.LastUsedAt, row.Status,
	)
	if err != nil {
		return fmt.Errorf("upserting session index row: %w", err)
	}
	return nil
}

// Touch updates last_used_at for an existing row without disturbing the
// rest of its fields.
func (d *DB) Touch(dirName string, lastUsedAt int64) error {
	_, err := d.conn.Exec(`UPDATE sessions SET last_used_at = ? WHERE dir_name = ?`, lastUsedAt, dirName)
	if err != nil {
		return fmt.Errorf("touching session index row: %w", err)
	}
	return nil
}

// Delete removes a row, e.g. when its session directory is deleted.
func (d *DB) Delete(dirName string) error {
	_, err := d.conn.Exec(`DELETE FROM sessions WHERE dir_name = ?`, dirName)
	if err != nil {
		return fmt.Errorf("deleting session index row: %w", err)
	}
	return nil
}

func scanRow(scanner interface{ Scan(...any) error }) (Row, error) {
	var r Row
	err := scanner.Scan(&r.DirName, &r.Workspace, &r.EpochSecs, &r.CreatedAt, &r.LastUsedAt, &r.Status)
	return r, err
}

// List returns every indexed row ordered last_used_at desc, created_at
// desc — the same order SessionStore.list_sessions() uses when it falls
// back to a full directory scan, so callers can use either source
// interchangeably.
func (d *DB) List() ([]Row, error) {
	rows, err := d.conn.Query(`SELECT ` + rowColumns + ` FROM sessions ORDER BY last_used_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing session index rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session index row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session index rows: %w", err)
	}
	return out, nil
}

// Get returns the row for a single session directory, or sql.ErrNoRows if
// it hasn't been indexed (the filesystem is still the source of truth in
// that case).
func (d *DB) Get(dirName string) (Row, error) {
	row := d.conn.QueryRow(`SELECT `+rowColumns+` FROM sessions WHERE dir_name = ?`, dirName)
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return Row{}, sql.ErrNoRows
	}
	if err != nil {
		return Row{}, fmt.Errorf("getting session index row: %w", err)
	}
	return r, nil
}
