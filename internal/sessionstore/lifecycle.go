package sessionstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/zjrosen/metaagentd/internal/log"
	"github.com/zjrosen/metaagentd/internal/sessionstore/index"
)

// Manager owns the configured sessions root directory and the optional
// SQLite index that accelerates ListSessions. The index is advisory: every
// Manager method that observes directory state directly (Initialize,
// ListSessions' fallback) still works correctly with idx == nil.
type Manager struct {
	root string
	idx  *index.DB
}

// NewManager returns a Manager rooted at root (e.g. config.DefaultSessionsRootDir()).
// idx may be nil to run without the accelerating cache.
func NewManager(root string, idx *index.DB) *Manager {
	return &Manager{root: root, idx: idx}
}

// Summary describes one session directory for listing purposes.
type Summary struct {
	DirName    string
	Workspace  string
	CreatedAt  int64
	LastUsedAt int64
}

// Initialize creates a new session directory for cwd under the configured
// root: "<epoch_secs>-<workspace_name>", with "-1", "-2", … appended on a
// same-second name collision (spec.md 4.1). It writes empty contents for
// all seven files and a metadata.json recording workspace + timestamps.
func Initialize(m *Manager, cwd string, nowEpochSecs int64) (*Store, error) {
	workspace := filepath.Base(filepath.Clean(cwd))
	base := fmt.Sprintf("%d-%s", nowEpochSecs, sanitizeDirComponent(workspace))

	dirName := base
	for suffix := 1; ; suffix++ {
		candidate := filepath.Join(m.root, dirName)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			break
		}
		dirName = fmt.Sprintf("%s-%d", base, suffix)
	}

	dir := filepath.Join(m.root, dirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("sessionstore: creating session dir: %w", err)
	}

	s := open(dir)
	if err := s.writeEmptyDefaults(); err != nil {
		return nil, err
	}

	meta := Metadata{
		Workspace:          cwd,
		CreatedAtEpochSecs: nowEpochSecs,
		LastUsedEpochSecs:  nowEpochSecs,
		SessionID:          uuid.New().String(),
	}
	if err := s.writeMetadata(meta); err != nil {
		return nil, err
	}

	if m.idx != nil {
		if err := m.idx.Upsert(index.Row{
			DirName: dirName, Workspace: cwd, EpochSecs: nowEpochSecs,
			CreatedAt: nowEpochSecs, LastUsedAt: nowEpochSecs, Status: "idle",
		}); err != nil {
			log.ErrorErr(log.CatSession, "Index upsert on initialize failed, index stays stale until rebuilt", err)
		}
	}

	log.Info(log.CatSession, "Session initialized", "dir", dirName, "workspace", cwd)
	return s, nil
}

// OpenExisting reopens dir under the configured root and touches its
// last-used timestamp.
func OpenExisting(m *Manager, dirName string, nowEpochSecs int64) (*Store, error) {
	dir := filepath.Join(m.root, dirName)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("sessionstore: opening %s: %w", dirName, err)
	}
	s := open(dir)

	meta, err := s.readMetadata()
	if err != nil {
		return nil, err
	}
	meta.LastUsedEpochSecs = nowEpochSecs
	if err := s.writeMetadata(meta); err != nil {
		return nil, err
	}

	if m.idx != nil {
		if err := m.idx.Touch(dirName, nowEpochSecs); err != nil {
			log.ErrorErr(log.CatSession, "Index touch on open failed, index stays stale until rebuilt", err)
		}
	}

	return s, nil
}

// ListSessions returns every session directory under the configured root,
// sorted by last-used desc then created-at desc (spec.md 4.1). It prefers
// the SQLite index when present and non-empty; on any index error, or when
// the index has never been populated, it falls back to a full directory
// walk so the filesystem remains authoritative.
func (m *Manager) ListSessions() ([]Summary, error) {
	if m.idx != nil {
		rows, err := m.idx.List()
		if err == nil && len(rows) > 0 {
			out := make([]Summary, len(rows))
			for i, r := range rows {
				out[i] = Summary{DirName: r.DirName, Workspace: r.Workspace, CreatedAt: r.CreatedAt, LastUsedAt: r.LastUsedAt}
			}
			return out, nil
		}
		if err != nil {
			log.ErrorErr(log.CatSession, "Index list failed, falling back to directory walk", err)
		}
	}
	return m.listSessionsFromDisk()
}

func (m *Manager) listSessionsFromDisk() ([]Summary, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionstore: listing %s: %w", m.root, err)
	}

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s := open(filepath.Join(m.root, e.Name()))
		meta, err := s.readMetadata()
		if err != nil {
			log.ErrorErr(log.CatSession, "Skipping unreadable session directory during list", err, "dir", e.Name())
			continue
		}
		out = append(out, Summary{DirName: e.Name(), Workspace: meta.Workspace, CreatedAt: meta.CreatedAtEpochSecs, LastUsedAt: meta.LastUsedEpochSecs})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastUsedAt != out[j].LastUsedAt {
			return out[i].LastUsedAt > out[j].LastUsedAt
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}

func (s *Store) writeEmptyDefaults() error {
	writers := []func() error{
		func() error { return s.writeFile(tasksFilename, []byte("[]")) },
		func() error { return s.writeFile(plannerFilename, nil) },
		func() error { return s.writeFile(rollingContextFilename, []byte("[]")) },
		func() error { return s.writeFile(taskFailsFilename, []byte("[]")) },
		func() error { return s.writeFile(projectInfoFilename, nil) },
		func() error { return s.writeFile(metaFilename, []byte("{}")) },
	}
	for _, w := range writers {
		if err := w(); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeDirComponent(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "workspace"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
