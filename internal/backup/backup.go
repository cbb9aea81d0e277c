// Package backup keeps rotating snapshots of the local state database so
// sessions, settings and unsynced edits survive a reset or a bad restore.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/filialwatch/internal/logger"
)

const (
	MaxBackups = 10
	DirName    = "backups"
	FilePrefix = "filialwatch-"
	FileSuffix = ".db"

	stampLayout = "20060102-150405"
)

// Info describes one snapshot on disk.
type Info struct {
	Path    string
	Taken   time.Time
	Size    int64
	Pending int // unsynced reports and notes held by the snapshot
}

type Manager struct {
	dbPath string
	dir    string
	now    func() time.Time
}

type Option func(*Manager)

// WithClock overrides the timestamp source. Tests use it.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager keeps snapshots of dbPath in a "backups" directory next to it.
func NewManager(dbPath string, opts ...Option) *Manager {
	m := &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Dir() string {
	return m.dir
}

// Create snapshots the local state and prunes the oldest snapshots beyond
// MaxBackups.
func (m *Manager) Create() (string, error) {
	path, err := m.create()
	if err != nil {
		return "", err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate old backups", "error", err)
	}
	return path, nil
}

func (m *Manager) create() (string, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		return "", fmt.Errorf("local state does not exist: %s", m.dbPath)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return "", err
	}

	db, err := sqlx.Open("sqlite", m.dbPath+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("failed to open local state: %w", err)
	}
	defer db.Close()

	if _, err := pendingCount(db); err != nil {
		return "", fmt.Errorf("local state is not a filialwatch database: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("failed to snapshot local state: %w", err)
	}
	logger.Debug("Created local state backup", "path", path)
	return path, nil
}

// nextPath picks a free file name for the current second, adding a counter
// when several snapshots land in the same second.
func (m *Manager) nextPath() (string, error) {
	stamp := m.now().Format(stampLayout)
	path := filepath.Join(m.dir, FilePrefix+stamp+FileSuffix)
	for i := 1; fileExists(path); i++ {
		if i > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s-%d%s", FilePrefix, stamp, i, FileSuffix))
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// parseName extracts the timestamp of a snapshot file name.
func parseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix)
	if len(stamp) > len(stampLayout) {
		stamp = stamp[:len(stampLayout)]
	}
	t, err := time.ParseInLocation(stampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// List returns the snapshots, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		taken, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		backups = append(backups, Info{
			Path:    path,
			Taken:   taken,
			Size:    info.Size(),
			Pending: countPendingIn(path),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Taken.Equal(backups[j].Taken) {
			return backups[i].Path > backups[j].Path
		}
		return backups[i].Taken.After(backups[j].Taken)
	})
	return backups, nil
}

func (m *Manager) rotate() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// Restore replaces the local state with the snapshot at path. The current
// state is snapshotted first; that snapshot's path is returned. The store
// must be closed before calling Restore.
func (m *Manager) Restore(path string) (string, error) {
	if !fileExists(path) {
		return "", fmt.Errorf("backup file does not exist: %s", path)
	}
	if err := Verify(path); err != nil {
		return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var previous string
	if fileExists(m.dbPath) {
		var err error
		if previous, err = m.create(); err != nil {
			return "", fmt.Errorf("failed to back up current state before restore: %w", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return "", fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			logger.Warn("Failed to remove temporary file", "path", tmp, "error", rmErr)
		}
		return "", fmt.Errorf("failed to restore local state: %w", err)
	}
	return previous, nil
}

// Verify checks that path holds a local state database.
func Verify(path string) error {
	db, err := sqlx.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = pendingCount(db)
	return err
}

func pendingCount(db *sqlx.DB) (int, error) {
	var n int
	err := db.Get(&n, `SELECT (SELECT COUNT(*) FROM pending_reports) + (SELECT COUNT(*) FROM pending_notes)`)
	return n, err
}

func countPendingIn(path string) int {
	db, err := sqlx.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return 0
	}
	defer db.Close()
	n, err := pendingCount(db)
	if err != nil {
		return 0
	}
	return n
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}
