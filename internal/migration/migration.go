// Package migration applies the numbered SQL files embedded under
// migrations/ to the local state or to a backend database, recording the
// applied version in a one-row schema_version table.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrSchemaTooNew means the database was migrated by a newer filialwatch.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// Migration is one NNN_name.sql file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Status compares the database with the files shipped in the binary.
type Status struct {
	Current int
	Latest  int
	Pending []Migration
}

func (s Status) UpToDate() bool { return len(s.Pending) == 0 }

// Runner migrates one database. The driver name picks the placeholder
// style for the version bookkeeping ("sqlite" or "postgres").
type Runner struct {
	db    *sqlx.DB
	files fs.FS
}

func NewRunner(db *sql.DB, files fs.FS, driver string) *Runner {
	return &Runner{db: sqlx.NewDb(db, driver), files: files}
}

// parseName splits "002_pending_notes.sql" into 2 and "pending_notes".
func parseName(file string) (int, string, error) {
	prefix, name, ok := strings.Cut(strings.TrimSuffix(file, ".sql"), "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("invalid migration filename format: %s (expected NNN_name.sql)", file)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", fmt.Errorf("invalid version number in filename %s: %w", file, err)
	}
	if version < 1 {
		return 0, "", fmt.Errorf("invalid version number in filename %s: version must be at least 1", file)
	}
	return version, name, nil
}

// Load reads the .sql files at the root of files, ordered by version.
// Other files are ignored.
func Load(files fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		version, name, err := parseName(e.Name())
		if err != nil {
			return nil, err
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d (%s, %s)", version, other, e.Name())
		}
		seen[version] = e.Name()

		body, err := fs.ReadFile(files, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *Runner) current(ctx context.Context) (int, error) {
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_version: %w", err)
	}
	var version int
	err := r.db.GetContext(ctx, &version, `SELECT version FROM schema_version`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Status reports the applied version, the newest shipped one and the files
// still to run. A database ahead of the binary yields ErrSchemaTooNew.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	current, err := r.current(ctx)
	if err != nil {
		return Status{}, err
	}
	all, err := Load(r.files)
	if err != nil {
		return Status{}, err
	}

	st := Status{Current: current}
	if len(all) > 0 {
		st.Latest = all[len(all)-1].Version
	}
	if current > st.Latest {
		return st, fmt.Errorf("%w: version %d, this build knows up to %d; upgrade filialwatch", ErrSchemaTooNew, current, st.Latest)
	}
	for _, m := range all {
		if m.Version > current {
			st.Pending = append(st.Pending, m)
		}
	}
	return st, nil
}

func setVersion(ctx context.Context, tx *sqlx.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_version (version) VALUES (?)`), version)
	return err
}

// SetVersion records version without running anything.
func (r *Runner) SetVersion(ctx context.Context, version int) error {
	if _, err := r.current(ctx); err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := setVersion(ctx, tx, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}

// Apply runs every pending file, each in its own transaction together with
// the version bump, and returns how many ran. progress may be nil.
func (r *Runner) Apply(ctx context.Context, progress func(string)) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}
	st, err := r.Status(ctx)
	if err != nil {
		return 0, err
	}
	if st.UpToDate() {
		progress(fmt.Sprintf("Schema up to date (version %d)", st.Current))
		return 0, nil
	}

	progress(fmt.Sprintf("Migrating schema from version %d to %d", st.Current, st.Latest))
	started := time.Now()
	for i, m := range st.Pending {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return i, fmt.Errorf("migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return i, fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if err := setVersion(ctx, tx, m.Version); err != nil {
			_ = tx.Rollback()
			return i, fmt.Errorf("migration %d: recording version: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return i, fmt.Errorf("migration %d: commit: %w", m.Version, err)
		}
		progress(fmt.Sprintf("  ✓ %03d %s", m.Version, m.Name))
	}
	progress(fmt.Sprintf("Applied %d migration(s) in %v", len(st.Pending), time.Since(started).Round(time.Millisecond)))
	return len(st.Pending), nil
}
