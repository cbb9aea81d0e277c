// Package backend is the reference server for the dashboard's HTTP/JSON
// contract: a catalog of programs and affiliates, per-day reports, weekly
// notes and a websocket feed of changes.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/migration"
	"github.com/julianstephens/filialwatch/migrations"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type programRow struct {
	ID         string `db:"id"`
	Nombre     string `db:"nombre"`
	Horario    string `db:"horario"`
	DiasSemana string `db:"dias_semana"`
	IsActivo   bool   `db:"is_activo"`
	CreatedAt  string `db:"created_at"`
}

type affiliateRow struct {
	ID        string `db:"id"`
	Nombre    string `db:"nombre"`
	IsActivo  bool   `db:"is_activo"`
	CreatedAt string `db:"created_at"`
}

type reportRow struct {
	FilialID   string         `db:"filial_id"`
	ProgramaID string         `db:"programa_id"`
	Fecha      string         `db:"fecha"`
	Estado     string         `db:"estado"`
	HoraReal   sql.NullString `db:"hora_real"`
	HoraTT     sql.NullString `db:"hora_tt"`
	Target     sql.NullString `db:"target"`
	Motivo     sql.NullString `db:"motivo"`
	UpdatedAt  string         `db:"updated_at"`
}

type noteRow struct {
	FilialID  string `db:"filial_id"`
	WeekStart string `db:"week_start"`
	Content   string `db:"content"`
	UpdatedAt string `db:"updated_at"`
}

// Repository is the backend's SQL store.
type Repository struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
}

// DetectDriver picks the driver for a DSN: postgres URLs and key=value
// strings go to lib/pq, everything else is a SQLite path.
func DetectDriver(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") || strings.Contains(d, "host=") || strings.Contains(d, "dbname=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// OpenRepository connects to dsn, applies the backend migrations and
// returns the repository.
func OpenRepository(ctx context.Context, dsn string) (*Repository, error) {
	driver := DetectDriver(dsn)
	source := dsn
	migrationsDir := migrations.BackendPostgres
	if driver == DriverSQLite {
		migrationsDir = migrations.BackendSQLite
		path := strings.TrimPrefix(dsn, "file:")
		if i := strings.Index(path, "?"); i >= 0 {
			path = path[:i]
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		source = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	sub, err := fs.Sub(migrations.FS, migrationsDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load backend migrations: %w", err)
	}
	runner := migration.NewRunner(db.DB, sub, driver)
	if _, err := runner.Apply(ctx, func(msg string) { logger.Info(msg) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply backend migrations: %w", err)
	}

	return &Repository{db: db, driver: driver, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Driver() string {
	return r.driver
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func affected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListPrograms(ctx context.Context) ([]programRow, error) {
	rows := []programRow{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, nombre, horario, dias_semana, is_activo, created_at FROM programs ORDER BY horario, nombre`); err != nil {
		return nil, fmt.Errorf("select programs: %w", err)
	}
	return rows, nil
}

func (r *Repository) GetProgram(ctx context.Context, id string) (programRow, error) {
	var p programRow
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT id, nombre, horario, dias_semana, is_activo, created_at FROM programs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return programRow{}, fmt.Errorf("program %s: %w", id, apperrors.ErrNotFound)
	}
	return p, err
}

func (r *Repository) CreateProgram(ctx context.Context, p programRow) (programRow, error) {
	if p.CreatedAt == "" {
		p.CreatedAt = r.timestamp()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO programs (id, nombre, horario, dias_semana, is_activo, created_at)
VALUES (:id, :nombre, :horario, :dias_semana, :is_activo, :created_at)`, p)
	if err != nil {
		return programRow{}, fmt.Errorf("insert program: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdateProgram(ctx context.Context, p programRow) (programRow, error) {
	res, err := r.db.NamedExecContext(ctx, `UPDATE programs
SET nombre = :nombre, horario = :horario, dias_semana = :dias_semana, is_activo = :is_activo
WHERE id = :id`, p)
	if err != nil {
		return programRow{}, fmt.Errorf("update program: %w", err)
	}
	if err := affected(res, "program", p.ID); err != nil {
		return programRow{}, err
	}
	return r.GetProgram(ctx, p.ID)
}

// DeleteProgram removes the program and its reports.
func (r *Repository) DeleteProgram(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM reports WHERE programa_id = ?`), id); err != nil {
			return fmt.Errorf("delete program reports: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM programs WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete program: %w", err)
		}
		return affected(res, "program", id)
	})
}

func (r *Repository) ListAffiliates(ctx context.Context) ([]affiliateRow, error) {
	rows := []affiliateRow{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, nombre, is_activo, created_at FROM affiliates ORDER BY nombre`); err != nil {
		return nil, fmt.Errorf("select affiliates: %w", err)
	}
	return rows, nil
}

func (r *Repository) GetAffiliate(ctx context.Context, id string) (affiliateRow, error) {
	var a affiliateRow
	err := r.db.GetContext(ctx, &a, r.db.Rebind(`SELECT id, nombre, is_activo, created_at FROM affiliates WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return affiliateRow{}, fmt.Errorf("affiliate %s: %w", id, apperrors.ErrNotFound)
	}
	return a, err
}

func (r *Repository) CreateAffiliate(ctx context.Context, a affiliateRow) (affiliateRow, error) {
	if a.CreatedAt == "" {
		a.CreatedAt = r.timestamp()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO affiliates (id, nombre, is_activo, created_at)
VALUES (:id, :nombre, :is_activo, :created_at)`, a)
	if err != nil {
		return affiliateRow{}, fmt.Errorf("insert affiliate: %w", err)
	}
	return a, nil
}

func (r *Repository) UpdateAffiliate(ctx context.Context, a affiliateRow) (affiliateRow, error) {
	res, err := r.db.NamedExecContext(ctx, `UPDATE affiliates SET nombre = :nombre, is_activo = :is_activo WHERE id = :id`, a)
	if err != nil {
		return affiliateRow{}, fmt.Errorf("update affiliate: %w", err)
	}
	if err := affected(res, "affiliate", a.ID); err != nil {
		return affiliateRow{}, err
	}
	return r.GetAffiliate(ctx, a.ID)
}

// DeleteAffiliate removes the affiliate with its reports and notes.
func (r *Repository) DeleteAffiliate(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, q := range []string{
			`DELETE FROM reports WHERE filial_id = ?`,
			`DELETE FROM notes WHERE filial_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
				return fmt.Errorf("delete affiliate data: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM affiliates WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete affiliate: %w", err)
		}
		return affected(res, "affiliate", id)
	})
}

// ListReports returns the reports with fecha between from and to
// (YYYY-MM-DD, both inclusive).
func (r *Repository) ListReports(ctx context.Context, from, to string) ([]reportRow, error) {
	rows := []reportRow{}
	q := r.db.Rebind(`SELECT filial_id, programa_id, fecha, estado, hora_real, hora_tt, target, motivo, updated_at
FROM reports WHERE fecha >= ? AND fecha <= ? ORDER BY fecha, filial_id, programa_id`)
	if err := r.db.SelectContext(ctx, &rows, q, from, to); err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	return rows, nil
}

// UpsertReport replaces the report of (filial, programa, fecha).
func (r *Repository) UpsertReport(ctx context.Context, row reportRow) (reportRow, error) {
	row.UpdatedAt = r.timestamp()
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO reports (filial_id, programa_id, fecha, estado, hora_real, hora_tt, target, motivo, updated_at)
VALUES (:filial_id, :programa_id, :fecha, :estado, :hora_real, :hora_tt, :target, :motivo, :updated_at)
ON CONFLICT (filial_id, programa_id, fecha) DO UPDATE SET
    estado = excluded.estado,
    hora_real = excluded.hora_real,
    hora_tt = excluded.hora_tt,
    target = excluded.target,
    motivo = excluded.motivo,
    updated_at = excluded.updated_at`, row)
	if err != nil {
		return reportRow{}, fmt.Errorf("upsert report: %w", err)
	}
	return row, nil
}

func (r *Repository) ListNotes(ctx context.Context, weekStart string) ([]noteRow, error) {
	rows := []noteRow{}
	q := r.db.Rebind(`SELECT filial_id, week_start, content, updated_at FROM notes WHERE week_start = ? ORDER BY filial_id`)
	if err := r.db.SelectContext(ctx, &rows, q, weekStart); err != nil {
		return nil, fmt.Errorf("select notes: %w", err)
	}
	return rows, nil
}

func (r *Repository) UpsertNote(ctx context.Context, n noteRow) (noteRow, error) {
	n.UpdatedAt = r.timestamp()
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO notes (filial_id, week_start, content, updated_at)
VALUES (:filial_id, :week_start, :content, :updated_at)
ON CONFLICT (filial_id, week_start) DO UPDATE SET
    content = excluded.content,
    updated_at = excluded.updated_at`, n)
	if err != nil {
		return noteRow{}, fmt.Errorf("upsert note: %w", err)
	}
	return n, nil
}

// CatalogEmpty reports whether no program and no affiliate exist yet.
func (r *Repository) CatalogEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT (SELECT COUNT(*) FROM programs) + (SELECT COUNT(*) FROM affiliates)`); err != nil {
		return false, err
	}
	return n == 0, nil
}
