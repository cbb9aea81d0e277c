package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/filialwatch/internal/constants"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/migration"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
	"github.com/julianstephens/filialwatch/migrations"
)

type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path: path,
	}
}

func (s *SQLiteStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	settings, err := s.GetSettings()
	if err != nil {
		return err
	}
	if settings.SessionSecret == "" {
		secret, err := newSecret()
		if err != nil {
			return err
		}
		settings.SessionSecret = secret
		if err := s.SaveSettings(settings); err != nil {
			return fmt.Errorf("failed to save default settings: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	return s.validateSchemaVersion()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, migrations.Local)
	if err != nil {
		return nil, fmt.Errorf("failed to access local migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, "sqlite"), nil
}

func (s *SQLiteStore) runMigrations() error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	_, err = runner.Apply(context.Background(), func(msg string) {
		logger.Debug(msg)
	})
	return err
}

// validateSchemaVersion refuses a state written by a newer build and
// upgrades an older one in place.
func (s *SQLiteStore) validateSchemaVersion() error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	st, err := runner.Status(context.Background())
	if err != nil {
		return err
	}
	if !st.UpToDate() {
		logger.Info("Applying local schema upgrades", "pending", len(st.Pending))
		return s.runMigrations()
	}
	return nil
}

// GetDB exposes the connection for diagnostics.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// SchemaVersions returns the applied and the newest known local schema version.
func (s *SQLiteStore) SchemaVersions() (current, latest int, err error) {
	if s.db == nil {
		return 0, 0, errors.New("database connection is nil")
	}
	runner, err := s.runner()
	if err != nil {
		return 0, 0, err
	}
	st, err := runner.Status(context.Background())
	if err != nil && !errors.Is(err, migration.ErrSchemaTooNew) {
		return 0, 0, fmt.Errorf("failed to read schema status: %w", err)
	}
	return st.Current, st.Latest, nil
}

func (s *SQLiteStore) GetConfigPath() string {
	return s.path
}

func (s *SQLiteStore) GetSettings() (Settings, error) {
	if s.db == nil {
		return Settings{}, fmt.Errorf("storage not loaded, run '%s init' first", constants.AppName)
	}
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return Settings{}, err
	}
	defer rows.Close()

	settings := Settings{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, err
		}
		switch key {
		case constants.SettingSessionSecret:
			settings.SessionSecret = value
		case constants.SettingLastProgram:
			settings.LastProgram = value
		case constants.SettingLastFilter:
			settings.LastFilter = value
		}
	}
	return settings, rows.Err()
}

func (s *SQLiteStore) SaveSettings(settings Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, value := range map[string]string{
		constants.SettingSessionSecret: settings.SessionSecret,
		constants.SettingLastProgram:   settings.LastProgram,
		constants.SettingLastFilter:    settings.LastFilter,
	} {
		if _, err := stmt.Exec(key, value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveSession(sess models.Session) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO sessions (kind, username, token, expires_at) VALUES (?, ?, ?, ?)",
		string(sess.Kind), sess.Username, sess.Token, sess.ExpiresAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetSession(kind models.SessionKind) (models.Session, error) {
	var username, token, expiresAt string
	err := s.db.QueryRow(
		"SELECT username, token, expires_at FROM sessions WHERE kind = ?", string(kind),
	).Scan(&username, &token, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, fmt.Errorf("%s session: %w", kind, apperrors.ErrNotFound)
	}
	if err != nil {
		return models.Session{}, err
	}
	exp, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return models.Session{}, fmt.Errorf("parsing session expiry: %w", err)
	}
	return models.Session{Kind: kind, Username: username, Token: token, ExpiresAt: exp}, nil
}

func (s *SQLiteStore) DeleteSession(kind models.SessionKind) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE kind = ?", string(kind))
	return err
}

// DeleteExpiredSessions removes every session whose expiry is at or before now.
func (s *SQLiteStore) DeleteExpiredSessions(now time.Time) (int, error) {
	rows, err := s.db.Query("SELECT kind, expires_at FROM sessions")
	if err != nil {
		return 0, err
	}
	var expired []string
	for rows.Next() {
		var kind, expiresAt string
		if err := rows.Scan(&kind, &expiresAt); err != nil {
			rows.Close()
			return 0, err
		}
		exp, err := time.Parse(time.RFC3339Nano, expiresAt)
		if err != nil || !now.Before(exp) {
			expired = append(expired, kind)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, kind := range expired {
		if _, err := s.db.Exec("DELETE FROM sessions WHERE kind = ?", kind); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

func (s *SQLiteStore) SavePendingReport(key utils.Key, r models.Report) error {
	date, err := key.Date()
	if err != nil {
		return fmt.Errorf("invalid key %s: %w", key, err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO pending_reports
			(filial_id, programa_id, fecha, estado, hora_real, hora_tt, target, motivo, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.AffiliateID, key.ProgramID, utils.DateKey(date), string(r.Estado),
		r.HoraReal, r.HoraTT, r.Target, r.Motivo, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *SQLiteStore) DeletePendingReport(key utils.Key) error {
	date, err := key.Date()
	if err != nil {
		return fmt.Errorf("invalid key %s: %w", key, err)
	}
	_, err = s.db.Exec(
		"DELETE FROM pending_reports WHERE filial_id = ? AND programa_id = ? AND fecha = ?",
		key.AffiliateID, key.ProgramID, utils.DateKey(date),
	)
	return err
}

func (s *SQLiteStore) GetPendingReports() (map[utils.Key]models.Report, error) {
	rows, err := s.db.Query(`
		SELECT filial_id, programa_id, fecha, estado, hora_real, hora_tt, target, motivo
		FROM pending_reports`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[utils.Key]models.Report)
	for rows.Next() {
		var a, p, fecha, estado string
		var r models.Report
		if err := rows.Scan(&a, &p, &fecha, &estado, &r.HoraReal, &r.HoraTT, &r.Target, &r.Motivo); err != nil {
			return nil, err
		}
		date, err := utils.ParseDate(fecha)
		if err != nil {
			logger.Warn("Skipping pending report with invalid date", "fecha", fecha)
			continue
		}
		r.Estado = models.Estado(estado)
		r.Sync = models.SyncPending
		out[utils.CacheKey(a, p, date)] = r
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePendingNote(n models.Note) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO pending_notes (filial_id, week_start, content, updated_at) VALUES (?, ?, ?, ?)",
		n.AffiliateID, n.WeekStart, n.Content, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *SQLiteStore) DeletePendingNote(key utils.NoteKey) error {
	_, err := s.db.Exec(
		"DELETE FROM pending_notes WHERE filial_id = ? AND week_start = ?",
		key.AffiliateID, key.WeekStart,
	)
	return err
}

func (s *SQLiteStore) GetPendingNotes() ([]models.Note, error) {
	rows, err := s.db.Query("SELECT filial_id, week_start, content FROM pending_notes ORDER BY week_start")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		n := models.Note{Sync: models.SyncPending}
		if err := rows.Scan(&n.AffiliateID, &n.WeekStart, &n.Content); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
