package storage

import (
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInitGeneratesSessionSecret(t *testing.T) {
	store := setupTestStore(t)

	settings, err := store.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if len(settings.SessionSecret) != 64 {
		t.Errorf("expected 64 hex chars of secret, got %q", settings.SessionSecret)
	}

	// Re-running Init keeps the secret so existing sessions stay valid.
	if err := store.Init(); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	again, _ := store.GetSettings()
	if again.SessionSecret != settings.SessionSecret {
		t.Error("session secret changed on re-init")
	}
}

func TestLoadRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "missing.db"))
	if err := store.Load(); err == nil {
		t.Fatal("expected error loading uninitialized storage")
	}
}

func TestLoadExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first := NewSQLiteStore(path)
	if err := first.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := first.SaveSettings(Settings{SessionSecret: "s", LastProgram: "p1"}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	first.Close()

	second := NewSQLiteStore(path)
	if err := second.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer second.Close()
	settings, err := second.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.LastProgram != "p1" {
		t.Errorf("expected last program p1, got %q", settings.LastProgram)
	}
}

func TestSessions(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	op := models.Session{Kind: models.SessionOperador, Username: "operador", Token: "t1", ExpiresAt: now.Add(time.Hour)}
	adm := models.Session{Kind: models.SessionAdmin, Username: "admin", Token: "t2", ExpiresAt: now.Add(-time.Minute)}
	for _, s := range []models.Session{op, adm} {
		if err := store.SaveSession(s); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	got, err := store.GetSession(models.SessionOperador)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Token != "t1" || !got.ExpiresAt.Equal(op.ExpiresAt) {
		t.Errorf("unexpected session: %+v", got)
	}

	n, err := store.DeleteExpiredSessions(now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired session, got %d", n)
	}
	if _, err := store.GetSession(models.SessionAdmin); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for swept admin session, got %v", err)
	}

	if err := store.DeleteSession(models.SessionOperador); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.GetSession(models.SessionOperador); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after logout, got %v", err)
	}
}

func TestPendingReports(t *testing.T) {
	store := setupTestStore(t)
	date := time.Date(2025, 3, 10, 0, 5, 0, 0, utils.Lima)
	key := utils.CacheKey("lima", "noticias", date)
	report := models.Report{Estado: models.EstadoTarde, HoraReal: "06:10", Target: "Tde", Motivo: "corte"}

	if err := store.SavePendingReport(key, report); err != nil {
		t.Fatalf("SavePendingReport failed: %v", err)
	}
	// Overwrite with a newer local edit.
	report.Motivo = "corte de luz"
	if err := store.SavePendingReport(key, report); err != nil {
		t.Fatalf("SavePendingReport failed: %v", err)
	}

	pending, err := store.GetPendingReports()
	if err != nil {
		t.Fatalf("GetPendingReports failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending report, got %d", len(pending))
	}
	got, ok := pending[key]
	if !ok {
		t.Fatalf("pending report not found under key %s", key)
	}
	if !got.Equal(report) || got.Sync != models.SyncPending {
		t.Errorf("unexpected pending report: %+v", got)
	}

	if err := store.DeletePendingReport(key); err != nil {
		t.Fatalf("DeletePendingReport failed: %v", err)
	}
	pending, _ = store.GetPendingReports()
	if len(pending) != 0 {
		t.Errorf("expected no pending reports, got %d", len(pending))
	}
}

func TestPendingNotes(t *testing.T) {
	store := setupTestStore(t)
	note := models.Note{AffiliateID: "lima", WeekStart: "2025-03-10", Content: "revisar enlace"}

	if err := store.SavePendingNote(note); err != nil {
		t.Fatalf("SavePendingNote failed: %v", err)
	}
	notes, err := store.GetPendingNotes()
	if err != nil {
		t.Fatalf("GetPendingNotes failed: %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "revisar enlace" || notes[0].Sync != models.SyncPending {
		t.Fatalf("unexpected pending notes: %+v", notes)
	}

	if err := store.DeletePendingNote(utils.NoteKey{AffiliateID: "lima", WeekStart: "2025-03-10"}); err != nil {
		t.Fatalf("DeletePendingNote failed: %v", err)
	}
	notes, _ = store.GetPendingNotes()
	if len(notes) != 0 {
		t.Errorf("expected no pending notes, got %d", len(notes))
	}
}
