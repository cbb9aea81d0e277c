package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/storage"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// setupState creates a local state holding one unsynced report.
func setupState(t *testing.T) (string, *storage.SQLiteStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	st := storage.NewSQLiteStore(path)
	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	day, _ := utils.ParseDate("2025-03-12")
	key := utils.CacheKey("lima", "noticias", day)
	if err := st.SavePendingReport(key, models.Report{Estado: models.EstadoSi, HoraReal: "05:00"}); err != nil {
		t.Fatalf("SavePendingReport failed: %v", err)
	}
	return path, st
}

// fixedClock returns successive seconds starting at base.
func fixedClock(base time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := base.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

func TestCreate(t *testing.T) {
	path, _ := setupState(t)
	mgr := NewManager(path)

	snap, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if filepath.Dir(snap) != mgr.Dir() {
		t.Errorf("snapshot written outside %s: %s", mgr.Dir(), snap)
	}
	if !strings.HasPrefix(filepath.Base(snap), FilePrefix) {
		t.Errorf("unexpected file name %s", snap)
	}
	if err := Verify(snap); err != nil {
		t.Errorf("snapshot does not verify: %v", err)
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(backups))
	}
	if backups[0].Pending != 1 {
		t.Errorf("expected 1 pending edit in snapshot, got %d", backups[0].Pending)
	}
}

func TestCreate_MissingState(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(); err == nil {
		t.Fatal("expected error for missing local state")
	}
}

func TestCreate_SameSecond(t *testing.T) {
	path, _ := setupState(t)
	base := time.Date(2025, 3, 12, 9, 30, 0, 0, time.Local)
	mgr := NewManager(path, WithClock(func() time.Time { return base }))

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		snap, err := mgr.Create()
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if seen[snap] {
			t.Fatalf("duplicate snapshot path %s", snap)
		}
		seen[snap] = true
	}
	backups, _ := mgr.List()
	if len(backups) != 3 {
		t.Errorf("expected 3 backups, got %d", len(backups))
	}
}

func TestRotation(t *testing.T) {
	path, _ := setupState(t)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.Local)
	mgr := NewManager(path, WithClock(fixedClock(base)))

	var last string
	for i := 0; i < MaxBackups+3; i++ {
		snap, err := mgr.Create()
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		last = snap
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("expected %d backups, got %d", MaxBackups, len(backups))
	}
	if backups[0].Path != last {
		t.Errorf("expected newest first, got %s", backups[0].Path)
	}
	oldest := base.Add(3 * time.Second)
	if !backups[len(backups)-1].Taken.Equal(oldest) {
		t.Errorf("expected oldest kept at %v, got %v", oldest, backups[len(backups)-1].Taken)
	}
}

func TestList_IgnoresForeignFiles(t *testing.T) {
	path, _ := setupState(t)
	mgr := NewManager(path)
	if err := os.MkdirAll(mgr.Dir(), 0700); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"notes.txt", FilePrefix + "garbage" + FileSuffix, "other-20250101-000000.db"} {
		if err := os.WriteFile(filepath.Join(mgr.Dir(), name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %+v", backups)
	}
}

func TestRestore(t *testing.T) {
	path, st := setupState(t)
	mgr := NewManager(path, WithClock(fixedClock(time.Date(2025, 3, 12, 9, 0, 0, 0, time.Local))))

	snap, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Lose the pending edit, then restore it.
	day, _ := utils.ParseDate("2025-03-12")
	if err := st.DeletePendingReport(utils.CacheKey("lima", "noticias", day)); err != nil {
		t.Fatalf("DeletePendingReport failed: %v", err)
	}
	st.Close()

	previous, err := mgr.Restore(snap)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if previous == "" || countPendingIn(previous) != 0 {
		t.Errorf("expected a pre-restore snapshot without pending edits, got %q", previous)
	}

	reopened := storage.NewSQLiteStore(path)
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load after restore failed: %v", err)
	}
	defer reopened.Close()
	pending, err := reopened.GetPendingReports()
	if err != nil {
		t.Fatalf("GetPendingReports failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected restored pending edit, got %d", len(pending))
	}
}

func TestRestore_Invalid(t *testing.T) {
	path, _ := setupState(t)
	mgr := NewManager(path)

	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name:  "missing file",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.db") },
		},
		{
			name: "not a database",
			setup: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "corrupt.db")
				if err := os.WriteFile(p, []byte("not sqlite"), 0600); err != nil {
					t.Fatal(err)
				}
				return p
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mgr.Restore(tt.setup(t)); err == nil {
				t.Error("expected restore to fail")
			}
		})
	}

	backups, _ := mgr.List()
	if len(backups) != 0 {
		t.Errorf("failed restores must not snapshot, got %d backups", len(backups))
	}
}
