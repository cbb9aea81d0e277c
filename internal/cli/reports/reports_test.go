package reports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/filialwatch/internal/cli/clitest"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Wednesday of the week 10/03/2025 - 14/03/2025.
const testDate = "2025-03-12"

func setupTest(t *testing.T) *clitest.Env {
	t.Helper()
	env := clitest.New(t)
	env.Seed(t)
	env.Login(t, models.SessionOperador)
	return env
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) failed: %v", s, err)
	}
	return d
}

func TestMarkCmd(t *testing.T) {
	tests := []struct {
		name string
		cmd  MarkCmd
		want models.Report
	}{
		{
			name: "on time drops reason fields",
			cmd:  MarkCmd{Affiliate: "LIMA", Estado: "si", HoraReal: "05:00", Target: "Tde", Motivo: "x"},
			want: models.Report{Estado: models.EstadoSi, HoraReal: "05:00"},
		},
		{
			name: "late with fuzzy reason",
			cmd:  MarkCmd{Affiliate: "lima", Estado: "tarde", HoraReal: "05:20", HoraTT: "05:18", Target: "tarde"},
			want: models.Report{Estado: models.EstadoTarde, HoraReal: "05:20", HoraTT: "05:18", Target: "Tde"},
		},
		{
			name: "missed with enum reason",
			cmd:  MarkCmd{Affiliate: "cusco", Estado: "NO", HoraReal: "05:00", Target: "Problema_tecnico", Motivo: "sin enlace"},
			want: models.Report{Estado: models.EstadoNo, Target: "P. Tec", Motivo: "sin enlace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTest(t)
			cmd := tt.cmd
			cmd.Date = testDate
			if err := cmd.Run(env.Ctx); err != nil {
				t.Fatalf("mark failed: %v", err)
			}

			day := mustDate(t, testDate)
			reports, err := env.Client.Reports(context.Background(), day, day)
			if err != nil {
				t.Fatalf("Reports failed: %v", err)
			}
			aff := strings.ToLower(tt.cmd.Affiliate)
			got, ok := reports[utils.CacheKey(aff, "noticias", day)]
			if !ok {
				t.Fatalf("backend has no report for %s, got %v", aff, reports)
			}
			if !got.Equal(tt.want) {
				t.Errorf("backend report = %+v, want %+v", got, tt.want)
			}
			if pending, _ := env.Store.GetPendingReports(); len(pending) != 0 {
				t.Errorf("confirmed write should leave no pending entry, got %v", pending)
			}
		})
	}
}

func TestMarkCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     MarkCmd
		wantErr error
	}{
		{"late without time", MarkCmd{Affiliate: "LIMA", Estado: "tarde", Target: "Tde"}, apperrors.ErrValidation},
		{"missed without reason", MarkCmd{Affiliate: "LIMA", Estado: "no"}, apperrors.ErrValidation},
		{"bad clock", MarkCmd{Affiliate: "LIMA", Estado: "si", HoraReal: "5am"}, apperrors.ErrValidation},
		{"unknown affiliate", MarkCmd{Affiliate: "TACNA", Estado: "si"}, apperrors.ErrNotFound},
		{"unknown program", MarkCmd{Affiliate: "LIMA", Estado: "si", Program: "deportes"}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTest(t)
			cmd := tt.cmd
			cmd.Date = testDate
			err := cmd.Run(env.Ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if pending, _ := env.Store.GetPendingReports(); len(pending) != 0 {
				t.Errorf("rejected write must not be stored, got %v", pending)
			}
		})
	}
}

func TestMarkCmd_RequiresSession(t *testing.T) {
	env := clitest.New(t)
	env.Seed(t)
	err := (&MarkCmd{Affiliate: "LIMA", Estado: "si", Date: testDate}).Run(env.Ctx)
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestMarkCmd_NotAiring(t *testing.T) {
	env := setupTest(t)
	if _, err := env.Client.CreateProgram(context.Background(), models.Program{ID: "magazine", Nombre: "MAGAZINE", Horario: "10:00", DiasSemana: models.DiasLunes, IsActivo: true}); err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}
	err := (&MarkCmd{Affiliate: "LIMA", Estado: "si", Program: "magazine", Date: testDate}).Run(env.Ctx)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMarkCmd_Offline(t *testing.T) {
	env := setupTest(t)
	env.Server.Close()
	err := (&MarkCmd{Affiliate: "LIMA", Estado: "si", Date: testDate}).Run(env.Ctx)
	if !errors.Is(err, apperrors.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}

func TestWeekCmd(t *testing.T) {
	env := setupTest(t)
	if err := (&MarkCmd{Affiliate: "LIMA", Estado: "si", HoraReal: "05:00", Date: testDate}).Run(env.Ctx); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := (&MarkCmd{Affiliate: "CUSCO", Estado: "tarde", HoraReal: "05:20", Target: "Tde", Date: "2025-03-10"}).Run(env.Ctx); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	env.Out.Reset()

	if err := (&WeekCmd{Date: testDate, Program: "NOTICIAS"}).Run(env.Ctx); err != nil {
		t.Fatalf("week failed: %v", err)
	}
	out := env.Out.String()
	for _, want := range []string{
		"NOTICIAS (05:00, DIARIO) · 10/03/2025 - 14/03/2025",
		"Lun 10/03",
		"Vie 14/03",
		"SI 05:00",
		"TARDE 05:20 (Tde)",
		"Efectividad 10%",
		"de 10",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("week output missing %q:\n%s", want, out)
		}
	}

	settings, err := env.Store.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.LastProgram != "noticias" {
		t.Errorf("LastProgram = %q, want noticias", settings.LastProgram)
	}
}

func TestWeekCmd_Filter(t *testing.T) {
	env := setupTest(t)
	if err := (&WeekCmd{Date: testDate, Filter: "cus"}).Run(env.Ctx); err != nil {
		t.Fatalf("week failed: %v", err)
	}
	out := env.Out.String()
	if !strings.Contains(out, "CUSCO") || strings.Contains(out, "LIMA") {
		t.Errorf("filter should keep only CUSCO:\n%s", out)
	}
}

func TestWeekCmd_OfflineShowsPending(t *testing.T) {
	env := setupTest(t)
	env.Server.Close()
	err := (&WeekCmd{Date: testDate}).Run(env.Ctx)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("without a catalog the program cannot resolve, got %v", err)
	}
	if !strings.Contains(env.Out.String(), "Backend unreachable") {
		t.Errorf("expected an offline warning, got %q", env.Out.String())
	}
}

func TestDayCmd(t *testing.T) {
	env := setupTest(t)
	if err := (&MarkCmd{Affiliate: "CUSCO", Estado: "no", Target: "P. Tec", Motivo: "sin enlace", Date: testDate}).Run(env.Ctx); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	env.Out.Reset()
	if err := (&DayCmd{Date: testDate}).Run(env.Ctx); err != nil {
		t.Fatalf("day failed: %v", err)
	}
	out := env.Out.String()
	for _, want := range []string{"Miércoles 12/03/2025", "No transmitió", "Problema técnico", "sin enlace", "Pendiente"} {
		if !strings.Contains(out, want) {
			t.Errorf("day output missing %q:\n%s", want, out)
		}
	}
}

func TestStatsCmd(t *testing.T) {
	env := setupTest(t)
	for _, cmd := range []MarkCmd{
		{Affiliate: "LIMA", Estado: "si", Date: testDate},
		{Affiliate: "CUSCO", Estado: "no", Target: "Fta", Date: testDate},
	} {
		cmd := cmd
		if err := cmd.Run(env.Ctx); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}

	tests := []struct {
		name string
		cmd  StatsCmd
		want []string
	}{
		{"week", StatsCmd{Date: testDate}, []string{"Total:           10", "Transmitidas:    1", "Pendientes:      8", "Efectividad:     10%"}},
		{"day", StatsCmd{Date: testDate, Day: true}, []string{"Total:           2", "No transmitidas: 1", "Efectividad:     50%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.Out.Reset()
			cmd := tt.cmd
			if err := cmd.Run(env.Ctx); err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(env.Out.String(), want) {
					t.Errorf("stats output missing %q:\n%s", want, env.Out.String())
				}
			}
		})
	}
}

func TestNoteCmd(t *testing.T) {
	env := setupTest(t)

	if err := (&NoteCmd{Affiliate: "LIMA", Week: testDate}).Run(env.Ctx); err != nil {
		t.Fatalf("note read failed: %v", err)
	}
	if !strings.Contains(env.Out.String(), "No note for LIMA") {
		t.Errorf("unexpected output: %q", env.Out.String())
	}

	if err := (&NoteCmd{Affiliate: "LIMA", Week: testDate, Content: "Cambio de frecuencia"}).Run(env.Ctx); err != nil {
		t.Fatalf("note write failed: %v", err)
	}
	notes, err := env.Client.Notes(context.Background(), "2025-03-10")
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "Cambio de frecuencia" || notes[0].WeekStart != "2025-03-10" {
		t.Fatalf("backend notes = %+v", notes)
	}

	env.Out.Reset()
	if err := (&NoteCmd{Affiliate: "lima", Week: "14/03/2025"}).Run(env.Ctx); err != nil {
		t.Fatalf("note read failed: %v", err)
	}
	if strings.TrimSpace(env.Out.String()) != "Cambio de frecuencia" {
		t.Errorf("note read = %q", env.Out.String())
	}
}

func TestSyncAndPendingCmds(t *testing.T) {
	env := setupTest(t)
	day := mustDate(t, testDate)
	key := utils.CacheKey("lima", "noticias", day)
	if err := env.Store.SavePendingReport(key, models.Report{Estado: models.EstadoTarde, HoraReal: "05:10", Target: "Enf"}); err != nil {
		t.Fatalf("SavePendingReport failed: %v", err)
	}

	if err := (&PendingCmd{}).Run(env.Ctx); err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if !strings.Contains(env.Out.String(), "12/03/2025  filial lima  programa noticias  tarde 05:10 (Enf)") {
		t.Errorf("pending output:\n%s", env.Out.String())
	}

	env.Out.Reset()
	if err := (&SyncCmd{}).Run(env.Ctx); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(env.Out.String(), "Synced 1 of 1 edit(s)") {
		t.Errorf("sync output: %q", env.Out.String())
	}

	reports, err := env.Client.Reports(context.Background(), day, day)
	if err != nil {
		t.Fatalf("Reports failed: %v", err)
	}
	if got := reports[key]; got.Estado != models.EstadoTarde || got.Target != "Enf" {
		t.Errorf("backend report = %+v", got)
	}

	env.Out.Reset()
	if err := (&SyncCmd{}).Run(env.Ctx); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if !strings.Contains(env.Out.String(), "Nothing to sync") {
		t.Errorf("second sync output: %q", env.Out.String())
	}
}

func TestExportCmd(t *testing.T) {
	env := setupTest(t)
	if err := (&MarkCmd{Affiliate: "LIMA", Estado: "si", Date: testDate}).Run(env.Ctx); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	orig := openFunc
	defer func() { openFunc = orig }()
	var opened []string
	openFunc = func(path string) error {
		opened = append(opened, path)
		return nil
	}

	tests := []struct {
		format string
		ext    string
		open   bool
	}{
		{"xlsx", ".xlsx", false},
		{"csv", ".csv", false},
		{"html", ".html", false},
		{"pdf", ".html", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			opened = nil
			cmd := &ExportCmd{Format: tt.format, Date: testDate, Output: dir}
			if err := cmd.Run(env.Ctx); err != nil {
				t.Fatalf("export failed: %v", err)
			}
			want := filepath.Join(dir, "reporte_NOTICIAS_2025-03-10_2025-03-14"+tt.ext)
			info, err := os.Stat(want)
			if err != nil {
				t.Fatalf("expected %s: %v", want, err)
			}
			if info.Size() == 0 {
				t.Errorf("%s is empty", want)
			}
			if got := len(opened) == 1 && opened[0] == want; got != tt.open {
				t.Errorf("opened = %v, want open %v", opened, tt.open)
			}
		})
	}
}

func TestExportCmd_DayToFile(t *testing.T) {
	env := setupTest(t)
	out := filepath.Join(t.TempDir(), "hoy.csv")
	if err := (&ExportCmd{Format: "csv", Date: testDate, Day: true, Output: out}).Run(env.Ctx); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "Filial,Estado,Hora real,Hora TT,Target,Motivo") {
		t.Errorf("day export should use the detail layout:\n%s", data)
	}
}

func TestValidateCmd(t *testing.T) {
	env := setupTest(t)

	if err := (&ValidateCmd{Strict: true}).Run(env.Ctx); err != nil {
		t.Fatalf("validate failed on a clean catalog: %v", err)
	}
	if !strings.Contains(env.Out.String(), "No conflicts detected.") {
		t.Errorf("unexpected output:\n%s", env.Out.String())
	}

	if _, err := env.Client.CreateProgram(context.Background(), models.Program{ID: "deportes", Nombre: "DEPORTES", Horario: "05:00", DiasSemana: models.DiasLunes, IsActivo: true}); err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}
	key := utils.CacheKey("lima", "deportes", mustDate(t, testDate))
	if err := env.Store.SavePendingReport(key, models.Report{Estado: models.EstadoSi, HoraReal: "05:00"}); err != nil {
		t.Fatalf("SavePendingReport failed: %v", err)
	}

	env.Out.Reset()
	if err := (&ValidateCmd{}).Run(env.Ctx); err != nil {
		t.Fatalf("validate without --strict should not fail: %v", err)
	}
	out := env.Out.String()
	for _, want := range []string{
		"both air at 05:00 on lunes",
		"DEPORTES does not air on Miércoles",
		"1 reports, 0 notes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if err := (&ValidateCmd{Strict: true}).Run(env.Ctx); err == nil {
		t.Error("expected --strict to fail with conflicts")
	}
}
