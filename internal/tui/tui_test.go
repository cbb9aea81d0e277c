package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/filialwatch/internal/cli/clitest"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

type testEnv struct {
	*clitest.Env
	deps   Deps
	opened []string
}

func setupTest(t *testing.T, login bool) *testEnv {
	t.Helper()
	env := clitest.New(t)
	env.Seed(t)
	if login {
		env.Login(t, models.SessionOperador)
	}

	week := utils.WeekOf(utils.LocalNow())
	st, err := env.Ctx.NewReportStore(week.Inicio, week.Fin)
	if err != nil {
		t.Fatalf("NewReportStore failed: %v", err)
	}
	if ok := <-st.Initialize(context.Background(), nil, nil); !ok {
		t.Fatalf("initial refresh failed: %s", st.Status().LastError)
	}
	sessions, err := env.Ctx.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}

	te := &testEnv{Env: env}
	te.deps = Deps{
		Store:     st,
		Sessions:  sessions,
		Local:     env.Store,
		Conn:      env.Ctx.Connection(),
		ExportDir: t.TempDir(),
		Open: func(path string) error {
			te.opened = append(te.opened, path)
			return nil
		},
	}
	return te
}

func (te *testEnv) model(t *testing.T) Model {
	t.Helper()
	tm, _ := New(te.deps).Update(refreshedMsg{ok: true})
	return tm.(Model)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var tm tea.Model
		tm, cmd = m.Update(keyMsg(k))
		m = tm.(Model)
	}
	return m, cmd
}

// run executes cmd and feeds every resulting message back into m.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			m = run(t, m, c)
		}
		return m
	}
	if msg == nil {
		return m
	}
	tm, _ := m.Update(msg)
	return tm.(Model)
}

// complete submits the open form as if the user confirmed it.
func complete(t *testing.T, m Model) Model {
	t.Helper()
	m.form.State = huh.StateCompleted
	tm, cmd := m.Update(struct{}{})
	return run(t, tm.(Model), cmd)
}

func TestView(t *testing.T) {
	te := setupTest(t, true)
	m := te.model(t)

	view := m.View()
	for _, want := range []string{"NOTICIAS", "LIMA", "CUSCO", "Efectividad 0%", "operador: operador", "admin: -"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestConnectionBadge(t *testing.T) {
	te := setupTest(t, false)
	m := te.model(t)

	tm, _ := m.Update(connMsg{Known: true, Connected: false})
	if !strings.Contains(tm.(Model).View(), "sin conexión") {
		t.Error("expected offline badge")
	}
	tm, _ = m.Update(connMsg{Known: true, Connected: true})
	if !strings.Contains(tm.(Model).View(), "en línea") {
		t.Error("expected online badge")
	}
}

func TestGridNavigation(t *testing.T) {
	te := setupTest(t, false)
	m := te.model(t)

	m, _ = press(t, m, "down", "right", "right")
	a, day, ok := m.grid.Selected()
	if !ok {
		t.Fatal("expected a selected cell")
	}
	if a.Nombre != "LIMA" {
		t.Errorf("expected LIMA, got %s", a.Nombre)
	}
	if got, want := utils.DateKey(day), utils.DateKey(m.week.Inicio.AddDate(0, 0, 2)); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	// Clamped at the last row.
	m, _ = press(t, m, "down", "down")
	if m.grid.Row != 1 {
		t.Errorf("expected row 1, got %d", m.grid.Row)
	}
}

func TestProgramTabs(t *testing.T) {
	te := setupTest(t, false)
	if _, err := te.Client.CreateProgram(context.Background(), models.Program{ID: "deportes", Nombre: "DEPORTES", Horario: "06:00", DiasSemana: models.DiasLunes, IsActivo: true}); err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}
	te.deps.Store.Refresh(context.Background())
	m := te.model(t)

	if m.programID != "noticias" {
		t.Fatalf("expected noticias first, got %s", m.programID)
	}
	m, _ = press(t, m, "tab")
	if m.programID != "deportes" {
		t.Errorf("expected deportes after tab, got %s", m.programID)
	}
	settings, err := te.Store.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.LastProgram != "deportes" {
		t.Errorf("expected remembered program deportes, got %q", settings.LastProgram)
	}

	// A new model starts on the remembered program.
	if got := te.model(t).programID; got != "deportes" {
		t.Errorf("expected restored program deportes, got %s", got)
	}
}

func TestWeekNavigation(t *testing.T) {
	te := setupTest(t, false)
	m := te.model(t)
	start := m.week.Inicio

	m, cmd := press(t, m, "]")
	if cmd == nil || !m.loading {
		t.Error("expected a refresh after changing week")
	}
	if got := utils.DateKey(m.week.Inicio); got != utils.DateKey(start.AddDate(0, 0, 7)) {
		t.Errorf("unexpected next week %s", got)
	}
	from, _ := te.deps.Store.Range()
	if utils.DateKey(from) != utils.DateKey(m.week.Inicio) {
		t.Errorf("store range not moved: %s", utils.DateKey(from))
	}

	m, _ = press(t, m, "[", "[")
	if got := utils.DateKey(m.week.Inicio); got != utils.DateKey(start.AddDate(0, 0, -7)) {
		t.Errorf("unexpected previous week %s", got)
	}
	m, _ = press(t, m, "t")
	if got := utils.DateKey(m.week.Inicio); got != utils.DateKey(start) {
		t.Errorf("expected current week, got %s", got)
	}
}

func TestMarkRequiresSession(t *testing.T) {
	te := setupTest(t, false)
	m := te.model(t)

	m, _ = press(t, m, "enter")
	if m.state != StateLogin {
		t.Fatalf("expected login form, got state %d", m.state)
	}
	if !strings.Contains(m.message, "Inicia sesión") {
		t.Errorf("unexpected message %q", m.message)
	}

	m.loginForm.Username = "operador"
	m.loginForm.Password = "filiales2025"
	m = complete(t, m)
	if m.state != StateGrid {
		t.Fatalf("expected grid after login, got state %d", m.state)
	}
	if m.operator == nil || !te.deps.Sessions.CanWrite() {
		t.Error("expected an operator session")
	}
}

func TestLoginForm_WrongPassword(t *testing.T) {
	te := setupTest(t, false)
	m := te.model(t)

	m, _ = press(t, m, "L")
	m.loginForm.Username = "operador"
	m.loginForm.Password = "nope"
	m = complete(t, m)
	if m.state != StateLogin {
		t.Errorf("expected form to stay open, got state %d", m.state)
	}
	if m.message != "Credenciales inválidas" {
		t.Errorf("unexpected message %q", m.message)
	}
	if m.loginForm.Username != "operador" {
		t.Error("expected username to be kept")
	}
}

func TestLogout(t *testing.T) {
	te := setupTest(t, true)
	te.Login(t, models.SessionAdmin)
	m := te.model(t)

	m, _ = press(t, m, "O")
	if m.admin != nil || m.operator == nil {
		t.Error("expected admin to be closed first")
	}
	m, _ = press(t, m, "O")
	if m.operator != nil {
		t.Error("expected operator session to be closed")
	}
}

func TestMarkForm(t *testing.T) {
	tests := []struct {
		name string
		fill func(*MarkFormModel)
		want models.Report
	}{
		{
			name: "on time",
			fill: func(f *MarkFormModel) { f.Estado = models.EstadoSi },
			want: models.Report{Estado: models.EstadoSi, HoraReal: "05:00"},
		},
		{
			name: "late",
			fill: func(f *MarkFormModel) {
				f.Estado = models.EstadoTarde
				f.HoraReal = "05:15"
				f.Target = "Tde"
				f.Motivo = " lluvia "
			},
			want: models.Report{Estado: models.EstadoTarde, HoraReal: "05:15", Target: "Tde", Motivo: "lluvia"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := setupTest(t, true)
			m := te.model(t)

			m, _ = press(t, m, "enter")
			if m.state != StateMark {
				t.Fatalf("expected mark form, got state %d", m.state)
			}
			if m.markForm.Estado != models.EstadoSi || m.markForm.HoraReal != "05:00" {
				t.Errorf("unexpected defaults %+v", m.markForm)
			}
			tt.fill(m.markForm)
			m = complete(t, m)

			if m.state != StateGrid {
				t.Fatalf("expected grid, got state %d", m.state)
			}
			if m.message != "✓ Reporte guardado" {
				t.Errorf("unexpected message %q", m.message)
			}
			a, day, _ := m.grid.Selected()
			got := m.report(a.ID, "noticias", day)
			if !got.Equal(tt.want) || got.Sync != models.SyncSynced {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			remote, err := te.Client.Reports(context.Background(), day, day)
			if err != nil {
				t.Fatalf("Reports failed: %v", err)
			}
			if r := remote[utils.CacheKey(a.ID, "noticias", day)]; !r.Equal(tt.want) {
				t.Errorf("backend has %+v", r)
			}
		})
	}
}

func TestMarkForm_Invalid(t *testing.T) {
	te := setupTest(t, true)
	m := te.model(t)

	m, _ = press(t, m, "enter")
	m.markForm.Estado = models.EstadoTarde
	m.markForm.Target = ""
	m = complete(t, m)

	if m.state != StateMark {
		t.Errorf("expected form to stay open, got state %d", m.state)
	}
	if !strings.Contains(m.message, "requires a target") {
		t.Errorf("unexpected message %q", m.message)
	}
	if n := te.deps.Store.PendingCount(); n != 0 {
		t.Errorf("expected no write, got %d pending", n)
	}
}

func TestMarkForm_Esc(t *testing.T) {
	te := setupTest(t, true)
	m := te.model(t)

	m, _ = press(t, m, "enter", "esc")
	if m.state != StateGrid {
		t.Errorf("expected grid after esc, got state %d", m.state)
	}
}

func TestMarkForm_OfflineKeepsPending(t *testing.T) {
	te := setupTest(t, true)
	m := te.model(t)
	te.Server.Close()

	m, _ = press(t, m, "enter")
	m = complete(t, m)
	if !strings.Contains(m.message, "pendiente de sincronizar") {
		t.Errorf("unexpected message %q", m.message)
	}
	if n := te.deps.Store.PendingCount(); n != 1 {
		t.Errorf("expected 1 pending, got %d", n)
	}
	if !strings.Contains(m.View(), "1 sin sincronizar") {
		t.Error("expected pending counter in view")
	}
}

func TestNoteForm(t *testing.T) {
	te := setupTest(t, true)
	m := te.model(t)

	m, _ = press(t, m, "n")
	if m.state != StateNote {
		t.Fatalf("expected note form, got state %d", m.state)
	}
	m.noteForm.Content = "sin señal el lunes"
	m = complete(t, m)

	if !strings.HasPrefix(m.message, "✓ Nota guardada") {
		t.Errorf("unexpected message %q", m.message)
	}
	weekStart := utils.DateKey(m.week.Inicio)
	if got := te.deps.Store.GetNoteFor("cusco", weekStart); got != "sin señal el lunes" {
		t.Errorf("unexpected note %q", got)
	}
}

func TestFilter(t *testing.T) {
	te := setupTest(t, false)
	m := te.model(t)

	m, _ = press(t, m, "/")
	if m.state != StateFilter {
		t.Fatalf("expected filter state, got %d", m.state)
	}
	m, _ = press(t, m, "l", "i", "enter")
	if len(m.grid.Affiliates) != 1 || m.grid.Affiliates[0].Nombre != "LIMA" {
		t.Errorf("unexpected filtered affiliates %+v", m.grid.Affiliates)
	}
	settings, _ := te.Store.GetSettings()
	if settings.LastFilter != "li" {
		t.Errorf("expected remembered filter, got %q", settings.LastFilter)
	}

	m, _ = press(t, m, "/", "esc")
	if m.state != StateGrid || m.filter != "li" {
		t.Error("esc should keep the previous filter")
	}
}

func TestExport(t *testing.T) {
	te := setupTest(t, false)
	m := te.model(t)

	m, cmd := press(t, m, "e")
	m = run(t, m, cmd)
	if !strings.HasPrefix(m.message, "✓ Exportado: ") {
		t.Fatalf("unexpected message %q", m.message)
	}
	path := strings.TrimPrefix(m.message, "✓ Exportado: ")
	if filepath.Ext(path) != ".xlsx" {
		t.Errorf("expected xlsx, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export missing: %v", err)
	}

	m, cmd = press(t, m, "p")
	m = run(t, m, cmd)
	if len(te.opened) != 1 || filepath.Ext(te.opened[0]) != ".html" {
		t.Errorf("expected printable document to be opened, got %v", te.opened)
	}
}

func TestSync(t *testing.T) {
	te := setupTest(t, true)
	m := te.model(t)

	m, cmd := press(t, m, "s")
	m = run(t, m, cmd)
	if m.message != "✓ Sincronizados 0 cambios" {
		t.Errorf("unexpected message %q", m.message)
	}
}
