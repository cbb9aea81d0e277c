package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/export"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/monitor"
	"github.com/julianstephens/filialwatch/internal/utils"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.now = time.Time(msg).In(utils.Lima)
		m.grid.Today = utils.StartOfDay(m.now)
		m.refreshSessions()
		return m, tick()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connMsg:
		m.conn = monitor.Snapshot(msg)
		return m, nil

	case refreshedMsg:
		m.loading = false
		m.syncGrid()
		if !msg.ok {
			if last := m.deps.Store.Status().LastError; last != "" {
				m.setMessage("Sin conexión con el servidor: "+last, true)
			}
		}
		return m, nil

	case reportMsg:
		switch {
		case msg.err == nil:
			m.setMessage("✓ Reporte guardado", false)
		case apperrors.Is(msg.err, apperrors.ErrWriteFailed):
			m.setMessage("⚠ Guardado localmente, pendiente de sincronizar", true)
		default:
			m.setMessage(apperrors.Format(msg.err), true)
		}
		return m, nil

	case noteMsg:
		switch {
		case msg.err == nil:
			m.setMessage("✓ Nota guardada para "+msg.affiliate, false)
		case apperrors.Is(msg.err, apperrors.ErrWriteFailed):
			m.setMessage("⚠ Nota guardada localmente, pendiente de sincronizar", true)
		default:
			m.setMessage(apperrors.Format(msg.err), true)
		}
		return m, nil

	case syncMsg:
		if msg.err != nil {
			m.setMessage(fmt.Sprintf("Sincronizados %d; error: %v", msg.sent, msg.err), true)
		} else {
			m.setMessage(fmt.Sprintf("✓ Sincronizados %d cambios", msg.sent), false)
		}
		return m, nil

	case exportMsg:
		switch {
		case msg.err != nil:
			m.setMessage("Error al exportar: "+msg.err.Error(), true)
		case msg.printed:
			m.setMessage("✓ Abierto para imprimir: "+msg.path, false)
		default:
			m.setMessage("✓ Exportado: "+msg.path, false)
		}
		return m, nil
	}

	switch m.state {
	case StateMark:
		return m.updateMarkForm(msg)
	case StateNote:
		return m.updateNoteForm(msg)
	case StateLogin:
		return m.updateLoginForm(msg)
	case StateFilter:
		return m.updateFilter(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleGridKeys(msg)
	}
	return m, nil
}

func (m Model) handleGridKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Tab):
		m.cycleProgram(1)
	case key.Matches(msg, m.keys.ShiftTab):
		m.cycleProgram(-1)
	case key.Matches(msg, m.keys.Up):
		m.grid.Move(-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.grid.Move(1, 0)
	case key.Matches(msg, m.keys.Left):
		m.grid.Move(0, -1)
	case key.Matches(msg, m.keys.Right):
		m.grid.Move(0, 1)
	case key.Matches(msg, m.keys.PrevWeek):
		return m, m.setWeek(utils.WeekOf(m.week.Inicio.AddDate(0, 0, -7)))
	case key.Matches(msg, m.keys.NextWeek):
		return m, m.setWeek(utils.WeekOf(m.week.Inicio.AddDate(0, 0, 7)))
	case key.Matches(msg, m.keys.ThisWeek):
		cmd := m.setWeek(utils.WeekOf(m.now))
		m.grid.FocusDay(m.now)
		return m, cmd
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, refreshCmd(m.deps.Store))
	case key.Matches(msg, m.keys.Mark):
		return m.openMarkForm()
	case key.Matches(msg, m.keys.Note):
		return m.openNoteForm()
	case key.Matches(msg, m.keys.Filter):
		m.state = StateFilter
		m.filterInput.SetValue(m.filter)
		return m, m.filterInput.Focus()
	case key.Matches(msg, m.keys.Sync):
		return m, m.syncCmd()
	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd(false)
	case key.Matches(msg, m.keys.Print):
		return m, m.exportCmd(true)
	case key.Matches(msg, m.keys.Login):
		return m.openLoginForm(models.SessionOperador)
	case key.Matches(msg, m.keys.Logout):
		m.logout()
	}
	return m, nil
}

func (m Model) openMarkForm() (tea.Model, tea.Cmd) {
	if !m.canWrite() {
		m.setMessage("Inicia sesión como operador para registrar reportes", true)
		return m.openLoginForm(models.SessionOperador)
	}
	a, day, ok := m.grid.Selected()
	if !ok {
		return m, nil
	}
	if !m.grid.Airs(day) {
		m.setMessage(fmt.Sprintf("%s no se emite el %s", m.grid.Program.Nombre, utils.WeekdayName(day)), true)
		return m, nil
	}
	current := m.report(a.ID, m.grid.Program.ID, day)
	m.markForm = &MarkFormModel{
		AffiliateID: a.ID,
		Affiliate:   a.Nombre,
		ProgramID:   m.grid.Program.ID,
		Date:        day,
		Estado:      current.Estado,
		HoraReal:    current.HoraReal,
		HoraTT:      current.HoraTT,
		Target:      current.Target,
		Motivo:      current.Motivo,
	}
	if m.markForm.Estado == models.EstadoPendiente {
		m.markForm.Estado = models.EstadoSi
	}
	if m.markForm.HoraReal == "" {
		m.markForm.HoraReal = m.grid.Program.Horario
	}
	m.form = NewMarkForm(m.markForm)
	m.state = StateMark
	m.message = ""
	return m, m.form.Init()
}

// updateForm forwards msg to the active form. Esc returns to the grid.
func (m *Model) updateForm(msg tea.Msg) (escaped bool, cmd tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = StateGrid
		return true, nil
	}
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	return false, cmd
}

func (m Model) updateMarkForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	escaped, cmd := m.updateForm(msg)
	if escaped {
		return m, nil
	}
	cmds := []tea.Cmd{cmd}

	switch m.form.State {
	case huh.StateCompleted:
		report := m.markForm.Report().Sanitize()
		if err := report.Validate(); err != nil {
			// Keep the form open so the operator can fix it.
			m.setMessage(err.Error(), true)
			m.form = NewMarkForm(m.markForm)
			return m, m.form.Init()
		}
		fm := *m.markForm
		st := m.deps.Store
		cmds = append(cmds, func() tea.Msg {
			_, err := st.UpsertReport(context.Background(), fm.AffiliateID, fm.ProgramID, fm.Date, report)
			return reportMsg{key: utils.CacheKey(fm.AffiliateID, fm.ProgramID, fm.Date), report: report, err: err}
		})
		m.state = StateGrid
	case huh.StateAborted:
		m.state = StateGrid
	}
	return m, tea.Batch(cmds...)
}

func (m Model) openNoteForm() (tea.Model, tea.Cmd) {
	if !m.canWrite() {
		m.setMessage("Inicia sesión como operador para escribir notas", true)
		return m.openLoginForm(models.SessionOperador)
	}
	a, _, ok := m.grid.Selected()
	if !ok {
		return m, nil
	}
	weekStart := utils.DateKey(m.week.Inicio)
	m.noteForm = &NoteFormModel{
		AffiliateID: a.ID,
		Affiliate:   a.Nombre,
		WeekStart:   weekStart,
		Content:     m.deps.Store.GetNoteFor(a.ID, weekStart),
	}
	m.form = NewNoteForm(m.noteForm)
	m.state = StateNote
	m.message = ""
	return m, m.form.Init()
}

func (m Model) updateNoteForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	escaped, cmd := m.updateForm(msg)
	if escaped {
		return m, nil
	}
	cmds := []tea.Cmd{cmd}

	switch m.form.State {
	case huh.StateCompleted:
		fm := *m.noteForm
		st := m.deps.Store
		cmds = append(cmds, func() tea.Msg {
			err := st.UpsertNote(context.Background(), fm.AffiliateID, fm.WeekStart, fm.Content)
			return noteMsg{affiliate: fm.Affiliate, err: err}
		})
		m.state = StateGrid
	case huh.StateAborted:
		m.state = StateGrid
	}
	return m, tea.Batch(cmds...)
}

func (m Model) openLoginForm(kind models.SessionKind) (tea.Model, tea.Cmd) {
	if m.deps.Sessions == nil {
		return m, nil
	}
	m.loginForm = &LoginFormModel{Kind: kind}
	m.form = NewLoginForm(m.loginForm)
	m.state = StateLogin
	return m, m.form.Init()
}

func (m Model) updateLoginForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	escaped, cmd := m.updateForm(msg)
	if escaped {
		return m, nil
	}

	switch m.form.State {
	case huh.StateCompleted:
		fm := m.loginForm
		sess, err := m.deps.Sessions.Login(fm.Kind, fm.Username, fm.Password)
		if err != nil {
			logger.Warn("Login failed", "kind", fm.Kind, "user", fm.Username)
			m.setMessage("Credenciales inválidas", true)
			m.loginForm = &LoginFormModel{Kind: fm.Kind, Username: fm.Username}
			m.form = NewLoginForm(m.loginForm)
			return m, m.form.Init()
		}
		m.refreshSessions()
		m.setMessage(fmt.Sprintf("✓ Sesión %s abierta para %s", sess.Kind, sess.Username), false)
		m.state = StateGrid
	case huh.StateAborted:
		m.state = StateGrid
	}
	return m, cmd
}

// logout closes the admin session first, then the operator one.
func (m *Model) logout() {
	if m.deps.Sessions == nil {
		return
	}
	kind := models.SessionOperador
	if m.admin != nil {
		kind = models.SessionAdmin
	}
	if err := m.deps.Sessions.Logout(kind); err != nil {
		m.setMessage("Error al cerrar sesión: "+err.Error(), true)
		return
	}
	m.refreshSessions()
	m.setMessage(fmt.Sprintf("Sesión %s cerrada", kind), false)
}

func (m Model) updateFilter(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEsc:
			m.state = StateGrid
			m.filterInput.Blur()
			return m, nil
		case tea.KeyEnter:
			m.filter = m.filterInput.Value()
			m.state = StateGrid
			m.filterInput.Blur()
			m.syncGrid()
			m.rememberSettings()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func (m Model) syncCmd() tea.Cmd {
	st := m.deps.Store
	if st.PendingCount() == 0 {
		return func() tea.Msg { return syncMsg{} }
	}
	return func() tea.Msg {
		sent, err := st.RetryPending(context.Background())
		return syncMsg{sent: sent, err: err}
	}
}

// exportCmd writes the visible grid. printable writes the printable document
// and opens it; otherwise a spreadsheet is written.
func (m Model) exportCmd(printable bool) tea.Cmd {
	vm := export.Build(m.deps.Store, m.grid.Program, m.grid.Affiliates, m.grid.Days, m.now)
	dir := m.deps.ExportDir
	open := m.deps.Open
	return func() tea.Msg {
		ext, write := "xlsx", export.WriteXLSX
		if printable {
			ext, write = "html", export.WriteHTML
		}
		path := filepath.Join(dir, export.FileName(vm, ext))
		f, err := os.Create(path)
		if err != nil {
			return exportMsg{err: err}
		}
		if err := write(f, vm); err != nil {
			f.Close()
			return exportMsg{err: err}
		}
		if err := f.Close(); err != nil {
			return exportMsg{err: err}
		}
		if printable {
			if err := open(path); err != nil {
				return exportMsg{path: path, err: err}
			}
		}
		return exportMsg{path: path, printed: printable}
	}
}
