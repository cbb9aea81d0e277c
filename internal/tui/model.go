// Package tui is the terminal dashboard: a week grid per program with a
// live clock, connectivity badge and forms for marking reports.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/export"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/monitor"
	"github.com/julianstephens/filialwatch/internal/session"
	"github.com/julianstephens/filialwatch/internal/stats"
	"github.com/julianstephens/filialwatch/internal/storage"
	"github.com/julianstephens/filialwatch/internal/store"
	"github.com/julianstephens/filialwatch/internal/tui/components/grid"
	"github.com/julianstephens/filialwatch/internal/utils"
)

type State int

const (
	StateGrid State = iota
	StateMark
	StateNote
	StateLogin
	StateFilter
)

// Deps are the collaborators the dashboard reads and writes through.
type Deps struct {
	Store    *store.Store
	Sessions *session.Manager
	Local    storage.Provider
	Conn     *monitor.Connection

	// Checker is probed in the background. Nil disables probing.
	Checker monitor.Checker
	// Subscriber pushes backend change events. Nil disables live updates.
	Subscriber monitor.Subscriber

	// ExportDir receives exported files. Empty means the working directory.
	ExportDir string
	// Open shows a printable document. Defaults to export.Open.
	Open func(path string) error
}

type Model struct {
	deps          Deps
	state         State
	keys          KeyMap
	help          help.Model
	spinner       spinner.Model
	filterInput   textinput.Model
	grid          grid.Model
	form          *huh.Form
	markForm      *MarkFormModel
	noteForm      *NoteFormModel
	loginForm     *LoginFormModel
	programID     string
	filter        string
	week          utils.Week
	now           time.Time
	conn          monitor.Snapshot
	operator      *models.Session
	admin         *models.Session
	loading       bool
	message       string
	messageIsErr  bool
	quitting      bool
	width, height int
}

// Messages
type (
	tickMsg      time.Time
	connMsg      monitor.Snapshot
	refreshedMsg struct{ ok bool }
	reportMsg    struct {
		key    utils.Key
		report models.Report
		err    error
	}
	noteMsg struct {
		affiliate string
		err       error
	}
	syncMsg struct {
		sent int
		err  error
	}
	exportMsg struct {
		path    string
		printed bool
		err     error
	}
)

func New(deps Deps) Model {
	if deps.Open == nil {
		deps.Open = export.Open
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	fi := textinput.New()
	fi.Placeholder = "nombre de filial"
	fi.Prompt = "/ "
	fi.CharLimit = 40

	now := utils.LocalNow()
	m := Model{
		deps:        deps,
		state:       StateGrid,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		filterInput: fi,
		grid:        grid.New(),
		week:        utils.WeekOf(now),
		now:         now,
		loading:     true,
	}
	if deps.Conn != nil {
		m.conn = deps.Conn.Snapshot()
	}
	if deps.Local != nil {
		if settings, err := deps.Local.GetSettings(); err == nil {
			m.programID = settings.LastProgram
			m.filter = settings.LastFilter
		}
	}
	m.refreshSessions()
	m.syncGrid()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(constants.ClockTickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	st := m.deps.Store
	from, to := m.week.Inicio, m.week.Fin
	initialize := func() tea.Msg {
		st.SetRange(from, to)
		return refreshedMsg{ok: <-st.Initialize(context.Background(), nil, nil)}
	}
	return tea.Batch(tick(), m.spinner.Tick, initialize)
}

func refreshCmd(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{ok: st.Refresh(context.Background())}
	}
}

// programs are the active programs in schedule order.
func (m Model) programs() []models.Program {
	return models.ActivePrograms(m.deps.Store.Programs())
}

func (m Model) currentProgram() (models.Program, bool) {
	programs := m.programs()
	if len(programs) == 0 {
		return models.Program{}, false
	}
	for _, p := range programs {
		if p.ID == m.programID {
			return p, true
		}
	}
	return programs[0], true
}

func (m Model) affiliates() []models.Affiliate {
	all := models.ActiveAffiliates(m.deps.Store.Affiliates())
	if m.filter == "" {
		return all
	}
	var out []models.Affiliate
	for _, a := range all {
		if containsFold(a.Nombre, m.filter) {
			out = append(out, a)
		}
	}
	return out
}

// syncGrid pushes the current program, filter and week into the grid.
func (m *Model) syncGrid() {
	p, ok := m.currentProgram()
	if ok {
		m.programID = p.ID
	}
	m.grid.Today = utils.StartOfDay(m.now)
	m.grid.SetData(p, m.affiliates(), m.week.Days())
}

func (m Model) report(affiliateID, programID string, date time.Time) models.Report {
	return m.deps.Store.GetReportState(affiliateID, programID, date)
}

func (m Model) stats() stats.Stats {
	return stats.Compute(m.grid.Affiliates, m.grid.Days, m.grid.Program, m.report)
}

// refreshSessions caches the open sessions for the header.
func (m *Model) refreshSessions() {
	m.operator, m.admin = nil, nil
	if m.deps.Sessions == nil {
		return
	}
	if s, ok := m.deps.Sessions.Current(models.SessionOperador); ok {
		m.operator = &s
	}
	if s, ok := m.deps.Sessions.Current(models.SessionAdmin); ok {
		m.admin = &s
	}
}

func (m Model) canWrite() bool {
	return m.deps.Sessions == nil || m.deps.Sessions.CanWrite()
}

// setWeek moves the visible range and returns the fetch for it.
func (m *Model) setWeek(w utils.Week) tea.Cmd {
	m.week = w
	m.deps.Store.SetRange(w.Inicio, w.Fin)
	m.syncGrid()
	m.loading = true
	return tea.Batch(m.spinner.Tick, refreshCmd(m.deps.Store))
}

// cycleProgram selects the next or previous active program and remembers it.
func (m *Model) cycleProgram(delta int) {
	programs := m.programs()
	if len(programs) == 0 {
		return
	}
	idx := 0
	for i, p := range programs {
		if p.ID == m.programID {
			idx = i
		}
	}
	idx = (idx + delta + len(programs)) % len(programs)
	m.programID = programs[idx].ID
	m.syncGrid()
	m.rememberSettings()
}

func (m Model) rememberSettings() {
	if m.deps.Local == nil {
		return
	}
	settings, err := m.deps.Local.GetSettings()
	if err != nil {
		logger.Warn("Could not read settings", "error", err)
		return
	}
	settings.LastProgram = m.programID
	settings.LastFilter = m.filter
	if err := m.deps.Local.SaveSettings(settings); err != nil {
		logger.Warn("Could not save settings", "error", err)
	}
}

func (m *Model) setMessage(msg string, isErr bool) {
	m.message = msg
	m.messageIsErr = isErr
}

func (m Model) ShortHelp() []key.Binding {
	return m.keys.ShortHelp()
}

func (m Model) FullHelp() [][]key.Binding {
	return m.keys.FullHelp()
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}
