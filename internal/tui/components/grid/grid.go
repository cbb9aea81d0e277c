// Package grid is the week table of one program: affiliates down, days
// across, with a movable cell cursor.
package grid

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/filialwatch/internal/export"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/stats"
	"github.com/julianstephens/filialwatch/internal/targets"
	"github.com/julianstephens/filialwatch/internal/utils"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	siStyle      = cellStyle.Foreground(lipgloss.Color("42"))
	noStyle      = cellStyle.Foreground(lipgloss.Color("196"))
	tardeStyle   = cellStyle.Foreground(lipgloss.Color("214"))
	pendStyle    = cellStyle.Foreground(lipgloss.Color("240"))
	naStyle      = cellStyle.Foreground(lipgloss.Color("236"))
	todayStyle   = headerStyle.Foreground(lipgloss.Color("205"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(1, 2)
	pendingGlyph = "*"
)

type Model struct {
	Program    models.Program
	Affiliates []models.Affiliate
	Days       []time.Time
	Row, Col   int
	Today      time.Time
}

func New() Model {
	return Model{Today: utils.Today()}
}

// SetData replaces the table contents and keeps the cursor inside it.
func (m *Model) SetData(program models.Program, affiliates []models.Affiliate, days []time.Time) {
	m.Program = program
	m.Affiliates = affiliates
	m.Days = days
	m.Move(0, 0)
}

// Move shifts the cursor, clamped to the table.
func (m *Model) Move(dRow, dCol int) {
	m.Row = clamp(m.Row+dRow, len(m.Affiliates))
	m.Col = clamp(m.Col+dCol, len(m.Days))
}

// FocusDay puts the cursor on date when it is one of the columns.
func (m *Model) FocusDay(date time.Time) {
	key := utils.DateKey(date)
	for i, d := range m.Days {
		if utils.DateKey(d) == key {
			m.Col = i
			return
		}
	}
}

func clamp(v, n int) int {
	if n == 0 || v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Selected returns the affiliate and day under the cursor.
func (m Model) Selected() (models.Affiliate, time.Time, bool) {
	if len(m.Affiliates) == 0 || len(m.Days) == 0 {
		return models.Affiliate{}, time.Time{}, false
	}
	return m.Affiliates[m.Row], m.Days[m.Col], true
}

// Airs reports whether the program is scheduled on date.
func (m Model) Airs(date time.Time) bool {
	return m.Program.AirsOn(date.In(utils.Lima).Weekday())
}

func (m Model) cellText(get stats.ReportFunc, a models.Affiliate, d time.Time) (string, models.Report) {
	r := get(a.ID, m.Program.ID, d)
	s := export.CellText(export.Cell{Date: d, Airs: m.Airs(d), Report: r})
	if r.Sync == models.SyncPending {
		s += pendingGlyph
	}
	return s, r
}

func estadoStyle(airs bool, e models.Estado) lipgloss.Style {
	if !airs {
		return naStyle
	}
	switch e {
	case models.EstadoSi:
		return siStyle
	case models.EstadoNo:
		return noStyle
	case models.EstadoTarde:
		return tardeStyle
	}
	return pendStyle
}

// View renders the table. focused controls whether the cursor is drawn.
func (m Model) View(get stats.ReportFunc, focused bool) string {
	if len(m.Affiliates) == 0 {
		return emptyStyle.Render("No hay filiales activas.")
	}

	headers := []string{"Filial"}
	for _, d := range m.Days {
		headers = append(headers, export.DayHeader(d))
	}

	rows := make([][]string, len(m.Affiliates))
	styles := make([][]lipgloss.Style, len(m.Affiliates))
	for i, a := range m.Affiliates {
		rows[i] = []string{a.Nombre}
		styles[i] = []lipgloss.Style{nameStyle}
		for _, d := range m.Days {
			text, r := m.cellText(get, a, d)
			rows[i] = append(rows[i], text)
			styles[i] = append(styles[i], estadoStyle(m.Airs(d), r.Estado))
		}
	}

	todayKey := utils.DateKey(m.Today)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				if col > 0 && col-1 < len(m.Days) && utils.DateKey(m.Days[col-1]) == todayKey {
					return todayStyle
				}
				return headerStyle
			}
			if row < 0 || row >= len(styles) || col >= len(styles[row]) {
				return cellStyle
			}
			s := styles[row][col]
			if focused && row == m.Row && col == m.Col+1 {
				s = s.Reverse(true)
			}
			return s
		})
	return t.String()
}

// Detail describes the cell under the cursor in one line.
func (m Model) Detail(get stats.ReportFunc) string {
	a, d, ok := m.Selected()
	if !ok {
		return ""
	}
	parts := []string{a.Nombre, utils.WeekdayName(d) + " " + utils.FormatLocal(d)}
	if !m.Airs(d) {
		return strings.Join(append(parts, "no se emite"), " · ")
	}
	r := get(a.ID, m.Program.ID, d)
	parts = append(parts, export.EstadoLabel(r.Estado))
	if r.HoraReal != "" {
		parts = append(parts, "hora real "+r.HoraReal)
	}
	if r.HoraTT != "" {
		parts = append(parts, "hora TT "+r.HoraTT)
	}
	if r.Estado == models.EstadoTarde && r.HoraReal != "" {
		if late, err := utils.MinutesLate(m.Program.Horario, r.HoraReal); err == nil && late > 0 {
			parts = append(parts, fmt.Sprintf("+%d min", late))
		}
	}
	if r.Target != "" {
		parts = append(parts, targets.Label(r.Target))
	}
	if r.Motivo != "" {
		parts = append(parts, r.Motivo)
	}
	if r.Sync == models.SyncPending {
		parts = append(parts, "sin confirmar")
	}
	return strings.Join(parts, " · ")
}
