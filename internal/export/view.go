// Package export renders the weekly or daily compliance table of one
// program as a spreadsheet, a print-ready document or CSV. Every renderer
// consumes the same ViewModel, built read-only from the reporting store.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/stats"
	"github.com/julianstephens/filialwatch/internal/targets"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Source is the read side of the reporting store.
type Source interface {
	GetReportState(affiliateID, programID string, date time.Time) models.Report
	GetNoteFor(affiliateID, weekStart string) string
}

// Scope tells the renderers which table layout to use.
type Scope string

const (
	ScopeWeek Scope = "semana"
	ScopeDay  Scope = "dia"
)

// Cell is one affiliate on one day.
type Cell struct {
	Date   time.Time
	Airs   bool
	Report models.Report
}

// Row is one affiliate across the scope.
type Row struct {
	Affiliate models.Affiliate
	Cells     []Cell
	Note      string
}

// NoteLine is a non-empty note for the notes sheet.
type NoteLine struct {
	Affiliate string
	Content   string
}

// ViewModel is everything a renderer needs.
type ViewModel struct {
	Program     models.Program
	Scope       Scope
	Days        []time.Time
	Period      string
	GeneratedAt time.Time
	Rows        []Row
	Stats       stats.Stats
	Notes       []NoteLine
}

// Build resolves every cell of program for affiliates over days. One day
// yields the single-day layout; more yield the week layout.
func Build(src Source, program models.Program, affiliates []models.Affiliate, days []time.Time, now time.Time) ViewModel {
	vm := ViewModel{
		Program:     program,
		Scope:       ScopeWeek,
		Days:        append([]time.Time(nil), days...),
		GeneratedAt: now.In(utils.Lima),
	}
	if len(days) == 1 {
		vm.Scope = ScopeDay
		vm.Period = utils.WeekdayName(days[0]) + " " + utils.FormatLocal(days[0])
	} else if len(days) > 1 {
		vm.Period = utils.FormatLocal(days[0]) + " - " + utils.FormatLocal(days[len(days)-1])
	}

	weekStart := ""
	if len(days) > 0 {
		weekStart = utils.DateKey(utils.WeekOf(days[0]).Inicio)
	}
	vm.Stats = stats.Compute(affiliates, days, program, src.GetReportState)

	for _, a := range affiliates {
		row := Row{Affiliate: a}
		for _, d := range days {
			row.Cells = append(row.Cells, Cell{
				Date:   d,
				Airs:   program.AirsOn(d.In(utils.Lima).Weekday()),
				Report: src.GetReportState(a.ID, program.ID, d),
			})
		}
		if weekStart != "" {
			row.Note = src.GetNoteFor(a.ID, weekStart)
			if strings.TrimSpace(row.Note) != "" {
				vm.Notes = append(vm.Notes, NoteLine{Affiliate: a.Nombre, Content: row.Note})
			}
		}
		vm.Rows = append(vm.Rows, row)
	}
	return vm
}

// DayHeader renders a week column title such as "Lun 10/03".
func DayHeader(d time.Time) string {
	name := utils.WeekdayName(d)
	short := []rune(name)
	if len(short) > 3 {
		short = short[:3]
	}
	return string(short) + " " + d.In(utils.Lima).Format("02/01")
}

// CellText is the compact rendering used in week tables.
func CellText(c Cell) string {
	if !c.Airs {
		return "N/A"
	}
	r := c.Report
	switch r.Estado {
	case models.EstadoSi:
		if r.HoraReal != "" {
			return "SI " + r.HoraReal
		}
		return "SI"
	case models.EstadoNo:
		if r.Target != "" {
			return "NO (" + r.Target + ")"
		}
		return "NO"
	case models.EstadoTarde:
		s := "TARDE"
		if r.HoraReal != "" {
			s += " " + r.HoraReal
		}
		if r.Target != "" {
			s += " (" + r.Target + ")"
		}
		return s
	}
	return "-"
}

// EstadoLabel is the long Spanish label of an estado.
func EstadoLabel(e models.Estado) string {
	switch e {
	case models.EstadoSi:
		return "Transmitió"
	case models.EstadoNo:
		return "No transmitió"
	case models.EstadoTarde:
		return "Tarde"
	}
	return "Pendiente"
}

// DayColumns are the headers of the single-day layout.
var DayColumns = []string{"Filial", "Estado", "Hora real", "Hora TT", "Target", "Motivo"}

// DayValues renders one row of the single-day layout.
func DayValues(r Row) []string {
	if len(r.Cells) == 0 {
		return []string{r.Affiliate.Nombre, "", "", "", "", ""}
	}
	c := r.Cells[0]
	if !c.Airs {
		return []string{r.Affiliate.Nombre, "N/A", "", "", "", ""}
	}
	rep := c.Report
	return []string{r.Affiliate.Nombre, EstadoLabel(rep.Estado), rep.HoraReal, rep.HoraTT, targets.Label(rep.Target), rep.Motivo}
}

// Headers returns the table header for the view's layout.
func (vm ViewModel) Headers() []string {
	if vm.Scope == ScopeDay {
		return DayColumns
	}
	h := []string{"Filial"}
	for _, d := range vm.Days {
		h = append(h, DayHeader(d))
	}
	return h
}

// Values returns one table row for the view's layout.
func (vm ViewModel) Values(r Row) []string {
	if vm.Scope == ScopeDay {
		return DayValues(r)
	}
	v := []string{r.Affiliate.Nombre}
	for _, c := range r.Cells {
		v = append(v, CellText(c))
	}
	return v
}

// StatLines are the label/value pairs of the statistics block.
func (vm ViewModel) StatLines() [][2]string {
	s := vm.Stats
	return [][2]string{
		{"Total", fmt.Sprint(s.Total)},
		{"Transmitidas", fmt.Sprint(s.Transmitidas)},
		{"No transmitidas", fmt.Sprint(s.NoTransmitidas)},
		{"Tardías", fmt.Sprint(s.Tardias)},
		{"Pendientes", fmt.Sprint(s.Pendientes)},
		{"Efectividad", fmt.Sprintf("%d%%", s.Effectiveness())},
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName builds a file name such as
// "reporte_NOTICIAS_2025-03-10_2025-03-14.xlsx".
func FileName(vm ViewModel, ext string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(vm.Program.Nombre, "_"), "_")
	if name == "" {
		name = "programa"
	}
	parts := []string{"reporte", name}
	if len(vm.Days) > 0 {
		parts = append(parts, utils.DateKey(vm.Days[0]))
		if len(vm.Days) > 1 {
			parts = append(parts, utils.DateKey(vm.Days[len(vm.Days)-1]))
		}
	}
	return strings.Join(parts, "_") + "." + strings.TrimPrefix(ext, ".")
}
