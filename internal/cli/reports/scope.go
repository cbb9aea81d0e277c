// Package reports holds the operator commands over the reporting store.
package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/filialwatch/internal/cli"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/export"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/store"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// scope is what a read command resolved: the store for one week, the
// program being looked at and the days to show.
type scope struct {
	st         *store.Store
	program    models.Program
	affiliates []models.Affiliate
	days       []time.Time
	offline    bool
}

// openScope loads the week around dateArg. With day set only that date is
// kept. An empty programArg falls back to the last program used.
func openScope(ctx *cli.Context, programArg, dateArg, filter string, day bool) (*scope, error) {
	week, err := cli.WeekRange(dateArg)
	if err != nil {
		return nil, err
	}
	st, err := ctx.OpenReports(context.Background(), week.Inicio, week.Fin)
	offline := false
	if err != nil {
		if !errors.Is(err, apperrors.ErrOffline) || st == nil {
			return nil, err
		}
		offline = true
		ctx.Printf("⚠ Backend unreachable, showing unsynced edits only: %v\n", err)
	}

	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(programArg) == "" {
		programArg = settings.LastProgram
		if _, ok := st.Program(programArg); !ok {
			programArg = ""
		}
	}
	program, err := cli.ResolveProgram(st, programArg)
	if err != nil {
		return nil, err
	}
	if settings.LastProgram != program.ID {
		settings.LastProgram = program.ID
		if err := ctx.Store.SaveSettings(settings); err != nil {
			logger.Warn("Could not remember last program", "error", err)
		}
	}

	sc := &scope{
		st:         st,
		program:    program,
		affiliates: filterAffiliates(models.ActiveAffiliates(st.Affiliates()), filter),
		days:       week.Days(),
		offline:    offline,
	}
	if day {
		d, _ := utils.ParseLocalDate(dateArg)
		sc.days = []time.Time{d}
	}
	return sc, nil
}

// filterAffiliates keeps affiliates whose name contains filter, ignoring case.
func filterAffiliates(all []models.Affiliate, filter string) []models.Affiliate {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return all
	}
	var out []models.Affiliate
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.Nombre), f) {
			out = append(out, a)
		}
	}
	return out
}

func (sc *scope) view() export.ViewModel {
	return export.Build(sc.st, sc.program, sc.affiliates, sc.days, utils.LocalNow())
}

// renderTable draws the view's table for the terminal.
func renderTable(vm export.ViewModel) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(vm.Headers()...)
	for _, r := range vm.Rows {
		t.Row(vm.Values(r)...)
	}
	return t.String()
}
