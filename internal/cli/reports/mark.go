package reports

import (
	"context"
	"errors"
	"strings"

	"github.com/julianstephens/filialwatch/internal/cli"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/export"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/targets"
	"github.com/julianstephens/filialwatch/internal/utils"
)

type MarkCmd struct {
	Affiliate string `arg:"" help:"Affiliate id or name."`
	Estado    string `arg:"" enum:"si,no,tarde" help:"Outcome: si, no or tarde."`
	Program   string `short:"p" help:"Program id or name (defaults to the first active program)."`
	Date      string `short:"d" help:"Broadcast date (defaults to today)."`
	HoraReal  string `name:"hora-real" help:"Actual start time (HH:MM)."`
	HoraTT    string `name:"hora-tt" help:"Time the affiliate reported (HH:MM)."`
	Target    string `short:"t" help:"Reason, e.g. Tde, Fta, 'P. Tec' or Problema_tecnico."`
	Motivo    string `short:"m" help:"Free-text detail."`
}

// patch builds the report to write. Reasons are accepted in any spelling
// the mapping understands and stored as abbreviations.
func (c *MarkCmd) patch() (models.Report, error) {
	estado, err := models.ParseEstado(strings.ToLower(strings.TrimSpace(c.Estado)))
	if err != nil {
		return models.Report{}, apperrors.Validationf("%v", err)
	}
	r := models.Report{
		Estado:   estado,
		HoraReal: strings.TrimSpace(c.HoraReal),
		HoraTT:   strings.TrimSpace(c.HoraTT),
		Motivo:   strings.TrimSpace(c.Motivo),
	}
	if t := strings.TrimSpace(c.Target); t != "" {
		r.Target = targets.ToAbbr(t)
	}
	return r, nil
}

func (c *MarkCmd) Run(ctx *cli.Context) error {
	patch, err := c.patch()
	if err != nil {
		return err
	}
	date, err := utils.ParseLocalDate(c.Date)
	if err != nil {
		return apperrors.Validationf("%v", err)
	}
	week := utils.WeekOf(date)
	st, err := ctx.OpenReports(context.Background(), week.Inicio, week.Fin)
	if err != nil {
		return err
	}
	program, err := cli.ResolveProgram(st, c.Program)
	if err != nil {
		return err
	}
	affiliate, err := cli.ResolveAffiliate(st, c.Affiliate)
	if err != nil {
		return err
	}
	if !program.AirsOn(date.In(utils.Lima).Weekday()) {
		return apperrors.Validationf("%s does not air on %s", program.Nombre, utils.WeekdayName(date))
	}

	saved, err := st.UpsertReport(context.Background(), affiliate.ID, program.ID, date, patch)
	if err != nil {
		if errors.Is(err, apperrors.ErrWriteFailed) {
			ctx.Printf("⚠ Saved locally, not yet confirmed by the backend\n")
		}
		return err
	}
	cell := export.Cell{Date: date, Airs: true, Report: saved}
	ctx.Printf("✓ %s · %s · %s: %s\n", affiliate.Nombre, program.Nombre, utils.FormatLocal(date), export.CellText(cell))
	return nil
}
