package reports

import (
	"context"
	"errors"
	"strings"

	"github.com/julianstephens/filialwatch/internal/cli"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/utils"
)

type NoteCmd struct {
	Affiliate string `arg:"" help:"Affiliate id or name."`
	Content   string `arg:"" optional:"" help:"New note text. Omit to print the current note."`
	Week      string `short:"w" help:"Any date in the week (defaults to this week)."`
	Clear     bool   `help:"Replace the note with an empty one."`
}

func (c *NoteCmd) Run(ctx *cli.Context) error {
	week, err := cli.WeekRange(c.Week)
	if err != nil {
		return err
	}
	st, err := ctx.OpenReports(context.Background(), week.Inicio, week.Fin)
	if err != nil {
		return err
	}
	affiliate, err := cli.ResolveAffiliate(st, c.Affiliate)
	if err != nil {
		return err
	}
	weekStart := utils.DateKey(week.Inicio)

	content := strings.TrimSpace(c.Content)
	if content == "" && !c.Clear {
		note := st.GetNoteFor(affiliate.ID, weekStart)
		if note == "" {
			ctx.Printf("No note for %s in %s\n", affiliate.Nombre, week.Label())
			return nil
		}
		ctx.Printf("%s\n", note)
		return nil
	}

	if err := st.UpsertNote(context.Background(), affiliate.ID, weekStart, content); err != nil {
		if errors.Is(err, apperrors.ErrWriteFailed) {
			ctx.Printf("⚠ Saved locally, not yet confirmed by the backend\n")
		}
		return err
	}
	ctx.Printf("✓ Note saved for %s (%s)\n", affiliate.Nombre, week.Label())
	return nil
}
