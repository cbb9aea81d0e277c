package reports

import (
	"context"
	"errors"

	"github.com/julianstephens/filialwatch/internal/cli"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// SyncCmd re-sends local edits the backend has not confirmed.
type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *cli.Context) error {
	week := utils.WeekOf(utils.LocalNow())
	st, err := ctx.OpenReports(context.Background(), week.Inicio, week.Fin)
	if err != nil && !errors.Is(err, apperrors.ErrOffline) {
		return err
	}
	total := st.PendingCount()
	if total == 0 {
		ctx.Printf("Nothing to sync\n")
		return nil
	}
	if err != nil {
		return err
	}
	sent, err := st.RetryPending(context.Background())
	ctx.Printf("Synced %d of %d edit(s)\n", sent, total)
	return err
}

// PendingCmd lists the local edits the backend has not confirmed.
type PendingCmd struct{}

func (c *PendingCmd) Run(ctx *cli.Context) error {
	reports, err := ctx.Store.GetPendingReports()
	if err != nil {
		return err
	}
	notes, err := ctx.Store.GetPendingNotes()
	if err != nil {
		return err
	}
	if len(reports) == 0 && len(notes) == 0 {
		ctx.Printf("No unsynced edits\n")
		return nil
	}
	if len(reports) > 0 {
		ctx.Printf("Reports:\n")
		for k, r := range reports {
			line := string(r.Estado)
			if r.HoraReal != "" {
				line += " " + r.HoraReal
			}
			if r.Target != "" {
				line += " (" + r.Target + ")"
			}
			ctx.Printf("  %s  filial %s  programa %s  %s\n", k.Day, k.AffiliateID, k.ProgramID, line)
		}
	}
	if len(notes) > 0 {
		ctx.Printf("Notes:\n")
		for _, n := range notes {
			ctx.Printf("  %s  filial %s  %q\n", n.WeekStart, n.AffiliateID, n.Content)
		}
	}
	return nil
}
