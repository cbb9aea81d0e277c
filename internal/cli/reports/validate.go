package reports

import (
	"context"
	"fmt"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/validation"
)

// ValidateCmd checks the catalog and the unsynced edits for inconsistencies.
// It reports conflicts without failing.
type ValidateCmd struct {
	Strict bool `help:"Exit with an error when conflicts are found."`
}

func (c *ValidateCmd) Run(ctx *cli.Context) error {
	gw, err := ctx.Client()
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	programs, err := gw.Programs(cctx)
	if err != nil {
		return fmt.Errorf("failed to load programs: %w", err)
	}
	affiliates, err := gw.Affiliates(cctx)
	if err != nil {
		return fmt.Errorf("failed to load affiliates: %w", err)
	}
	reports, err := ctx.Store.GetPendingReports()
	if err != nil {
		return err
	}
	notes, err := ctx.Store.GetPendingNotes()
	if err != nil {
		return err
	}

	v := validation.New()
	ctx.Printf("Validating catalog (%d programs, %d affiliates)...\n", len(programs), len(affiliates))
	result := v.ValidateCatalog(programs, affiliates)
	ctx.Printf("Validating unsynced edits (%d reports, %d notes)...\n", len(reports), len(notes))
	result.Merge(v.ValidatePending(reports, notes, programs, affiliates))

	ctx.Printf("\n%s\n", result.FormatReport())
	if c.Strict && result.HasConflicts() {
		return fmt.Errorf("%d conflict(s) found", len(result.Conflicts))
	}
	return nil
}
