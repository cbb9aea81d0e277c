package system

import (
	"context"
	"time"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/monitor"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	m, err := ctx.Sessions()
	if err != nil {
		return err
	}
	now := time.Now()

	ctx.Printf("Local state: %s\n", ctx.Store.GetConfigPath())
	ctx.Printf("Backend:     %s\n", ctx.Config.APIURL)
	ctx.Printf("\nSessions\n")
	for _, kind := range []models.SessionKind{models.SessionOperador, models.SessionAdmin} {
		sess, ok := m.Current(kind)
		ctx.Printf("  %s\n", describeSession(kind, sess, ok, now))
	}

	pending, err := ctx.Store.GetPendingReports()
	if err != nil {
		return err
	}
	notes, err := ctx.Store.GetPendingNotes()
	if err != nil {
		return err
	}
	ctx.Printf("\nUnsynced edits: %d reports, %d notes\n", len(pending), len(notes))

	gw, err := ctx.Client()
	if err != nil {
		return err
	}
	conn := ctx.Connection()
	monitor.NewProber(gw, conn).Probe(context.Background())
	snap := conn.Snapshot()
	if snap.Connected {
		ctx.Printf("Connection:     %s (%s)\n", snap.Label(), snap.Health)
	} else {
		ctx.Printf("Connection:     %s: %s\n", snap.Label(), snap.LastError)
	}
	return nil
}
