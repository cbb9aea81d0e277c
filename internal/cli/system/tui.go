package system

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/filialwatch/internal/backup"
	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/monitor"
	"github.com/julianstephens/filialwatch/internal/tui"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// runTUI starts the dashboard. Tests replace it.
var runTUI = func(ctx context.Context, deps tui.Deps) error {
	return tui.Run(ctx, deps)
}

type TuiCmd struct {
	ExportDir string `type:"path" default:"." help:"Directory for exported spreadsheets and printable reports."`
	NoLive    bool   `help:"Do not subscribe to backend change events."`
}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	autoBackup(ctx)

	week := utils.WeekOf(utils.LocalNow())
	st, err := ctx.NewReportStore(week.Inicio, week.Fin)
	if err != nil {
		return err
	}
	sessions, err := ctx.Sessions()
	if err != nil {
		return err
	}
	gw, err := ctx.Client()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := ctx.Connection()
	monitor.NotifyTransitions(runCtx, conn, ctx.Notifier())

	deps := tui.Deps{
		Store:     st,
		Sessions:  sessions,
		Local:     ctx.Store,
		Conn:      conn,
		Checker:   gw,
		ExportDir: c.ExportDir,
	}
	if sub, ok := gw.(monitor.Subscriber); ok && !c.NoLive {
		deps.Subscriber = sub
	}
	return runTUI(runCtx, deps)
}

// autoBackup snapshots the local state when it holds unsynced edits.
func autoBackup(ctx *cli.Context) {
	pending, err := ctx.Store.GetPendingReports()
	if err != nil {
		return
	}
	notes, err := ctx.Store.GetPendingNotes()
	if err != nil || len(pending)+len(notes) == 0 {
		return
	}
	path, err := backup.NewManager(ctx.Store.GetConfigPath()).Create()
	if err != nil {
		logger.Warn("Automatic backup failed", "error", err)
		return
	}
	logger.Info("Backed up unsynced edits", "path", path, "reports", len(pending), "notes", len(notes))
}
