package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/filialwatch/internal/constants"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/monitor"
)

// Run starts the dashboard and its background jobs, blocking until the
// user quits or ctx is cancelled.
func Run(ctx context.Context, deps Deps, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(deps), opts...)

	refresh := func(ctx context.Context) {
		p.Send(refreshedMsg{ok: deps.Store.Refresh(ctx)})
	}

	if deps.Conn != nil {
		deps.Conn.OnChange(func(s monitor.Snapshot) {
			p.Send(connMsg(s))
		})
		if deps.Checker != nil {
			prober := monitor.NewProber(deps.Checker, deps.Conn,
				monitor.WithReconnect(refresh),
				monitor.WithInterval(constants.ProbeInterval),
				monitor.WithTimeout(constants.ProbeTimeout),
			)
			go prober.Run(ctx)
		}
	}
	if deps.Sessions != nil {
		go monitor.NewSessionSweeper(deps.Sessions, constants.SessionSweepInterval).Run(ctx)
	}
	if deps.Subscriber != nil {
		go monitor.NewWatcher(deps.Subscriber, refresh).Run(ctx)
	}

	logger.Info("Starting dashboard")
	_, err := p.Run()
	if apperrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
