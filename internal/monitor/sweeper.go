package monitor

import (
	"context"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/logger"
)

// Sweeper removes expired sessions. session.Manager satisfies it.
type Sweeper interface {
	Sweep() (int, error)
}

// SessionSweeper runs a Sweeper on a fixed interval.
type SessionSweeper struct {
	s        Sweeper
	interval time.Duration
}

func NewSessionSweeper(s Sweeper, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = constants.SessionSweepInterval
	}
	return &SessionSweeper{s: s, interval: interval}
}

// Run sweeps on every interval until ctx is done.
func (w *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.s.Sweep(); err != nil {
				logger.Warn("Session sweep failed", "error", err)
			}
		}
	}
}
