package monitor

import (
	"context"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/logger"
)

// Subscriber streams backend change events. gateway.Client satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(gateway.Event)) error
}

// Watcher turns backend change events into refreshes. Bursts of events
// collapse into a single refresh.
type Watcher struct {
	sub     Subscriber
	refresh func(ctx context.Context)
	retry   time.Duration
	onEvent func(gateway.Event)
}

func NewWatcher(sub Subscriber, refresh func(ctx context.Context)) *Watcher {
	return &Watcher{sub: sub, refresh: refresh, retry: constants.ProbeInterval}
}

// OnEvent registers fn to see every event before the refresh is scheduled.
func (w *Watcher) OnEvent(fn func(gateway.Event)) {
	w.onEvent = fn
}

// Run keeps a subscription open until ctx is done, reconnecting after the
// retry delay whenever it drops.
func (w *Watcher) Run(ctx context.Context) {
	kick := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
				w.refresh(ctx)
			}
		}
	}()

	for {
		err := w.sub.Subscribe(ctx, func(ev gateway.Event) {
			logger.Debug("Backend event", "type", ev.Type, "filial", ev.FilialID, "programa", ev.ProgramaID)
			if w.onEvent != nil {
				w.onEvent(ev)
			}
			select {
			case kick <- struct{}{}:
			default:
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Debug("Event subscription dropped", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retry):
		}
	}
}
