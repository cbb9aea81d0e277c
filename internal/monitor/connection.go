// Package monitor tracks backend connectivity and runs the periodic
// background jobs of a dashboard session: the connectivity probe, the
// session sweep and the change-event watcher.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/notifier"
)

// Snapshot is a copy of the connection state.
type Snapshot struct {
	Known     bool
	Connected bool
	Health    string
	LastCheck time.Time
	Since     time.Time
	LastError string
}

// Label is the short badge text.
func (s Snapshot) Label() string {
	switch {
	case !s.Known:
		return "conectando"
	case s.Connected:
		return "en línea"
	default:
		return "sin conexión"
	}
}

// Connection is the process-wide connectivity state. It satisfies
// store.ConnectionSink.
type Connection struct {
	mu        sync.RWMutex
	snap      Snapshot
	now       func() time.Time
	listeners []func(Snapshot)
}

func NewConnection() *Connection {
	return &Connection{now: time.Now}
}

// OnChange registers fn to run after every transition between connected
// and disconnected, including the first check.
func (c *Connection) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Connection) MarkOnline(health string) {
	c.set(true, health, "")
}

func (c *Connection) MarkOffline(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.set(false, "", msg)
}

// set records a check result and reports whether it turned a known
// disconnected state into a connected one.
func (c *Connection) set(connected bool, health, errMsg string) (reconnected bool) {
	c.mu.Lock()
	now := c.now()
	prev := c.snap
	changed := !prev.Known || prev.Connected != connected
	c.snap.Known = true
	c.snap.Connected = connected
	c.snap.Health = health
	c.snap.LastCheck = now
	c.snap.LastError = errMsg
	if changed {
		c.snap.Since = now
	}
	snap := c.snap
	listeners := append(([]func(Snapshot))(nil), c.listeners...)
	c.mu.Unlock()

	if changed {
		if connected {
			logger.Info("Backend connection established", "health", health)
		} else {
			logger.Warn("Backend connection lost", "error", errMsg)
		}
		for _, fn := range listeners {
			fn(snap)
		}
	}
	return prev.Known && !prev.Connected && connected
}

func (c *Connection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Connection) Connected() bool {
	return c.Snapshot().Connected
}

// NotifyTransitions forwards connectivity changes to n. The first check is
// only announced when it fails.
func NotifyTransitions(ctx context.Context, c *Connection, n *notifier.Notifier) {
	if !n.Enabled() {
		return
	}
	var mu sync.Mutex
	seen := false
	c.OnChange(func(s Snapshot) {
		mu.Lock()
		first := !seen
		seen = true
		mu.Unlock()
		if first && s.Connected {
			return
		}

		text := "Conexión con el servidor restablecida"
		if !s.Connected {
			text = fmt.Sprintf("Sin conexión con el servidor: %s", s.LastError)
		}
		go func() {
			if err := n.Notify(ctx, text); err != nil {
				logger.Warn("Failed to send connectivity notification", "error", err)
			}
		}()
	})
}
