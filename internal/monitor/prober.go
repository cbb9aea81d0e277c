package monitor

import (
	"context"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/logger"
)

// Checker is the part of the gateway the prober needs.
type Checker interface {
	Health(ctx context.Context) (gateway.HealthResponse, error)
	Ping(ctx context.Context) error
}

// Prober periodically checks the backend and records the result in a
// Connection.
type Prober struct {
	gw          Checker
	conn        *Connection
	interval    time.Duration
	timeout     time.Duration
	onReconnect func(ctx context.Context)
}

type ProberOption func(*Prober)

// WithReconnect sets the hook run when a disconnected backend answers again.
func WithReconnect(fn func(ctx context.Context)) ProberOption {
	return func(p *Prober) { p.onReconnect = fn }
}

func WithInterval(d time.Duration) ProberOption {
	return func(p *Prober) { p.interval = d }
}

func WithTimeout(d time.Duration) ProberOption {
	return func(p *Prober) { p.timeout = d }
}

func NewProber(gw Checker, conn *Connection, opts ...ProberOption) *Prober {
	p := &Prober{
		gw:       gw,
		conn:     conn,
		interval: constants.ProbeInterval,
		timeout:  constants.ProbeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs one Ping + Health check and reports whether the backend is
// reachable and healthy.
func (p *Prober) Probe(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.gw.Ping(cctx); err != nil {
		p.conn.MarkOffline(err)
		return false
	}
	h, err := p.gw.Health(cctx)
	if err != nil {
		p.conn.MarkOffline(err)
		return false
	}

	if p.conn.set(true, h.Status, "") && p.onReconnect != nil {
		logger.Debug("Backend reachable again, refreshing")
		p.onReconnect(ctx)
	}
	return true
}

// Run probes immediately and then on every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
