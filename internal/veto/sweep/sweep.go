// Package sweep runs the engine's periodic maintenance: expiring stale
// sessions and purging IP locks left on finished ones. Every pass is
// idempotent, so overlapping sweeps from multiple processes converge.
package sweep

import (
	"context"
	"log"
	"time"
)

// Engine is the subset of service operations the sweeper drives.
type Engine interface {
	ExpireStaleSessions(ctx context.Context) (int, error)
	PurgeTerminalIPs(ctx context.Context) (int64, error)
}

// DefaultInterval is how often a sweep pass runs when not configured.
const DefaultInterval = time.Hour

// Runner periodically sweeps expired sessions and stale IP locks.
type Runner struct {
	engine   Engine
	interval time.Duration
	logf     func(format string, args ...any)
}

// New creates a sweep runner. A non-positive interval falls back to
// DefaultInterval; a nil logf falls back to log.Printf.
func New(engine Engine, interval time.Duration, logf func(format string, args ...any)) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Runner{engine: engine, interval: interval, logf: logf}
}

// Run sweeps on a fixed interval until the context is canceled. Errors are
// logged and the loop keeps going; a failed pass is retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep executes one maintenance pass.
func (r *Runner) Sweep(ctx context.Context) {
	expired, err := r.engine.ExpireStaleSessions(ctx)
	if err != nil {
		r.logf("sweep: expire stale sessions: %v", err)
	} else if expired > 0 {
		r.logf("sweep: expired %d stale sessions", expired)
	}

	cleared, err := r.engine.PurgeTerminalIPs(ctx)
	if err != nil {
		r.logf("sweep: purge terminal ips: %v", err)
	} else if cleared > 0 {
		r.logf("sweep: cleared %d seat ip locks", cleared)
	}
}
