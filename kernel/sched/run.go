package sched

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// TickFunc is invoked once per timer tick for a given cpu; typically just
// Manager.Schedule(cpu), wrapped so callers can mix in per-tick
// accounting.
type TickFunc func(cpu int)

// Run starts one paced ticker goroutine per CPU and blocks until ctx is
// canceled, then returns nil, mirroring the
// per-CPU worker bring-up any multi-core scheduler needs: each CPU's
// loop is independent, so one CPU's tick doesn't have to wait on
// another's, but a shutdown request needs every one of them to actually
// stop before Run returns.
//
// Each CPU's ticks are paced with a token-bucket limiter rather than a
// plain time.Ticker so a CPU that falls behind (a slow tick handler)
// doesn't queue up a burst of catch-up ticks; it simply loses them.
func (m *Manager) Run(ctx context.Context, tick TickFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	interval := time.Duration(m.intervalMicros) * time.Microsecond

	for cpu := 0; cpu < m.numCPUs; cpu++ {
		cpu := cpu
		limiter := rate.NewLimiter(rate.Every(interval), 1)
		g.Go(func() error {
			for {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				tick(cpu)
			}
		})
	}
	return g.Wait()
}
