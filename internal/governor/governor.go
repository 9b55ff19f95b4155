// Package governor serializes outbound calls to the destination tracker and
// enforces a minimum interval between consecutive dispatches.
package governor

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type job struct {
	ctx    context.Context
	fn     func() error
	result chan error
}

// Governor runs queued calls strictly in FIFO order, one in flight at a time.
// The interval floor is measured between dispatches, not between a call's
// return and the next dispatch.
type Governor struct {
	limiter *rate.Limiter
	jobs    chan job
	drained chan struct{}
}

// New creates a governor with the given minimum inter-dispatch interval. An
// interval of zero disables the spacing but calls are still serialized.
func New(interval time.Duration) *Governor {
	g := &Governor{
		jobs:    make(chan job, 64),
		drained: make(chan struct{}),
	}
	if interval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	go g.dispatch()
	return g
}

func (g *Governor) dispatch() {
	defer close(g.drained)
	for j := range g.jobs {
		if g.limiter != nil {
			if err := g.limiter.Wait(j.ctx); err != nil {
				j.result <- err
				continue
			}
		}
		j.result <- j.fn()
	}
}

// Do enqueues fn and blocks until it has run, returning fn's own error. The
// governor never alters the outcome of a call, only its timing and ordering.
func (g *Governor) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	g.jobs <- job{ctx: ctx, fn: fn, result: result}
	return <-result
}

// Close stops accepting calls and waits for the queue to drain.
func (g *Governor) Close() {
	close(g.jobs)
	<-g.drained
}
