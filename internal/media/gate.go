package media

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of extraction subprocesses running at once.
//
// A Gate built with a limit of zero or less admits everything and only counts.
type Gate struct {
	sem    *semaphore.Weighted
	limit  int
	active atomic.Int64
}

// NewGate returns a Gate admitting at most limit concurrent holders.
func NewGate(limit int) *Gate {
	g := &Gate{limit: limit}
	if limit > 0 {
		g.sem = semaphore.NewWeighted(int64(limit))
	}
	return g
}

// Acquire waits for a slot or for ctx to be done. The returned release func is idempotent.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	g.active.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.active.Add(-1)
			if g.sem != nil {
				g.sem.Release(1)
			}
		})
	}, nil
}

// Active returns the number of current holders.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// Limit returns the configured ceiling, zero meaning unlimited.
func (g *Gate) Limit() int {
	if g.limit < 0 {
		return 0
	}
	return g.limit
}
