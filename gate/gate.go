// Package gate bounds the number of concurrently running worker invocations.
package gate

import (
	"context"
	"sync/atomic"

	"github.com/use-agent/pricecheck/models"
	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission gate. Callers beyond capacity queue until a
// slot frees or their context ends. It is safe for concurrent use.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
	waiting  atomic.Int64
	admitted atomic.Uint64
}

// New creates a Gate with the given capacity (minimum 1).
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with exactly one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return err
	}
	g.inFlight.Add(1)
	g.admitted.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released when fn returns or
// panics.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn(ctx)
}

// Capacity returns the configured slot count.
func (g *Gate) Capacity() int { return g.capacity }

// Stats returns a snapshot of gate usage.
func (g *Gate) Stats() models.GateStats {
	return models.GateStats{
		Capacity: g.capacity,
		InFlight: int(g.inFlight.Load()),
		Waiting:  int(g.waiting.Load()),
		Admitted: g.admitted.Load(),
	}
}
