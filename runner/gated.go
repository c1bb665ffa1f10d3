package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/pricecheck/gate"
)

// Gated runs invocations through an admission gate: acquire a slot, run the
// inner runner (which races completion against the deadline), release the
// slot. The slot is released on every path, including panics.
type Gated struct {
	gate  *gate.Gate
	inner Runner
}

// WithGate wraps inner so that at most g.Capacity() invocations run at once.
func WithGate(inner Runner, g *gate.Gate) *Gated {
	return &Gated{gate: g, inner: inner}
}

// Run queues for a slot, then delegates to the inner runner. Queueing time
// does not count against the invocation timeout.
func (r *Gated) Run(ctx context.Context, inv *Invocation) (*Result, error) {
	var (
		res    *Result
		runErr error
	)
	queued := time.Now()
	err := r.gate.Do(ctx, func(ctx context.Context) error {
		slog.Debug("worker slot acquired",
			"run_id", inv.RunID, "queued", time.Since(queued))
		res, runErr = r.inner.Run(ctx, inv)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Gate exposes the underlying gate for health reporting.
func (r *Gated) Gate() *gate.Gate { return r.gate }
