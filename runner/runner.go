// Package runner spawns automation workers as isolated subprocesses and
// races their completion against a deadline.
package runner

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a worker does not finish before its deadline.
// The worker's process group has been killed by the time it is returned.
var ErrTimeout = errors.New("worker deadline exceeded")

// Invocation describes one worker run.
type Invocation struct {
	// RunID identifies the run in logs on both sides of the process boundary.
	RunID string

	// Env holds per-run overrides layered on top of the inherited environment.
	Env map[string]string

	// Timeout is the run deadline. Zero uses the runner's default.
	Timeout time.Duration
}

// Result holds the output of a worker that ran to completion.
type Result struct {
	RunID     string
	ExitCode  int
	Stdout    []byte // may be truncated
	Stderr    []byte // may be truncated
	Duration  time.Duration
	Truncated bool
}

// Runner executes worker invocations.
type Runner interface {
	Run(ctx context.Context, inv *Invocation) (*Result, error)
}
