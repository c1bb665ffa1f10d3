package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Process runs the worker binary as a child process. It is safe for
// concurrent use; each Run spawns its own process.
type Process struct {
	Bin            string
	DefaultTimeout time.Duration
	MaxOutput      int // bytes per stream

	// WaitDelay bounds how long Run waits for output pipes to close after
	// the process has been killed.
	WaitDelay time.Duration
}

// NewProcess creates a Process for the given worker binary.
func NewProcess(bin string, defaultTimeout time.Duration, maxOutput int) *Process {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if maxOutput <= 0 {
		maxOutput = 1 << 20
	}
	return &Process{
		Bin:            bin,
		DefaultTimeout: defaultTimeout,
		MaxOutput:      maxOutput,
		WaitDelay:      2 * time.Second,
	}
}

// Run spawns the worker with no arguments, waits for it up to the deadline
// and returns its exit code and captured streams.
//
// A nonzero exit code is not an error. Errors are returned only when the
// process could not be started (wrapped exec error), missed its deadline
// (ErrTimeout) or ctx was cancelled (ctx.Err()). In the last two cases the
// whole process group is killed and partial output is discarded.
func (p *Process) Run(ctx context.Context, inv *Invocation) (*Result, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = p.DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.Bin)
	cmd.Env = mergeEnv(os.Environ(), inv.Env)
	cmd.WaitDelay = p.WaitDelay
	isolate(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitWriter{buf: &stdout, limit: p.MaxOutput}
	cmd.Stderr = &limitWriter{buf: &stderr, limit: p.MaxOutput}

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			slog.Warn("worker killed after deadline",
				"run_id", inv.RunID, "timeout", timeout, "elapsed", elapsed)
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Binary not found or other exec error.
			return nil, fmt.Errorf("executing %s: %w", p.Bin, runErr)
		}
	}

	return &Result{
		RunID:     inv.RunID,
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Duration:  elapsed,
		Truncated: stdout.Len() >= p.MaxOutput || stderr.Len() >= p.MaxOutput,
	}, nil
}

// mergeEnv appends overrides to base. exec keeps the last value of a
// duplicated key, so overrides win.
func mergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	env = append(env, base...)
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
