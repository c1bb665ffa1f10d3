// Package orchestrator turns trigger requests into worker runs and maps
// their outcome to a reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/pricecheck/config"
	"github.com/use-agent/pricecheck/models"
	"github.com/use-agent/pricecheck/runner"
)

// skippedMessage explains a run=false reply.
const skippedMessage = "run flag not set; automation skipped"

const maxDuration = time.Duration(1<<63 - 1)

// Notifier is told about every run that reached the worker stage. err is
// the run's error, nil on success.
type Notifier interface {
	Notify(resp *models.AutomateResponse, err error)
}

// Service dispatches worker runs. It is safe for concurrent use.
type Service struct {
	runner   runner.Runner
	cfg      config.OrchestratorConfig
	notifier Notifier
	newRunID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier reports completed runs to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithRunIDs replaces the run ID generator.
func WithRunIDs(gen func() string) Option {
	return func(s *Service) { s.newRunID = gen }
}

// New creates a Service. r is expected to be gated (see runner.WithGate).
func New(r runner.Runner, cfg config.OrchestratorConfig, opts ...Option) *Service {
	s := &Service{
		runner:   r,
		cfg:      cfg,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Automate handles one trigger request.
//
// Flow:
//  1. run=false → skipped, nothing dispatched.
//  2. Build the invocation (run ID, item override, clamped timeout).
//  3. Run the worker through the runner (gate + deadline).
//  4. Classify stdout/stderr/exit code into a reply.
//
// Failures are returned as *models.AutomationError carrying the reply body.
func (s *Service) Automate(ctx context.Context, req *models.TriggerRequest) (*models.AutomateResponse, error) {
	// ── 1. Dispatch gate ────────────────────────────────────────────
	if !req.Run {
		return &models.AutomateResponse{
			Status:  models.StatusSkipped,
			Message: skippedMessage,
		}, nil
	}

	// ── 2. Invocation ───────────────────────────────────────────────
	runID := s.newRunID()
	timeout := s.timeoutFor(req)
	inv := &runner.Invocation{
		RunID:   runID,
		Env:     map[string]string{config.RunIDEnv: runID},
		Timeout: timeout,
	}
	if item := strings.TrimSpace(req.Item); item != "" {
		inv.Env[config.ItemEnv] = item
	}

	slog.Info("automation dispatched",
		"run_id", runID, "item", req.Item, "timeout", timeout)

	// ── 3. Run ──────────────────────────────────────────────────────
	res, err := s.runner.Run(ctx, inv)
	if err != nil {
		aerr := runFailure(err, runID, timeout)
		slog.Error("automation failed",
			"run_id", runID, "code", aerr.Code, "error", err)
		s.notify(aerr.Response, aerr)
		return nil, aerr
	}
	if res.Truncated {
		slog.Warn("worker output truncated", "run_id", runID)
	}

	// ── 4. Classify ─────────────────────────────────────────────────
	resp, err := Classify(res)
	if err != nil {
		var aerr *models.AutomationError
		if errors.As(err, &aerr) {
			slog.Warn("worker reported failure",
				"run_id", runID, "exit_code", res.ExitCode, "message", aerr.Message)
			s.notify(aerr.Response, aerr)
		}
		return nil, err
	}

	slog.Info("automation completed",
		"run_id", runID, "status", resp.Status, "duration_ms", resp.DurationMs)
	s.notify(resp, nil)
	return resp, nil
}

// timeoutFor returns the request's timeout clamped to the configured max,
// or the default when the request sets none.
func (s *Service) timeoutFor(req *models.TriggerRequest) time.Duration {
	if req.Timeout <= 0 {
		return s.cfg.DefaultTimeout
	}
	// Compare in seconds so huge values cannot overflow the Duration.
	if s.cfg.MaxTimeout > 0 && int64(req.Timeout) > int64(s.cfg.MaxTimeout/time.Second) {
		return s.cfg.MaxTimeout
	}
	if int64(req.Timeout) > int64(maxDuration/time.Second) {
		return maxDuration
	}
	return time.Duration(req.Timeout) * time.Second
}

func (s *Service) notify(resp *models.AutomateResponse, err error) {
	if s.notifier != nil && resp != nil {
		s.notifier.Notify(resp, err)
	}
}

// runFailure converts a runner error into a typed error.
func runFailure(err error, runID string, timeout time.Duration) *models.AutomationError {
	var aerr *models.AutomationError
	switch {
	case errors.Is(err, runner.ErrTimeout):
		aerr = models.NewAutomationError(models.ErrCodeTimeout,
			fmt.Sprintf("Automation timed out after %ds", int64(timeout/time.Second)), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		aerr = models.NewAutomationError(models.ErrCodeInternal, "request canceled", err)
	default:
		aerr = models.NewAutomationError(models.ErrCodeWorkerUnavailable,
			"failed to start automation worker", err)
	}
	aerr.Response.RunID = runID
	return aerr
}
