// Package worker performs one price lookup in a browser and reports a
// models.WorkerResult.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/use-agent/pricecheck/artifacts"
	"github.com/use-agent/pricecheck/catalog"
	"github.com/use-agent/pricecheck/config"
	"github.com/use-agent/pricecheck/models"
)

// Process exit codes.
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitEnvironment = 2
)

// ArtifactSaver persists failure captures.
type ArtifactSaver interface {
	Save(reason string, snap artifacts.Snapshot) (map[string]string, error)
}

// Worker runs a single lookup. It is not reused across runs.
type Worker struct {
	cfg    *config.WorkerConfig
	launch Launcher
	saver  ArtifactSaver
	log    *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithLauncher replaces the browser launcher.
func WithLauncher(l Launcher) Option {
	return func(w *Worker) { w.launch = l }
}

// WithArtifactSaver replaces the artifact writer.
func WithArtifactSaver(s ArtifactSaver) Option {
	return func(w *Worker) { w.saver = s }
}

// WithLogger replaces the worker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.log = l }
}

// New creates a Worker for cfg. It launches Chromium through go-rod unless
// WithLauncher says otherwise.
func New(cfg *config.WorkerConfig, opts ...Option) *Worker {
	w := &Worker{
		cfg:    cfg,
		launch: LaunchRod,
		log:    slog.Default().With("run_id", cfg.RunID, "item", cfg.Item),
	}
	if cfg.Artifacts.Enabled {
		w.saver = artifacts.NewWriter(cfg.Artifacts.Dir, cfg.Artifacts.Markdown)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs the lookup and returns its result with the process exit code.
// The browser is closed before Run returns, whatever the outcome.
func (w *Worker) Run(ctx context.Context) (res *models.WorkerResult, exitCode int) {
	defer func() {
		if v := recover(); v != nil {
			w.log.Error("worker panicked", "panic", v, "stack", string(debug.Stack()))
			res, exitCode = models.NewFailure(fmt.Sprintf("Unexpected error: %v", v)), ExitError
		}
	}()

	browser, err := w.launch(w.cfg.Browser)
	if err != nil {
		w.log.Error("browser unavailable", "error", err)
		return models.NewFailure("Browser unavailable: " + err.Error()), ExitEnvironment
	}
	defer func() {
		if err := browser.Close(); err != nil {
			w.log.Warn("browser close failed", "error", err)
		}
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		w.log.Error("page unavailable", "error", err)
		return models.NewFailure("Browser unavailable: " + err.Error()), ExitEnvironment
	}

	price, err := w.safeLookup(ctx, page)
	if err == nil {
		w.log.Info("price found", "price", price)
		return models.NewSuccess(w.cfg.Item, price), ExitSuccess
	}

	var se *StepError
	if !errors.As(err, &se) {
		se = stepErr(ReasonUnexpected, "Unexpected error: "+err.Error(), err)
	}
	w.log.Warn("lookup failed", "reason", se.Reason, "error", se)

	if se.Reason == ReasonFindItem {
		w.logCatalog(ctx, page)
	}

	res = models.NewFailure(se.Message)
	res.Artifacts = w.capture(ctx, page, se.Reason)
	return res, ExitError
}

// safeLookup runs lookup, turning a panic into a StepError.
func (w *Worker) safeLookup(ctx context.Context, page Page) (price string, err error) {
	defer func() {
		if v := recover(); v != nil {
			w.log.Error("lookup panicked", "panic", v, "stack", string(debug.Stack()))
			err = stepErr(ReasonUnexpected, fmt.Sprintf("Unexpected error: %v", v), nil)
		}
	}()
	return w.lookup(ctx, page)
}

// capture saves a screenshot and the page markup under a fresh deadline.
// Failures are logged and never replace the step error.
func (w *Worker) capture(ctx context.Context, page Page, reason string) (paths map[string]string) {
	if w.saver == nil {
		return nil
	}
	defer func() {
		if v := recover(); v != nil {
			w.log.Error("artifact capture panicked", "panic", v)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.Timeouts.Capture)
	defer cancel()

	var snap artifacts.Snapshot
	var err error
	if snap.Screenshot, err = page.Screenshot(ctx); err != nil {
		w.log.Warn("screenshot failed", "error", err)
	}
	if snap.HTML, err = page.HTML(ctx); err != nil {
		w.log.Warn("page markup unavailable", "error", err)
	}
	snap.URL = page.URL()

	paths, err = w.saver.Save(reason, snap)
	if err != nil {
		w.log.Warn("artifact write failed", "error", err)
	}
	if len(paths) == 0 {
		return nil
	}
	w.log.Info("artifacts saved", "reason", reason, "paths", paths)
	return paths
}

// logCatalog logs the products on the page to help diagnose a miss.
func (w *Worker) logCatalog(ctx context.Context, page Page) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.Timeouts.Capture)
	defer cancel()

	markup, err := page.HTML(ctx)
	if err != nil {
		return
	}
	products, err := catalog.ParseString(markup)
	if err != nil {
		w.log.Debug("catalog parse failed", "error", err)
		return
	}
	w.log.Info("available products", "count", len(products), "names", catalog.Names(products))

	// The live search gave up, yet the final markup lists the item: it
	// rendered after the item timeout.
	if p, ok := catalog.Find(products, w.cfg.Item); ok {
		w.log.Warn("item rendered after lookup timeout", "product", p.Name, "price", p.Price)
	}
}
