package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/pricecheck/api"
	"github.com/use-agent/pricecheck/config"
	"github.com/use-agent/pricecheck/gate"
	"github.com/use-agent/pricecheck/logging"
	"github.com/use-agent/pricecheck/orchestrator"
	"github.com/use-agent/pricecheck/runner"
	"github.com/use-agent/pricecheck/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logging.Setup(cfg.Log, os.Stdout)
	slog.Info("pricecheck starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxConcurrent", cfg.Orchestrator.MaxConcurrent,
		"auth", len(cfg.Auth.APIKeys) > 0,
	)

	// ── 3. Locate the worker ────────────────────────────────────────
	workerBin, err := runner.ResolveWorkerBin(cfg.Orchestrator.WorkerBin)
	if err != nil {
		// Requests will fail with WORKER_UNAVAILABLE until it is installed.
		slog.Warn("worker binary not found", "error", err)
		workerBin = runner.WorkerBinName
	}
	slog.Info("worker binary", "path", workerBin)

	// ── 4. Runner behind the admission gate ─────────────────────────
	g := gate.New(cfg.Orchestrator.MaxConcurrent)
	proc := runner.NewProcess(workerBin, cfg.Orchestrator.DefaultTimeout, cfg.Orchestrator.MaxOutput)
	gated := runner.WithGate(proc, g)

	// ── 5. Orchestrator (+ optional webhook) ────────────────────────
	var opts []orchestrator.Option
	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
		opts = append(opts, orchestrator.WithNotifier(notifier))
		slog.Info("webhook notifications enabled", "url", cfg.Webhook.URL)
	}
	svc := orchestrator.New(gated, cfg.Orchestrator, opts...)

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(svc, g, cfg, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	if notifier != nil {
		notifier.Wait()
	}
	slog.Info("pricecheck stopped")
}
