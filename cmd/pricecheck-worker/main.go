// Command pricecheck-worker signs in to the storefront, looks up one item's
// price and prints the result as a single JSON object on stdout. Logs go to
// stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/pricecheck/config"
	"github.com/use-agent/pricecheck/logging"
	"github.com/use-agent/pricecheck/models"
	"github.com/use-agent/pricecheck/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadWorker()
	logging.Setup(cfg.Log, os.Stderr)
	if err != nil {
		slog.Error("invalid worker configuration", "error", err)
		emit(models.NewFailure("Invalid configuration: " + err.Error()))
		return worker.ExitEnvironment
	}
	slog.Info("worker starting",
		"run_id", cfg.RunID,
		"item", cfg.Item,
		"url", cfg.Site.URL,
		"headless", cfg.Browser.Headless,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, code := worker.New(cfg).Run(ctx)
	emit(res)
	return code
}

// emit writes res as one line of JSON on stdout.
func emit(res *models.WorkerResult) {
	out, err := json.Marshal(res)
	if err != nil {
		out = []byte(`{"status":"error","message":"Unexpected error: result not serialisable"}`)
	}
	fmt.Fprintln(os.Stdout, string(out))
}
