package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// WorkerBinName is the default worker executable name.
const WorkerBinName = "pricecheck-worker"

// ResolveWorkerBin returns configured if set, else the worker binary next to
// the running executable, else the one on PATH.
func ResolveWorkerBin(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), WorkerBinName)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(WorkerBinName)
	if err != nil {
		return "", fmt.Errorf("locate worker binary: %w", err)
	}
	return path, nil
}
