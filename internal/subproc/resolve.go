// Package subproc locates the external binaries (Ghostscript, pdftoppm,
// ocrmypdf) the compressor, OCR service and export router shell out to,
// and runs them with a deadline.
package subproc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrNotFound is returned by Resolve when no candidate could be located.
var ErrNotFound = errors.New("subproc: tool not found")

// Resolve returns a runnable path for name. bundledDirs lists directories
// (e.g. a "dependencies" folder shipped beside the executable) searched
// before falling back to exec.LookPath — mirroring the source processor's
// "check a bundled dependencies folder, then PATH" order.
func Resolve(name string, bundledDirs ...string) (string, error) {
	for _, dir := range bundledDirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Run executes path with args, killing the process if it has not
// finished within deadline. stderr/stdout are returned as combined
// output for logging.
func Run(ctx context.Context, deadline time.Duration, path string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, args...)
	out, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("subproc: %s timed out after %s", filepath.Base(path), deadline)
	}
	return out, err
}
