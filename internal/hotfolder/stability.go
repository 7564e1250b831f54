package hotfolder

import (
	"context"
	"os"
	"time"
)

// waitStable polls path's size until it has been unchanged for one full
// window, bounded by a generous overall timeout so a file that never
// stops growing doesn't hang a watcher goroutine forever. Returns false
// if path disappeared or never stabilised in time.
func waitStable(ctx context.Context, path string, window time.Duration) bool {
	const maxAttempts = 30
	poll := window / 4
	if poll < 100*time.Millisecond {
		poll = 100 * time.Millisecond
	}

	var lastSize int64 = -1
	stableSince := time.Time{}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}

		fi, err := os.Stat(path)
		if err != nil {
			return false
		}

		if fi.Size() == lastSize {
			if stableSince.IsZero() {
				stableSince = time.Now()
			}
			if time.Since(stableSince) >= window {
				return true
			}
		} else {
			lastSize = fi.Size()
			stableSince = time.Time{}
		}
	}
	return false
}
