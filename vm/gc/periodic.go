package gc

import (
	"context"
	"time"
)

// RunPeriodic starts the collector's own goroutine, waking on interval and
// calling Collect until ctx is cancelled (spec.md §2: "The GC runs in its
// own thread and periodically stops all mutator threads at safe points to
// trace."). Returns a channel closed once the goroutine has exited, so a
// caller can wait for a clean shutdown.
func (h *Heap) RunPeriodic(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Collect()
			}
		}
	}()
	return done
}
