package gc

import (
	"context"
	"testing"
	"time"
)

func TestRunPeriodicCollectsAndStopsOnCancel(t *testing.T) {
	h := NewHeap(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := h.RunPeriodic(ctx, 10*time.Millisecond)

	deadline := time.After(time.Second)
	for h.Stats().Collections == 0 {
		select {
		case <-deadline:
			t.Fatalf("RunPeriodic never ran a collection within 1s")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("RunPeriodic's goroutine did not exit after context cancellation")
	}
}
