package gc

import (
	"time"

	"letin/vm"
)

// ThreadHandle is the collector's view of a running ThreadContext
// (vm/sched.ThreadContext implements it). It never imports vm/sched, to
// keep gc -> sched a one-way dependency (sched.ThreadContext holds a
// *Heap, not the other way around).
//
// This is the portable substitute for original_source's
// thread_stop_cont.cpp, which relies on POSIX signals to suspend an
// arbitrary OS thread. Go cannot suspend a goroutine from outside; instead
// each ThreadHandle cooperatively parks itself the next time its
// interpreter loop reaches a safepoint, unless it reports itself
// "frozen" (inside an InterruptibleFunctionAround scope, or holding a
// lazy-value mutex) in which case the collector uses its last safely
// published root snapshot without waiting — exactly spec.md §5's "if its
// interruptible flag is set, skips stopping it" rule, generalized to cover
// the lazy-mutex case spec.md §4.5 also calls out.
type ThreadHandle interface {
	// RequestStop asks the thread to park at its next safepoint.
	RequestStop()
	// AwaitStopped blocks until the thread has parked, OR returns
	// immediately with frozen=true if the thread is currently
	// non-suspendable (interruptible scope or holding a lazy mutex) —
	// in which case Roots() must return a snapshot safe to trace without
	// further synchronization.
	AwaitStopped() (frozen bool)
	// Roots returns every Reference this thread's root set currently
	// holds (stack up to sec, expression stack up to esec, registered
	// references, rv/tmp registers — spec.md §4.7).
	Roots() []vm.Reference
	// Resume un-parks a previously stopped thread.
	Resume()
}

// Collect runs one full stop-the-world mark-sweep cycle: request-stop
// every registered thread, mark from every root (threads, globals, memo
// cache), sweep the live set, resume. Safe to call concurrently with
// itself (serialized by collectMu) and with allocation (NewObject may
// trigger it directly).
func (h *Heap) Collect() {
	h.collectMu.Lock()
	defer h.collectMu.Unlock()
	start := time.Now()

	h.threadsMu.Lock()
	threads := append([]ThreadHandle(nil), h.threads...)
	roots := append([]RootSource(nil), h.roots...)
	h.threadsMu.Unlock()

	for _, t := range threads {
		t.RequestStop()
	}
	// Only threads that actually stopped (not frozen-interruptible or
	// frozen-lazy-locked) need Resume() once tracing finishes.
	stopped := make([]ThreadHandle, 0, len(threads))
	for _, t := range threads {
		if frozen := t.AwaitStopped(); !frozen {
			stopped = append(stopped, t)
		}
	}

	marked := make(map[*vm.Object]bool)
	var walk func(vm.Reference)
	walk = func(r vm.Reference) {
		if r.HasNil() {
			return
		}
		o := r.Ptr
		if marked[o] {
			return
		}
		marked[o] = true
		for _, child := range o.Children() {
			walk(child)
		}
	}

	for _, t := range threads {
		for _, r := range t.Roots() {
			walk(r)
		}
	}
	for _, rs := range roots {
		for _, r := range rs.GCRoots() {
			walk(r)
		}
	}

	h.mu.Lock()
	var freedBytes uint64
	for obj, size := range h.live {
		if obj.Immortal {
			continue
		}
		if !marked[obj] {
			delete(h.live, obj)
			freedBytes += size
		}
	}
	if h.liveBytes >= freedBytes {
		h.liveBytes -= freedBytes
	} else {
		h.liveBytes = 0
	}
	h.stats.Collections++
	pause := time.Since(start).Nanoseconds()
	h.stats.LastPauseNS = pause
	h.stats.TotalPauseNS += pause
	h.mu.Unlock()

	for _, t := range stopped {
		t.Resume()
	}
}
