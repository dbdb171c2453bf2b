package sched

import (
	"sync"

	"letin/vm"
)

// RegisteredRefs is a thread-local registry of RegisteredReferences
// (spec.md §3): "constructing one with a thread context and pointer adds
// it to that thread's scan list; dropping removes it. It is how native
// functions keep intermediate allocations alive across further
// allocations."
//
// The original implements this as an intrusive doubly-linked list so a
// RegisteredReference can unlink itself in O(1) without a lookup. Go has no
// intrusive-list primitive worth fighting the garbage collector for; a
// small id-keyed map gives the same O(1) register/release without unsafe
// tricks, at the cost of one map entry per live registration (negligible
// next to the fact that each entry pins a whole object graph anyway).
type RegisteredRefs struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]vm.Reference
}

func newRegisteredRefs() *RegisteredRefs {
	return &RegisteredRefs{entries: make(map[uint64]vm.Reference)}
}

// Handle is the scoped smart-handle spec.md §3 describes: Release removes
// the reference from the scan list. Calling Release more than once is a
// no-op.
type Handle struct {
	id       uint64
	released bool
	owner    *RegisteredRefs
}

func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.owner.mu.Lock()
	delete(h.owner.entries, h.id)
	h.owner.mu.Unlock()
}

// Register adds ref to the scan list and returns a Handle to release it.
func (r *RegisteredRefs) Register(ref vm.Reference) *Handle {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.entries[id] = ref
	r.mu.Unlock()
	return &Handle{id: id, owner: r}
}

// Snapshot returns every currently-registered reference, for root scanning.
func (r *RegisteredRefs) Snapshot() []vm.Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]vm.Reference, 0, len(r.entries))
	for _, ref := range r.entries {
		out = append(out, ref)
	}
	return out
}
