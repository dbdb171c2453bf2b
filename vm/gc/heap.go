// Package gc implements spec.md §4's "Allocator + tracing GC" component: a
// stop-the-world mark-sweep collector with safe publication of references,
// built on top of Go's own memory manager rather than reimplementing manual
// allocation. original_source/vm/impl_gc_base.cpp walks roots and sweeps a
// free-list it owns directly, because C++ has no host GC underneath it; Go
// already has one, so this Heap's job is the VM-level bookkeeping spec.md
// actually tests (reachable-object counts, thread-stop coordination, root
// registration, immortal objects) while letting Go reclaim the backing
// memory once this package's own live-set drops the last reference —
// recorded as an explicit Open Question resolution in DESIGN.md.
package gc

import (
	"sync"

	"letin/vm"
)

// Config tunes the allocator and collector, following the teacher's
// Main(arch, cfg)-style plain config struct rather than a config-file
// library (SPEC_FULL.md §9).
type Config struct {
	// MaxHeapBytes bounds the live-object byte estimate before NewObject
	// starts failing with ErrOutOfMemory.
	MaxHeapBytes uint64
	// CollectThresholdBytes triggers a collection inside NewObject once the
	// estimated live bytes plus the new object's size cross this mark.
	CollectThresholdBytes uint64
}

func DefaultConfig() Config {
	return Config{
		MaxHeapBytes:          1 << 32,
		CollectThresholdBytes: 1 << 24,
	}
}

// RootSource is anything the collector must trace roots from besides
// registered ThreadHandles: global variables (the Environment) and the
// memoization cache (spec.md §4.6: "Cache entries are GC roots").
type RootSource interface {
	GCRoots() []vm.Reference
}

// Heap is the process-wide allocator and collector. One Heap is shared by
// every ThreadContext (spec.md §2: "all threads share the heap owned by
// the GC").
type Heap struct {
	cfg Config

	mu        sync.Mutex // guards live and stats during sweep/alloc bookkeeping
	live      map[*vm.Object]uint64 // object -> its estimated byte size
	liveBytes uint64

	threadsMu sync.Mutex
	threads   []ThreadHandle
	roots     []RootSource

	collectMu sync.Mutex // serializes Collect() calls

	stats Stats
}

func NewHeap(cfg Config) *Heap {
	return &Heap{cfg: cfg, live: make(map[*vm.Object]uint64)}
}

// RegisterThread adds a thread to the set the collector stops before
// tracing. Unregister removes it (thread exit, fp == -1 per spec.md §4.7).
func (h *Heap) RegisterThread(t ThreadHandle) {
	h.threadsMu.Lock()
	defer h.threadsMu.Unlock()
	h.threads = append(h.threads, t)
}

func (h *Heap) UnregisterThread(t ThreadHandle) {
	h.threadsMu.Lock()
	defer h.threadsMu.Unlock()
	for i, x := range h.threads {
		if x == t {
			h.threads = append(h.threads[:i], h.threads[i+1:]...)
			return
		}
	}
}

// RegisterRootSource adds a non-thread root provider (global variables,
// memoization cache).
func (h *Heap) RegisterRootSource(r RootSource) {
	h.threadsMu.Lock()
	defer h.threadsMu.Unlock()
	h.roots = append(h.roots, r)
}

// NewObject is the sole allocator spec.md §4.3 requires every construction
// to pass through. It estimates the object's footprint, triggers a
// collection if the live-byte estimate crosses the configured threshold,
// and fails with ErrOutOfMemory if the estimate still exceeds MaxHeapBytes
// after collecting.
func (h *Heap) NewObject(objType vm.ObjType, length uint32) (*vm.Object, vm.ErrorCode) {
	size := estimateSize(objType, length)

	h.mu.Lock()
	shouldCollect := h.liveBytes+size > h.cfg.CollectThresholdBytes
	h.mu.Unlock()
	if shouldCollect {
		h.Collect()
	}

	h.mu.Lock()
	if h.liveBytes+size > h.cfg.MaxHeapBytes {
		h.mu.Unlock()
		return nil, vm.ErrOutOfMemory
	}
	h.mu.Unlock()

	obj := allocate(objType, length)

	h.mu.Lock()
	h.live[obj] = size
	h.liveBytes += size
	h.stats.Allocations++
	h.mu.Unlock()
	return obj, vm.Success
}

// NewImmortalObject is used only by vm/link when materializing data-section
// objects for globals: it is never tracked in the sweepable live set and
// never counted against MaxHeapBytes, matching spec.md §4.2 ("Objects
// constructed here are marked immortal").
func (h *Heap) NewImmortalObject(objType vm.ObjType, length uint32) *vm.Object {
	obj := allocate(objType, length)
	obj.Immortal = true
	return obj
}

func allocate(objType vm.ObjType, length uint32) *vm.Object {
	o := &vm.Object{Type: objType, Length: length}
	switch objType.Base() {
	case vm.ObjIArray8:
		o.I8 = make([]int8, length)
	case vm.ObjIArray16:
		o.I16 = make([]int16, length)
	case vm.ObjIArray32:
		o.I32 = make([]int32, length)
	case vm.ObjIArray64:
		o.I64 = make([]int64, length)
	case vm.ObjSFArray:
		o.SF = make([]float32, length)
	case vm.ObjDFArray:
		o.DF = make([]float64, length)
	case vm.ObjRArray:
		o.R = make([]vm.Reference, length)
		for i := range o.R {
			o.R[i] = vm.NilReference()
		}
	case vm.ObjTuple:
		o.Tuple = make([]vm.TupleElem, length)
		o.TupleTypes = make([]vm.Tag, length)
	case vm.ObjIO:
		// no payload: a bare token
	case vm.ObjLazyValue:
		o.Lazy = &vm.LazyState{}
	case vm.ObjNative:
		o.Native = &vm.NativeObject{}
	}
	return o
}

func estimateSize(objType vm.ObjType, length uint32) uint64 {
	const header = 16
	return header + uint64(length)*uint64(elemByteSize(objType))
}

func elemByteSize(objType vm.ObjType) uint64 {
	switch objType.Base() {
	case vm.ObjIArray8:
		return 1
	case vm.ObjIArray16:
		return 2
	case vm.ObjIArray32, vm.ObjSFArray:
		return 4
	case vm.ObjIArray64, vm.ObjDFArray:
		return 8
	case vm.ObjRArray:
		return 8
	case vm.ObjTuple:
		return 9 // payload cell + type byte, amortized
	default:
		return 0
	}
}

// LiveObjectCount reports the number of tracked (non-immortal) objects:
// those the last completed collection found reachable plus any allocated
// since — the heap probe spec.md §8 scenario 6 exercises.
func (h *Heap) LiveObjectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.LiveBytes = h.liveBytes
	s.LiveObjects = uint64(len(h.live))
	return s
}

// Stats are the counters vm/diag turns into a pprof profile.
type Stats struct {
	Allocations  uint64
	Collections  uint64
	LiveObjects  uint64
	LiveBytes    uint64
	LastPauseNS  int64
	TotalPauseNS int64
}
