// Package lazy implements spec.md §4.5's lazy-value engine: thunk
// creation, per-thunk locking, and forcing, rate-limited by a process-wide
// semaphore so mass-forcing can't pathologically block the collector.
//
// Grounded in original_source/include/letin/vm.hpp's LazyValueMutex
// (thread-local locked-mutex-count bookkeeping, used here to detect
// same-thread reentrancy) and spec.md §4.5's description of the global
// lock count. The rate-limiting semaphore is golang.org/x/sync/semaphore,
// the same package the teacher's go.mod already carries transitively for
// the toolchain's own concurrency control (SPEC_FULL.md §10).
package lazy

import (
	"context"

	"golang.org/x/sync/semaphore"

	"letin/vm"
)

// ErrReentrantForce is returned (as vm.ErrException, per spec.md §4.5: "...
// surfaces EXCEPTION") when the same thread tries to force a thunk it is
// already in the middle of forcing.
var ErrReentrantForce = vm.ErrException

// Caller invokes a function index with the given arguments — the captured
// call a thunk wraps. The interpreter supplies this; vm/lazy only owns the
// force protocol around it.
type Caller func(ctx context.Context, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode)

// InterruptibleMarker lets Force tell the collector "this thread holds a
// thunk mutex, don't try to stop it" for the duration of the captured
// call — spec.md §4.5: "GC cannot stop a thread while the thread holds any
// thunk mutex". This reuses exactly the same interruptible-scope mechanism
// native.InterruptibleFunctionAround uses for blocking syscalls, since both
// describe the identical "frozen, untraceable-until-released" window.
type InterruptibleMarker interface {
	EnterInterruptible()
	ExitInterruptible()
}

// Engine owns the global thunk-mutex semaphore shared by every thread in a
// process (spec.md §4.5: "lazy_value_mutex_sem").
type Engine struct {
	sem *semaphore.Weighted
}

// NewEngine builds an Engine whose semaphore admits at most maxConcurrent
// threads holding a thunk mutex at once.
func NewEngine(maxConcurrent int64) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Engine{sem: semaphore.NewWeighted(maxConcurrent)}
}

// NewThunk builds a fresh LAZY_VALUE object's payload for an eager call
// site compiled under a lazy evaluation strategy (spec.md §4.5:
// "Creation"). The caller (vm/interp) still has to wrap the returned state
// in a vm.Object of type ObjLazyValue via the heap allocator — construction
// always goes through the allocator, not ad hoc struct literals, per
// spec.md §4.3.
func NewThunk(valueType vm.Tag, mustBeShared bool, funIndex int, args []vm.Value) *vm.LazyState {
	return &vm.LazyState{
		ValueType:    valueType,
		MustBeShared: mustBeShared,
		FunIndex:     funIndex,
		Args:         append([]vm.Value(nil), args...),
	}
}

// Force resolves a thunk to its payload, per spec.md §4.5's protocol:
//
//  1. Fast path: if already resolved, return the stored value without
//     touching the mutex or semaphore at all.
//  2. Reentrancy check: a thread forcing a thunk it is already computing
//     gets EXCEPTION rather than deadlocking on its own per-thunk mutex.
//  3. Acquire the global semaphore, then the per-thunk mutex, recheck
//     "already resolved" (another thread may have finished while this one
//     waited), call the captured function, store the result, release both.
//
// threadID identifies the calling ThreadContext for the reentrancy check
// (vm/sched assigns each thread a stable int64 id).
func (e *Engine) Force(ctx context.Context, obj *vm.Object, threadID int64, marker InterruptibleMarker, call Caller) (vm.Value, vm.ErrorCode) {
	ls := obj.Lazy
	if ls == nil {
		return vm.ErrorValue(), vm.ErrIncorrectObject
	}

	ls.State.Lock()
	if ls.Resolved {
		v := ls.Value
		ls.State.Unlock()
		return v, vm.Success
	}
	if ls.HasComputingBy && ls.ComputingBy == threadID {
		ls.State.Unlock()
		return vm.ErrorValue(), ErrReentrantForce
	}
	ls.State.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return vm.ErrorValue(), vm.ErrException
	}
	defer e.sem.Release(1)

	marker.EnterInterruptible()
	defer marker.ExitInterruptible()

	ls.Mu.Lock()
	defer ls.Mu.Unlock()

	ls.State.Lock()
	if ls.Resolved {
		v := ls.Value
		ls.State.Unlock()
		return v, vm.Success
	}
	ls.ComputingBy = threadID
	ls.HasComputingBy = true
	ls.State.Unlock()

	result, code := call(ctx, ls.FunIndex, ls.Args)

	ls.State.Lock()
	ls.HasComputingBy = false
	if code == vm.Success {
		ls.Resolved = true
		ls.Value = result
	}
	ls.State.Unlock()

	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	return result, vm.Success
}

// DeepForce additionally recurses into tuple-referenced lazy cells
// (spec.md §4.5: "A fully-forced variant additionally recurses into
// tuple-referenced cells"). It is used by opcodes/native calls that must
// hand a fully-concrete value to foreign code (e.g. printing, hashing in
// vm/memo's canonicalization).
func (e *Engine) DeepForce(ctx context.Context, v vm.Value, threadID int64, marker InterruptibleMarker, call Caller) (vm.Value, vm.ErrorCode) {
	if v.Tag.IsLazy() {
		r := v.R()
		if r.HasNil() {
			return vm.ErrorValue(), vm.ErrIncorrectValue
		}
		resolved, code := e.Force(ctx, r.Ptr, threadID, marker, call)
		if code != vm.Success {
			return vm.ErrorValue(), code
		}
		return e.DeepForce(ctx, resolved, threadID, marker, call)
	}
	if v.IsRef() {
		obj := v.R().Ptr
		if obj != nil && obj.Type.Base() == vm.ObjTuple {
			for i, e2 := range obj.Tuple {
				if e2.Type != vm.TagRef {
					continue
				}
				forced, code := e.DeepForce(ctx, vm.RefValue(e2.R), threadID, marker, call)
				if code != vm.Success {
					return vm.ErrorValue(), code
				}
				if tupElem, ok := vm.TupleElemFromValue(forced); ok {
					obj.Tuple[i] = tupElem
					obj.TupleTypes[i] = tupElem.Type
				}
			}
		}
	}
	return v, vm.Success
}
