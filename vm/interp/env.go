package interp

import (
	"context"

	"letin/vm"
	"letin/vm/format"
	"letin/vm/gc"
	"letin/vm/lazy"
	"letin/vm/link"
	"letin/vm/memo"
	"letin/vm/native"
	"letin/vm/sched"
)

// Environment is spec.md §3's process-wide, read-only-after-load mapping
// from function/global-variable index to Function/Value, plus every
// collaborator the interpreter drives: the heap, the lazy-value engine, the
// memoization cache, and the native-call bridge.
type Environment struct {
	Program *link.Program
	Heap    *gc.Heap
	Lazy    *lazy.Engine
	Memo    *memo.Cache
	Native  native.Handler

	nextThreadID int64
}

// NewEnvironment wires a linked Program to its runtime collaborators,
// registering the Environment's own globals and the memo cache as GC root
// sources (spec.md §4.6: "cache entries are GC roots"; §3: Environment's
// global variables are roots).
func NewEnvironment(prog *link.Program, heap *gc.Heap, lazyEngine *lazy.Engine, memoCache *memo.Cache, natives native.Handler) *Environment {
	env := &Environment{Program: prog, Heap: heap, Lazy: lazyEngine, Memo: memoCache, Native: natives}
	heap.RegisterRootSource(env)
	if memoCache != nil {
		heap.RegisterRootSource(memoCache)
	}
	return env
}

// GCRoots implements gc.RootSource for the global-variable table.
func (e *Environment) GCRoots() []vm.Reference {
	roots := make([]vm.Reference, 0, len(e.Program.Globals))
	for _, v := range e.Program.Globals {
		if v.IsRefLike() {
			roots = append(roots, v.R())
		}
	}
	return roots
}

func (e *Environment) functionInfo(funIndex int) format.FunctionInfo {
	if funIndex < 0 || funIndex >= len(e.Program.FunctionInfo) {
		return format.FunctionInfo{}
	}
	return e.Program.FunctionInfo[funIndex]
}

func (e *Environment) function(funIndex int) (format.Function, bool) {
	if funIndex < 0 || funIndex >= len(e.Program.Functions) {
		return format.Function{}, false
	}
	return e.Program.Functions[funIndex], true
}

// Invoke calls a function by index with already-evaluated arguments on a
// fresh thread context of its own, for any caller that is not itself
// already running on a VM thread. It honors the function's lazy/memoizable
// strategy bits (spec.md §4.5, §4.6).
func (e *Environment) Invoke(ctx context.Context, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode) {
	id := e.allocThreadID()
	t := newRunner(e, id)
	defer e.Heap.UnregisterThread(t.thread)
	t.thread.Regs.Fp = int64(funIndex)
	v, code := e.invokeOnThread(ctx, t.thread, funIndex, args)
	t.thread.Regs.Fp = -1
	return v, code
}

// invokeOnThread runs funIndex(args) to completion on an already-running
// thread t, reusing it rather than allocating a synthetic one — this is
// what every nested ICALL/FCALL/RCALL and every vm/lazy.Caller invocation
// goes through, so that spec.md §4.7's "one ThreadContext per logical VM
// thread" holds across arbitrarily deep recursion, and so vm/lazy's
// same-thread reentrancy check (which compares against this stable thread
// ID) can actually detect a recursive force instead of deadlocking on a
// fresh synthetic ID every frame.
func (e *Environment) invokeOnThread(ctx context.Context, t *sched.ThreadContext, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode) {
	fi := e.functionInfo(funIndex)
	run := func(ctx context.Context) (vm.Value, vm.ErrorCode) {
		return (&runner{env: e, thread: t}).call(ctx, funIndex, args)
	}
	if fi.IsMemoizable() && e.Memo != nil {
		return e.Memo.GetOrCompute(ctx, funIndex, args, run)
	}
	return run(ctx)
}

func (e *Environment) allocThreadID() int64 {
	e.nextThreadID++
	return e.nextThreadID
}
