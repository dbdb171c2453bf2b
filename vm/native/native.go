// Package native implements spec.md §4.8's native-call bridge: dispatch to
// external NativeFunctionHandlers with safe argument marshalling, handler
// composition via index-range offsetting, and the InterruptibleFunctionAround
// contract a long-running syscall wrapper uses to tell the collector "don't
// try to stop me, I can't reach a safepoint right now".
//
// Grounded in original_source/include/letin/vm.hpp's NativeFunctionHandler/
// MultiNativeFunctionHandler and nlib/posix/native_lib.cpp's registration
// pattern (a library exposes a contiguous native-function index range and a
// name table); vm/nativeposix is the one concrete Handler this repo ships,
// in the spirit of that file but deliberately not a full POSIX wrapper set
// (spec.md's Non-goals).
package native

import (
	"context"

	"letin/vm"
)

// ReturnValue is the native function interface's wire-level result
// (spec.md §6): "(i64, f64, ref, error_code)". vm/interp converts it to a
// vm.Value of the opcode's expected type (INCALL wants I, FNCALL wants F,
// RNCALL wants R) after checking Error == Success.
type ReturnValue struct {
	I     int64
	F     float64
	R     vm.Reference
	Error vm.ErrorCode
}

func (r ReturnValue) IntValue() vm.Value   { return vm.IntValue(r.I) }
func (r ReturnValue) FloatValue() vm.Value { return vm.FloatValue(r.F) }
func (r ReturnValue) RefValue() vm.Value   { return vm.RefValue(r.R) }

// Handler is spec.md §4.8 / §6's NativeFunctionHandler: min/max_index,
// name(nfi), invoke(vm, ctx, nfi, args).
type Handler interface {
	MinIndex() int
	MaxIndex() int
	// Name returns the symbolic name of native function nfi, or ok=false
	// if nfi is out of this handler's range or anonymous.
	Name(nfi int) (name string, ok bool)
	// Invoke dispatches native function nfi with the given arguments.
	// ctx carries cancellation/deadline for the call; vctx is the calling
	// thread's bridge-facing context (RegisteredReference registration,
	// interruptible-scope marking).
	Invoke(ctx context.Context, vctx VMContext, nfi int, args []vm.Value) ReturnValue
}

// VMContext is the thread-facing surface a native function is handed: it
// can keep intermediate allocations alive across further allocations via
// RegisterRef (spec.md §3's RegisteredReference), and must bracket a
// blocking syscall in InterruptibleFunctionAround so the collector skips
// trying to stop this thread while it is blocked outside the VM.
type VMContext interface {
	// RegisterRef pins ref in this thread's GC root list until the
	// returned func is called.
	RegisterRef(ref vm.Reference) (release func())
	// ThreadID identifies the calling thread, e.g. for vm/lazy's
	// reentrancy check if a native function itself forces a thunk.
	ThreadID() int64
	// EnterInterruptible / ExitInterruptible bracket a blocking syscall;
	// see InterruptibleFunctionAround below.
	EnterInterruptible()
	ExitInterruptible()
}

// InterruptibleFunctionAround runs fn with vctx marked interruptible for
// its duration (spec.md §4.8). The contract: fn must not mutate any
// GC-visible state while the scope is open, since the collector will trace
// this thread's *frozen, scope-entry* root snapshot instead of waiting for
// it.
func InterruptibleFunctionAround(vctx VMContext, fn func() ReturnValue) ReturnValue {
	vctx.EnterInterruptible()
	defer vctx.ExitInterruptible()
	return fn()
}
