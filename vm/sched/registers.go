// Package sched implements spec.md §4.7's thread and scheduler glue:
// ThreadContext, root-set registration, and fork coordination, plus the
// Registers bundle spec.md §4.4 describes the interpreter driving.
//
// Grounded in original_source/vm/vm.hpp's Registers/SavedRegisters/
// ThreadContext and thread_stop_cont.cpp/hpp (stop-the-world coordination,
// reworked per SPEC_FULL.md §11 into a cooperative safepoint protocol since
// Go cannot suspend an arbitrary goroutine the way POSIX signals suspend an
// arbitrary OS thread).
package sched

import "letin/vm"

// Registers is the interpreter's register bundle (spec.md §4.4): frame
// pointers, expression-stack cursors, the function/instruction pointer,
// the return-value register, try-frame state, and the after-leaving flags
// disambiguating first-entry from resumed-after-nested-call at a call
// site.
type Registers struct {
	Abp  uint32 // argument-base pointer of the current frame
	Ac   uint32 // argument count of the current frame
	Lvc  uint32 // local-variable count of the current frame
	Abp2 uint32 // base of the pending frame being built for the next call
	Ac2  uint32 // pending argument count

	Sec  uint32 // value-stack scan cursor (GC root bound)
	Ebp  uint32 // expression-stack base pointer
	Ec   uint32 // expression-stack count
	Esec uint32 // expression-stack scan cursor (GC root bound)

	Fp int64  // current function index, -1 when the thread has exited
	Ip uint32 // instruction pointer within Fp's code

	Rv Value // return-value register

	Ai uint64 // accumulator for a lazy-force payload

	TmpR   vm.Value // GC-scanned temporary (intermediate allocations)
	TmpPtr vm.Value

	NFBP  uint32 // native-frame base pointer
	ENFBP uint32 // enclosing native-frame base pointer

	AfterLeavingFlags    [2]bool
	AfterLeavingFlagIdx  int

	TryFlag bool
	TryAbp  uint32
	TryAc   uint32
	TryArg2 vm.Value
	TryIOR  vm.Value

	ForceTmpRv  Value
	ForceTmpRv2 Value
	ForceTmpR   vm.Value
	ForceTmpR2  vm.Value
}

// Value is the register bundle's notion of a "return value" register: a
// VM value plus the error code the call that produced it set (spec.md §7:
// "every opcode that may fail produces either a success value or sets
// rv.error").
type Value struct {
	V    vm.Value
	Code vm.ErrorCode
}

// SavedRegisters is the subset of Registers the frame-enter/leave protocol
// pushes onto the argument stack as (prev_abp, prev_ac), (prev_lvc,
// prev_ip), prev_fp (spec.md §4.4's "Frame layout").
type SavedRegisters struct {
	Abp  uint32
	Ac   uint32
	Lvc  uint32
	Ip   uint32
	Fp   int64
}
