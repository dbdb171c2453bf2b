package interp

import (
	"context"
	"math"

	"letin/vm"
	"letin/vm/format"
	"letin/vm/lazy"
	"letin/vm/sched"
)

const (
	defaultStackSize     = 1 << 16
	defaultExprStackSize = 1 << 12
)

// runner drives one ThreadContext's interpreter loop. Each VM function
// activation is still one recursive Go call (call() calling itself down
// through execCall/Environment.invokeOnThread for ICALL/FCALL/RCALL),
// since Go's own goroutine stack already supplies frame linkage — but its
// args/locals/pending-argument cells now live in r.thread.Stack/ExprStack
// rather than a private Go slice, and Regs.Sec/Esec track the high-water
// mark of each, so the collector's root walk (spec.md §4.7: "every live
// stack slot from 0 to sec") actually sees them. abp/ac/lvc/ip bookkeeping
// is kept on sched.Registers for observability; the recursive-Go-call frame
// linkage in place of hand-rolled abp-chasing is recorded as a deliberate
// deviation in DESIGN.md.
type runner struct {
	env    *Environment
	thread *sched.ThreadContext
}

func newRunner(env *Environment, id int64) *runner {
	t := sched.NewThreadContext(id, defaultStackSize, defaultExprStackSize)
	env.Heap.RegisterThread(t)
	return &runner{env: env, thread: t}
}

// runToCompletion runs funIndex(args) to its final rv and unregisters the
// thread — spec.md §4.7: "Threads exit when fp == −1."
func (r *runner) runToCompletion(ctx context.Context, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode) {
	defer r.env.Heap.UnregisterThread(r.thread)
	r.thread.Regs.Fp = int64(funIndex)
	v, code := r.call(ctx, funIndex, args)
	r.thread.Regs.Fp = -1
	return v, code
}

// caller adapts runner.call to vm/lazy.Caller's shape, for thunks forced
// from this thread. It runs the forced function on r's own thread (rather
// than spinning up a synthetic one) so vm/lazy's same-thread reentrancy
// check (Engine.Force comparing ls.ComputingBy against the calling thread's
// ID) sees the true, stable calling thread even across nested ICALL/FCALL/
// RCALL frames.
func (r *runner) caller() lazy.Caller {
	return func(ctx context.Context, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode) {
		return r.env.invokeOnThread(ctx, r.thread, funIndex, args)
	}
}

// activation is one function call's view onto its thread's shared stacks:
// args and locals both live in t.Stack (args first, locals immediately
// above), pending ARG-pushed operands live in t.ExprStack. All three are
// frame-relative spans anchored at argsBase/locBase/exprBase, the stack
// slice equivalent of spec.md §4.4's abp/lvbp frame-base registers.
type activation struct {
	fn   format.Function
	code []format.Instruction
	t    *sched.ThreadContext

	argsBase uint32
	nargs    uint32
	locBase  uint32
	nlocals  uint32
	exprBase uint32
	npending uint32
}

func (a *activation) pushArg(v vm.Value) vm.ErrorCode {
	idx := a.argsBase + a.nargs
	if int(idx) >= len(a.t.Stack) {
		return vm.ErrStackOverflow
	}
	a.t.Stack[idx] = v
	a.nargs++
	if idx+1 > a.t.Regs.Sec {
		a.t.Regs.Sec = idx + 1
	}
	return vm.Success
}

func (a *activation) arg(i int) (vm.Value, vm.ErrorCode) {
	if i < 0 || uint32(i) >= a.nargs {
		return vm.ErrorValue(), vm.ErrNoArg
	}
	return a.t.Stack[a.argsBase+uint32(i)], vm.Success
}

func (a *activation) argSlot(i int) (*vm.Value, vm.ErrorCode) {
	if i < 0 || uint32(i) >= a.nargs {
		return nil, vm.ErrNoArg
	}
	return &a.t.Stack[a.argsBase+uint32(i)], vm.Success
}

func (a *activation) local(i int) (vm.Value, vm.ErrorCode) {
	if i < 0 || uint32(i) >= a.nlocals {
		return vm.ErrorValue(), vm.ErrNoLocalVar
	}
	return a.t.Stack[a.locBase+uint32(i)], vm.Success
}

func (a *activation) localSlot(i int) (*vm.Value, vm.ErrorCode) {
	if i < 0 || uint32(i) >= a.nlocals {
		return nil, vm.ErrNoLocalVar
	}
	return &a.t.Stack[a.locBase+uint32(i)], vm.Success
}

func (a *activation) pushLocal(v vm.Value) vm.ErrorCode {
	idx := a.locBase + a.nlocals
	if int(idx) >= len(a.t.Stack) {
		return vm.ErrStackOverflow
	}
	a.t.Stack[idx] = v
	a.nlocals++
	if idx+1 > a.t.Regs.Sec {
		a.t.Regs.Sec = idx + 1
	}
	return vm.Success
}

func (a *activation) pushPending(v vm.Value) vm.ErrorCode {
	idx := a.exprBase + a.npending
	if int(idx) >= len(a.t.ExprStack) {
		return vm.ErrStackOverflow
	}
	a.t.ExprStack[idx] = v
	a.npending++
	if idx+1 > a.t.Regs.Esec {
		a.t.Regs.Esec = idx + 1
	}
	return vm.Success
}

// pending returns the current pending-argument span as a slice. The slice
// aliases t.ExprStack directly; callers that need to keep the values past a
// clearPending() (execCall's arguments to a nested call) must copy it.
func (a *activation) pending() []vm.Value {
	return a.t.ExprStack[a.exprBase : a.exprBase+a.npending]
}

func (a *activation) clearPending() {
	a.npending = 0
	a.t.Regs.Esec = a.exprBase
}

// call executes one function activation to RET or RETRY-exhaustion. It
// reuses r.thread's Stack/ExprStack for every frame, including frames
// entered recursively through ICALL/FCALL/RCALL — the activation's spans
// are pushed onto whatever is already on the stack (the caller's own args/
// locals) and popped back off via the deferred Sec/Esec restore below, the
// same nesting discipline a real call stack gives for free.
func (r *runner) call(ctx context.Context, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode) {
	fn, ok := r.env.function(funIndex)
	if !ok {
		return vm.ErrorValue(), vm.ErrNoFun
	}
	if uint32(len(args)) != fn.ArgCount {
		return vm.ErrorValue(), vm.ErrIncorrectArgCount
	}
	if int(fn.Addr)+int(fn.InstrCount) > len(r.env.Program.Code) {
		return vm.ErrorValue(), vm.ErrIncorrectFun
	}
	code := r.env.Program.Code[fn.Addr : fn.Addr+fn.InstrCount]

	t := r.thread
	savedSec, savedEsec := t.Regs.Sec, t.Regs.Esec
	defer func() { t.Regs.Sec, t.Regs.Esec = savedSec, savedEsec }()

	a := &activation{fn: fn, code: code, t: t, argsBase: savedSec, exprBase: savedEsec}
	for _, v := range args {
		if code := a.pushArg(v); code != vm.Success {
			return vm.ErrorValue(), code
		}
	}

retry:
	r.thread.SafepointPoll()
	t.Regs.Sec = a.argsBase + a.nargs
	a.locBase = t.Regs.Sec
	a.nlocals = 0
	t.Regs.Esec = a.exprBase
	a.npending = 0
	ip := 0

	for {
		if ip < 0 || ip >= len(a.code) {
			return vm.ErrorValue(), vm.ErrNoInstr
		}
		r.thread.Regs.Ip = uint32(ip)
		instr := a.code[ip]
		op, m1, m2 := DecodeOpcode(instr.Opcode)

		switch op {
		case OpLet:
			v, code := r.evalOperand(ctx, a, m1, instr.Arg1)
			if code != vm.Success {
				return vm.ErrorValue(), code
			}
			if code := a.pushLocal(v); code != vm.Success {
				return vm.ErrorValue(), code
			}
			ip++
			continue
		case OpLetTuple:
			// LETTUPLE destructures the tuple named by arg2 into n fresh
			// locals; arg1 is the literal count n, not an operand to evaluate.
			tv, code := r.evalOperand(ctx, a, m2, instr.Arg2)
			if code != vm.Success {
				return vm.ErrorValue(), code
			}
			if !tv.IsRef() || tv.R().HasNil() || tv.R().Ptr.Type.Base() != vm.ObjTuple {
				return vm.ErrorValue(), vm.ErrIncorrectValue
			}
			obj := tv.R().Ptr
			if uint32(instr.Arg1.I) != obj.Length {
				return vm.ErrorValue(), vm.ErrIncorrectValue
			}
			for _, e := range obj.Tuple {
				if code := a.pushLocal(e.ToValue()); code != vm.Success {
					return vm.ErrorValue(), code
				}
			}
			ip++
			continue
		case OpIn:
			// IN fixes up abp2/lvbp-style frame bookkeeping in the original
			// stack-machine design (spec.md §4.4); this interpreter derives
			// that bookkeeping from argsBase/locBase directly, so IN is a
			// valid no-op here.
			ip++
			continue
		case OpArg:
			v, code := r.evalOperand(ctx, a, m1, instr.Arg1)
			if code != vm.Success {
				return vm.ErrorValue(), code
			}
			if code := a.pushPending(v); code != vm.Success {
				return vm.ErrorValue(), code
			}
			ip++
			continue
		case OpRet:
			v, code := r.evalOperand(ctx, a, m1, instr.Arg1)
			return v, code
		case OpJump:
			ip += int(int32(instr.Arg1.I))
			continue
		case OpJC:
			cond, code := r.evalOperand(ctx, a, m1, instr.Arg1)
			if code != vm.Success {
				return vm.ErrorValue(), code
			}
			if !cond.IsInt() {
				return vm.ErrorValue(), vm.ErrIncorrectValue
			}
			if cond.I() != 0 {
				ip += int(int32(instr.Arg2.I))
				continue
			}
			ip++
			continue
		case OpRetry:
			if a.npending != fn.ArgCount {
				return vm.ErrorValue(), vm.ErrIncorrectArgCount
			}
			copy(t.Stack[a.argsBase:a.argsBase+a.npending], a.pending())
			goto retry
		}

		v, code := r.execOp(ctx, a, op, m1, m2, instr)
		if code != vm.Success {
			return vm.ErrorValue(), code
		}
		if code := a.pushLocal(v); code != vm.Success {
			return vm.ErrorValue(), code
		}
		ip++
	}
}

// evalOperand reads an instruction operand per its addressing mode
// (spec.md §4.4: "evaluate each argument — read lvar/arg/gvar, honor
// type"). Immediate operands are handled by each opcode's own helper since
// the correct interpretation (int vs float bits) depends on the opcode
// family; this covers the three indexed modes plus a pass-through for
// immediates interpreted as signed ints (the common case: JC/JUMP offsets,
// ILOAD literals).
func (r *runner) evalOperand(ctx context.Context, a *activation, m OperandMode, arg format.Argument) (vm.Value, vm.ErrorCode) {
	switch m {
	case ModeImmediate:
		return vm.IntValue(int64(int32(arg.I))), vm.Success
	case ModeLocalVar:
		return a.local(int(arg.I))
	case ModeArgument:
		return a.arg(int(arg.I))
	case ModeGlobalVar:
		i := int(arg.I)
		if i < 0 || i >= len(r.env.Program.Globals) {
			return vm.ErrorValue(), vm.ErrNoGlobalVar
		}
		return r.env.Program.Globals[i], vm.Success
	default:
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
}

func (r *runner) evalFloatOperand(ctx context.Context, a *activation, m OperandMode, arg format.Argument) (vm.Value, vm.ErrorCode) {
	if m == ModeImmediate {
		return vm.FloatValue(float64(math.Float32frombits(arg.I))), vm.Success
	}
	return r.evalOperand(ctx, a, m, arg)
}

func (r *runner) alloc(objType vm.ObjType, length uint32) (*vm.Object, vm.ErrorCode) {
	return r.env.Heap.NewObject(objType, length)
}
