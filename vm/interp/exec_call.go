package interp

import (
	"context"

	"letin/vm"
	"letin/vm/format"
	"letin/vm/lazy"
)

// execCall implements the Call family (spec.md §4.4): ICALL/FCALL/RCALL
// invoke a VM function by index, INCALL/FNCALL/RNCALL a native function;
// both consume the pending ARG-built argument list the same way object
// construction opcodes do.
func (r *runner) execCall(ctx context.Context, a *activation, op Op, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	args := append([]vm.Value(nil), a.pending()...)
	a.clearPending()
	funIndex := int(instr.Arg1.I)

	switch op {
	case OpICall, OpFCall, OpRCall:
		v, code := r.callFunction(ctx, funIndex, args)
		if code != vm.Success {
			return vm.ErrorValue(), code
		}
		// ICALL/FCALL demand a concrete INT/FLOAT now, even if the callee
		// is flagged lazy and callFunction therefore returned a LAZY_REF
		// (spec.md §4.5) — force it before the type check below. RCALL's
		// result is ref-like either way, so a LAZY_REF can stay unforced
		// and be resolved later the same way any other lazy slot is, on
		// its next use.
		if op != OpRCall && v.IsLazy() {
			v, code = r.force(ctx, v)
			if code != vm.Success {
				return vm.ErrorValue(), code
			}
		}
		if !wantsType(op, v) {
			return vm.ErrorValue(), vm.ErrIncorrectValue
		}
		return v, vm.Success
	case OpINCall, OpFNCall, OpRNCall:
		if r.env.Native == nil {
			return vm.ErrorValue(), vm.ErrNoNativeFun
		}
		rv := r.env.Native.Invoke(ctx, r.thread, funIndex, args)
		if rv.Error != vm.Success {
			return vm.ErrorValue(), rv.Error
		}
		switch op {
		case OpINCall:
			return rv.IntValue(), vm.Success
		case OpFNCall:
			return rv.FloatValue(), vm.Success
		default:
			return rv.RefValue(), vm.Success
		}
	}
	return vm.ErrorValue(), vm.ErrIncorrectInstr
}

func wantsType(op Op, v vm.Value) bool {
	switch op {
	case OpICall:
		return v.IsInt()
	case OpFCall:
		return v.IsFloat()
	default:
		return v.IsRefLike()
	}
}

// callFunction invokes funIndex(args), honoring the lazy evaluation
// strategy (spec.md §4.5: "An eager call site under a lazy evaluation
// strategy wraps the call in a LAZY_VALUE instead of invoking
// immediately"). Memoization is handled one level down, inside
// Environment.invokeOnThread, since it applies uniformly regardless of
// which call site reaches a given function.
func (r *runner) callFunction(ctx context.Context, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode) {
	fi := r.env.functionInfo(funIndex)
	if !fi.IsLazy() {
		return r.env.invokeOnThread(ctx, r.thread, funIndex, args)
	}

	valueType := vm.TagRef // the thunk's declared result type; the call site's concrete return type is not tracked in this model, so LAZY_REF objects are typed opaquely and checked at force time.
	ls := lazy.NewThunk(valueType, false, funIndex, args)
	obj, code := r.alloc(vm.ObjLazyValue, 0)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	obj.Lazy = ls
	return vm.LazyRefValue(vm.NewReference(obj), false), vm.Success
}

// force resolves a LAZY_REF value, used by opcodes that demand a concrete
// value where a LAZY_REF may appear (spec.md §4.5). Non-lazy values are
// returned unchanged.
func (r *runner) force(ctx context.Context, v vm.Value) (vm.Value, vm.ErrorCode) {
	if !v.IsLazy() {
		return v, vm.Success
	}
	if v.IsLazilyCanceled() {
		return vm.ErrorValue(), vm.ErrAgainUsedUnique
	}
	ref := v.R()
	if ref.HasNil() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	return r.env.Lazy.Force(ctx, ref.Ptr, r.thread.ThreadID(), r.thread, r.caller())
}
