package interp

import (
	"context"
	"math"

	"letin/vm"
	"letin/vm/format"
)

// execOp evaluates every instruction that is not one of the control-flow
// opcodes already handled in call's own switch (LET/LETTUPLE/ARG/RET/JC/
// JUMP/RETRY). Its caller appends the returned value as a fresh local, the
// same way OpLet's own plain-operand-read case does — every instruction in
// a function body implicitly defines the next local slot in sequence.
func (r *runner) execOp(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	switch {
	case op >= OpILoad && op <= OpILe:
		return r.execInt(ctx, a, op, m1, m2, instr)
	case op >= OpFLoad && op <= OpFLe:
		return r.execFloat(ctx, a, op, m1, m2, instr)
	case op == OpIToF || op == OpFToI:
		return r.execConvert(ctx, a, op, m1, instr)
	case op >= OpRLoad && op <= OpRType:
		return r.execRef(ctx, a, op, m1, m2, instr)
	case op >= OpRIArray8 && op <= OpRTuple:
		return r.execConstruct(ctx, a, op, instr)
	case op >= OpRIANth8 && op <= OpRTNth:
		return r.execNth(ctx, a, op, m1, m2, instr)
	case op >= OpRIACat8 && op <= OpRTCat:
		return r.execCat(ctx, a, op, m1, m2, instr)
	case op >= OpRIALen8 && op <= OpRTLen:
		return r.execLen(ctx, a, op, m1, instr)
	case op >= OpICall && op <= OpRNCall:
		return r.execCall(ctx, a, op, instr)
	case op >= OpRUIAFill8 && op <= OpRUTFillR:
		return r.execUniqueFill(ctx, a, op, m1, instr)
	case op >= OpRUIANth8 && op <= OpRUTNth:
		return r.execUniqueNth(ctx, a, op, m1, m2, instr)
	case op >= OpRUIASNth8 && op <= OpRUTSNth:
		return r.execUniqueSNth(ctx, a, op, m1, m2, instr)
	case op >= OpRUIAToIA8 && op <= OpRUTToT:
		return r.execUniqueToShared(ctx, a, op, m1, instr)
	default:
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
}

func (r *runner) execInt(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	x, code := r.evalOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if x.IsLazy() {
		if x, code = r.force(ctx, x); code != vm.Success {
			return vm.ErrorValue(), code
		}
	}
	if op == OpILoad {
		if !x.IsInt() {
			return vm.ErrorValue(), vm.ErrIncorrectValue
		}
		return x, vm.Success
	}
	if !x.IsInt() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	if op == OpINeg {
		return vm.IntValue(-x.I()), vm.Success
	}
	if op == OpINot {
		return vm.IntValue(^x.I()), vm.Success
	}
	y, code := r.evalOperand(ctx, a, m2, instr.Arg2)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !y.IsInt() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	xi, yi := x.I(), y.I()
	switch op {
	case OpIAdd:
		return vm.IntValue(xi + yi), vm.Success
	case OpISub:
		return vm.IntValue(xi - yi), vm.Success
	case OpIMul:
		return vm.IntValue(xi * yi), vm.Success
	case OpIDiv:
		if yi == 0 {
			return vm.ErrorValue(), vm.ErrDivByZero
		}
		return vm.IntValue(xi / yi), vm.Success
	case OpIMod:
		if yi == 0 {
			return vm.ErrorValue(), vm.ErrDivByZero
		}
		return vm.IntValue(xi % yi), vm.Success
	case OpIAnd:
		return vm.IntValue(xi & yi), vm.Success
	case OpIOr:
		return vm.IntValue(xi | yi), vm.Success
	case OpIXor:
		return vm.IntValue(xi ^ yi), vm.Success
	case OpIShl:
		return vm.IntValue(xi << uint(yi&63)), vm.Success
	case OpIShr:
		return vm.IntValue(xi >> uint(yi&63)), vm.Success
	case OpIShrU:
		return vm.IntValue(int64(uint64(xi) >> uint(yi&63))), vm.Success
	case OpIEq:
		return boolValue(xi == yi), vm.Success
	case OpINe:
		return boolValue(xi != yi), vm.Success
	case OpILt:
		return boolValue(xi < yi), vm.Success
	case OpIGe:
		return boolValue(xi >= yi), vm.Success
	case OpIGt:
		return boolValue(xi > yi), vm.Success
	case OpILe:
		return boolValue(xi <= yi), vm.Success
	}
	return vm.ErrorValue(), vm.ErrIncorrectInstr
}

func boolValue(b bool) vm.Value {
	if b {
		return vm.IntValue(1)
	}
	return vm.IntValue(0)
}

func (r *runner) execFloat(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	x, code := r.evalFloatOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if x.IsLazy() {
		if x, code = r.force(ctx, x); code != vm.Success {
			return vm.ErrorValue(), code
		}
	}
	if op == OpFLoad {
		if !x.IsFloat() {
			return vm.ErrorValue(), vm.ErrIncorrectValue
		}
		return x, vm.Success
	}
	if !x.IsFloat() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	if op == OpFNeg {
		return vm.FloatValue(-x.F()), vm.Success
	}
	y, code := r.evalFloatOperand(ctx, a, m2, instr.Arg2)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !y.IsFloat() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	xf, yf := x.F(), y.F()
	switch op {
	case OpFAdd:
		return vm.FloatValue(xf + yf), vm.Success
	case OpFSub:
		return vm.FloatValue(xf - yf), vm.Success
	case OpFMul:
		return vm.FloatValue(xf * yf), vm.Success
	case OpFDiv:
		return vm.FloatValue(xf / yf), vm.Success
	case OpFEq:
		return boolValue(xf == yf), vm.Success
	case OpFNe:
		return boolValue(xf != yf), vm.Success
	case OpFLt:
		return boolValue(xf < yf), vm.Success
	case OpFGe:
		return boolValue(xf >= yf), vm.Success
	case OpFGt:
		return boolValue(xf > yf), vm.Success
	case OpFLe:
		return boolValue(xf <= yf), vm.Success
	}
	return vm.ErrorValue(), vm.ErrIncorrectInstr
}

func (r *runner) execConvert(ctx context.Context, a *activation, op Op, m1 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	if op == OpIToF {
		x, code := r.evalOperand(ctx, a, m1, instr.Arg1)
		if code != vm.Success {
			return vm.ErrorValue(), code
		}
		if !x.IsInt() {
			return vm.ErrorValue(), vm.ErrIncorrectValue
		}
		return vm.FloatValue(float64(x.I())), vm.Success
	}
	x, code := r.evalFloatOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !x.IsFloat() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	return vm.IntValue(int64(math.Trunc(x.F()))), vm.Success
}

func (r *runner) execRef(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	x, code := r.evalOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if op == OpRLoad {
		if !x.IsRefLike() {
			return vm.ErrorValue(), vm.ErrIncorrectValue
		}
		return x, vm.Success
	}
	if op == OpRType {
		if !x.IsRef() || x.R().HasNil() {
			return vm.ErrorValue(), vm.ErrIncorrectValue
		}
		return vm.IntValue(int64(x.R().Ptr.Type.Base())), vm.Success
	}
	y, code := r.evalOperand(ctx, a, m2, instr.Arg2)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	eq := x.R().Ptr == y.R().Ptr
	if op == OpREq {
		return boolValue(eq), vm.Success
	}
	return boolValue(!eq), vm.Success
}
