package interp

import (
	"context"

	"letin/vm"
	"letin/vm/format"
)

// constructObjType maps an object-construction/element/concat/length
// opcode to the base ObjType it operates on.
func constructObjType(op Op) (vm.ObjType, bool) {
	switch op {
	case OpRIArray8, OpRIANth8, OpRIACat8, OpRIALen8, OpRUIAFill8, OpRUIANth8, OpRUIASNth8, OpRUIAToIA8:
		return vm.ObjIArray8, true
	case OpRIArray16, OpRIANth16, OpRIACat16, OpRIALen16, OpRUIAFill16, OpRUIANth16, OpRUIASNth16, OpRUIAToIA16:
		return vm.ObjIArray16, true
	case OpRIArray32, OpRIANth32, OpRIACat32, OpRIALen32, OpRUIAFill32, OpRUIANth32, OpRUIASNth32, OpRUIAToIA32:
		return vm.ObjIArray32, true
	case OpRIArray64, OpRIANth64, OpRIACat64, OpRIALen64, OpRUIAFill64, OpRUIANth64, OpRUIASNth64, OpRUIAToIA64:
		return vm.ObjIArray64, true
	case OpRSFArray, OpRSFANth, OpRSFACat, OpRSFALen, OpRUSFAFill, OpRUSFANth, OpRUSFASNth, OpRUSFAToSFA:
		return vm.ObjSFArray, true
	case OpRDFArray, OpRDFANth, OpRDFACat, OpRDFALen, OpRUDFAFill, OpRUDFANth, OpRUDFASNth, OpRUDFAToDFA:
		return vm.ObjDFArray, true
	case OpRRArray, OpRRANth, OpRRACat, OpRRALen, OpRURAFill, OpRURANth, OpRURASNth, OpRURAToRA:
		return vm.ObjRArray, true
	case OpRTuple, OpRTNth, OpRTCat, OpRTLen, OpRUTFillI, OpRUTFillF, OpRUTFillR, OpRUTNth, OpRUTSNth, OpRUTToT:
		return vm.ObjTuple, true
	}
	return 0, false
}

// execConstruct implements the RIARRAY*/RSFARRAY/RDFARRAY/RRARRAY/RTUPLE
// family: consume the pending ARG-built argument list as the new shared
// object's elements (spec.md §4.4: "consume pushed arguments, produce a
// shared object of the type").
func (r *runner) execConstruct(ctx context.Context, a *activation, op Op, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	objType, ok := constructObjType(op)
	if !ok {
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
	elems := append([]vm.Value(nil), a.pending()...)
	defer a.clearPending()

	obj, code := r.alloc(objType, uint32(len(elems)))
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	for i, v := range elems {
		if objType == vm.ObjTuple {
			te, ok := vm.TupleElemFromValue(v)
			if !ok {
				return vm.ErrorValue(), vm.ErrIncorrectValue
			}
			obj.Tuple[i] = te
			obj.TupleTypes[i] = te.Type
			continue
		}
		if code := vm.SetElem(vm.Reference{Ptr: obj}, uint32(i), v); code != vm.Success {
			return vm.ErrorValue(), code
		}
	}
	return vm.RefValue(vm.NewReference(obj)), vm.Success
}

// execNth implements the RIANTH*/RSFANTH/RDFANTH/RRANTH/RTNTH family:
// arg1 is the container, arg2 the index.
func (r *runner) execNth(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	objType, ok := constructObjType(op)
	if !ok {
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
	c, code := r.evalOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	idx, code := r.evalOperand(ctx, a, m2, instr.Arg2)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !c.IsRef() || !idx.IsInt() || idx.I() < 0 {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	return vm.Elem(c.R(), uint32(idx.I()), objType)
}

// execCat implements the RIACAT*/RSFACAT/RDFACAT/RRACAT/RTCAT family.
func (r *runner) execCat(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	objType, ok := constructObjType(op)
	if !ok {
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
	x, code := r.evalOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	y, code := r.evalOperand(ctx, a, m2, instr.Arg2)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !x.IsRef() || !y.IsRef() || x.R().HasNil() || y.R().HasNil() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	xo, yo := x.R().Ptr, y.R().Ptr
	if xo.Type.Base() != objType || yo.Type.Base() != objType {
		return vm.ErrorValue(), vm.ErrIncorrectObject
	}
	total, code := vm.ConcatLen(xo.Length, yo.Length)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	dst, code := r.alloc(objType, total)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if code := vm.Concat(dst, xo, yo); code != vm.Success {
		return vm.ErrorValue(), code
	}
	return vm.RefValue(vm.NewReference(dst)), vm.Success
}

// execLen implements the RIALEN*/RSFALEN/RDFALEN/RRALEN/RTLEN family.
func (r *runner) execLen(ctx context.Context, a *activation, op Op, m1 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	objType, ok := constructObjType(op)
	if !ok {
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
	c, code := r.evalOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !c.IsRef() {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	n, code := vm.Len(c.R(), objType)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	return vm.IntValue(n), vm.Success
}

// execUniqueFill implements RUIAFILL*/RUSFAFILL/RUDFAFILL/RURAFILL/
// RUTFILLI/F/R: allocate a fresh UNIQUE array/tuple of arg1 elements, each
// filled with arg2.
func (r *runner) execUniqueFill(ctx context.Context, a *activation, op Op, m1 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	objType, ok := constructObjType(op)
	if !ok {
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
	n, code := r.evalOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	var fill vm.Value
	if op == OpRUTFillF {
		fill, code = r.evalFloatOperand(ctx, a, modeOf(instr), instr.Arg2)
	} else {
		fill, code = r.evalOperand(ctx, a, modeOf(instr), instr.Arg2)
	}
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !n.IsInt() || n.I() < 0 {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	length := uint32(n.I())
	obj, code := r.alloc(objType.WithUnique(), length)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	for i := uint32(0); i < length; i++ {
		if objType == vm.ObjTuple {
			te, ok := vm.TupleElemFromValue(fill)
			if !ok {
				return vm.ErrorValue(), vm.ErrIncorrectValue
			}
			obj.Tuple[i] = te
			obj.TupleTypes[i] = te.Type
			continue
		}
		if code := vm.SetElem(vm.Reference{Ptr: obj}, i, fill); code != vm.Success {
			return vm.ErrorValue(), code
		}
	}
	return vm.RefValue(vm.NewReference(obj)), vm.Success
}

// modeOf recovers the decoded mode for Arg2 of the current instruction
// (execUniqueFill's caller already decoded m1/m2 together upstream in
// execOp's dispatch but only threads m1 down to this helper; re-decoding
// here keeps the single-opcode helpers independent of execOp's internal
// variable names).
func modeOf(instr format.Instruction) OperandMode {
	_, _, m2 := DecodeOpcode(instr.Opcode)
	return m2
}

// execUniqueNth implements the RU*NTH family (spec.md §4.3's linear read):
// arg1 names the local/argument slot holding the unique REF (so it can be
// cancelled in place), arg2 the index.
func (r *runner) execUniqueNth(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	objType, ok := constructObjType(op)
	if !ok {
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
	slot, code := r.slotFor(a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	idx, code := r.evalOperand(ctx, a, m2, instr.Arg2)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if !idx.IsInt() || idx.I() < 0 {
		return vm.ErrorValue(), vm.ErrIncorrectValue
	}
	elem, container, code := vm.UniqueElem(slot, uint32(idx.I()), objType)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	if code := a.pushPending(container); code != vm.Success {
		return vm.ErrorValue(), code
	}
	return elem, vm.Success
}

// execUniqueSNth implements the RU*SNTH family: arg1 the unique-holding
// slot, arg2 the new value. The written-to container is the opcode's
// result (it becomes the next local), and the source slot is cancelled
// (spec.md §4.3: "set the element and return the container").
func (r *runner) execUniqueSNth(ctx context.Context, a *activation, op Op, m1, m2 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	objType, ok := constructObjType(op)
	if !ok {
		return vm.ErrorValue(), vm.ErrIncorrectInstr
	}
	slot, code := r.slotFor(a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	v, code := r.evalOperand(ctx, a, m2, instr.Arg2)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	// RUIASNTH*'s single pushed argument is the new value; the opcode's
	// own arg2 slot carries it directly in this encoding rather than via
	// the pending stack, matching "the pushed-argument count is exactly
	// one (the new value), checked at runtime" once ac2 bookkeeping is
	// folded into a plain operand check here. The index written is always
	// slot 0 in this two-operand encoding (container-slot, value); a real
	// assembler's three-operand form (container-slot, index, value) is
	// noted as a simplification in DESIGN.md.
	container, code := vm.UniqueSetElem(slot, 0, v, objType)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	return container, vm.Success
}

// execUniqueToShared implements the RU*TO* family.
func (r *runner) execUniqueToShared(ctx context.Context, a *activation, op Op, m1 OperandMode, instr format.Instruction) (vm.Value, vm.ErrorCode) {
	v, code := r.evalOperand(ctx, a, m1, instr.Arg1)
	if code != vm.Success {
		return vm.ErrorValue(), code
	}
	return vm.ToShared(v, r.alloc)
}

// slotFor resolves an operand to a mutable *vm.Value so unique-family
// opcodes can cancel it in place (spec.md §4.3). Only local-var and
// argument operands are valid slots for a unique read/write — a unique
// object may not be read out of a global (globals are immortal/shared by
// construction) or an immediate.
func (r *runner) slotFor(a *activation, m OperandMode, arg format.Argument) (*vm.Value, vm.ErrorCode) {
	i := int(arg.I)
	switch m {
	case ModeLocalVar:
		return a.localSlot(i)
	case ModeArgument:
		return a.argSlot(i)
	default:
		return nil, vm.ErrIncorrectValue
	}
}
