// Package interp implements spec.md §4.4's instruction interpreter: the
// stack-machine execution loop, frame enter/leave protocol, and the
// opcode table driving vm/lazy, vm/memo and vm/native.
//
// Grounded in original_source/vm/impl.cpp's instruction dispatch and
// original_source/include/letin/opcode.hpp's opcode numbering; operand
// addressing mode (immediate / local-var / argument / global-var) is
// packed into the low byte of format.Instruction.Opcode, below the base
// opcode (see EncodeOpcode), so the interpreter never has to guess an
// operand's kind from context.
package interp

import "letin/vm/format"

// Op is the base opcode, independent of operand addressing mode.
type Op uint32

const (
	OpILoad Op = iota
	OpINeg
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpIMod
	OpINot
	OpIAnd
	OpIOr
	OpIXor
	OpIShl
	OpIShr
	OpIShrU
	OpIEq
	OpINe
	OpILt
	OpIGe
	OpIGt
	OpILe

	OpFLoad
	OpFNeg
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFEq
	OpFNe
	OpFLt
	OpFGe
	OpFGt
	OpFLe

	OpIToF
	OpFToI

	OpRLoad
	OpREq
	OpRNe
	OpRType

	OpRIArray8
	OpRIArray16
	OpRIArray32
	OpRIArray64
	OpRSFArray
	OpRDFArray
	OpRRArray
	OpRTuple

	OpRIANth8
	OpRIANth16
	OpRIANth32
	OpRIANth64
	OpRSFANth
	OpRDFANth
	OpRRANth
	OpRTNth

	OpRIACat8
	OpRIACat16
	OpRIACat32
	OpRIACat64
	OpRSFACat
	OpRDFACat
	OpRRACat
	OpRTCat

	OpRIALen8
	OpRIALen16
	OpRIALen32
	OpRIALen64
	OpRSFALen
	OpRDFALen
	OpRRALen
	OpRTLen

	OpICall
	OpFCall
	OpRCall
	OpINCall
	OpFNCall
	OpRNCall

	OpRUIAFill8
	OpRUIAFill16
	OpRUIAFill32
	OpRUIAFill64
	OpRUSFAFill
	OpRUDFAFill
	OpRURAFill
	OpRUTFillI
	OpRUTFillF
	OpRUTFillR

	OpRUIANth8
	OpRUIANth16
	OpRUIANth32
	OpRUIANth64
	OpRUSFANth
	OpRUDFANth
	OpRURANth
	OpRUTNth

	OpRUIASNth8
	OpRUIASNth16
	OpRUIASNth32
	OpRUIASNth64
	OpRUSFASNth
	OpRUDFASNth
	OpRURASNth
	OpRUTSNth

	OpRUIAToIA8
	OpRUIAToIA16
	OpRUIAToIA32
	OpRUIAToIA64
	OpRUSFAToSFA
	OpRUDFAToDFA
	OpRURAToRA
	OpRUTToT

	OpLet
	OpIn
	OpArg
	OpRet
	OpJC
	OpJump
	OpRetry
	OpLetTuple
)

// OperandMode selects how an Argument's raw bits are interpreted.
type OperandMode uint32

const (
	ModeImmediate OperandMode = iota
	ModeLocalVar
	ModeArgument
	ModeGlobalVar
	modeCount
)

// EncodeOpcode packs a base opcode and its two operands' addressing modes
// into the wire opcode field, the way the assembler's encoder does.
func EncodeOpcode(op Op, m1, m2 OperandMode) uint32 {
	return uint32(op)<<8 | uint32(m1)<<4 | uint32(m2)
}

// DecodeOpcode is its inverse.
func DecodeOpcode(raw uint32) (op Op, m1, m2 OperandMode) {
	return Op(raw >> 8), OperandMode((raw >> 4) & 0xF), OperandMode(raw & 0xF)
}

// instr decodes an instruction's opcode field into its base opcode and the
// addressing modes of its two operands.
func instr(i format.Instruction) (op Op, m1, m2 OperandMode) {
	return DecodeOpcode(i.Opcode)
}
