// Package format defines the on-disk loadable image format: header, function
// table, global-variable table, code, data, relocations, symbols and
// function-info sections, plus the big-endian codec between them and their
// host-order run-time counterparts.
//
// The layout mirrors letin/format.hpp's Header/Function/Value/Instruction/
// Object/Relocation/Symbol structs one field at a time, because
// Load(serialize(P)) ≡ P (spec.md §8) only holds if the byte shape matches
// exactly, not just the semantics.
package format

import "fmt"

// HeaderSize is the fixed, 8-byte-aligned size of the image header.
const HeaderSize = 64

// Header flag bits (spec.md §6).
const (
	FlagLibrary            uint32 = 1 << 0
	FlagRelocatable        uint32 = 1 << 1
	FlagSymbolicNativeFuns  uint32 = 1 << 2
	FlagFunInfos            uint32 = 1 << 3
)

// Magic is the 8-byte image signature, 0x33 'L' 'E' 'T' 0x77 'I' 'N' 0xff.
var Magic = [8]byte{0x33, 'L', 'E', 'T', 0x77, 'I', 'N', 0xff}

// Header is the fixed 64-byte image header, decoded from big-endian disk
// order into host order exactly once by the loader.
type Header struct {
	Magic       [8]byte
	Flags       uint32
	Entry       uint32
	FunCount    uint32
	VarCount    uint32
	CodeSize    uint32
	DataSize    uint32
	RelocCount  uint32
	SymbolCount uint32
	Reserved    [2]uint32
}

// Function describes one function's code range within the code section.
type Function struct {
	Addr      uint32
	ArgCount  uint32
	InstrCount uint32
}

// Value tag values (spec.md §6). LazilyCanceled is OR'd into LazyValueRef.
const (
	ValueInt               int32 = 0
	ValueFloat             int32 = 1
	ValueRef               int32 = 2
	ValuePair              int32 = 3
	ValueCanceledRef       int32 = 4
	ValueError             int32 = 5
	ValueLazyValueRef      int32 = 6
	ValueLockedLazyValueRef int32 = 7
	ValueLazilyCanceled    int32 = 0x80
)

// Value is the on-disk 16-byte tagged value cell used by global variables
// and by tuple-typed data objects.
type Value struct {
	Type int32
	_pad uint32
	// Raw holds the payload: an int64, the bits of a float64, or an object
	// address within the data section (for ValueRef / the PAIR encoding).
	Raw uint64
}

// Pair returns the (first, second) halves of a PAIR-tagged value's payload.
func (v Value) Pair() (uint32, uint32) {
	return uint32(v.Raw >> 32), uint32(v.Raw)
}

// PairValue builds a PAIR-tagged Value from two u32 halves.
func PairValue(first, second uint32) Value {
	return Value{Type: ValuePair, Raw: uint64(first)<<32 | uint64(second)}
}

// Int returns the payload interpreted as a signed 64-bit integer.
func (v Value) Int() int64 { return int64(v.Raw) }

// Float returns the payload interpreted as an IEEE-754 double.
func (v Value) Float() float64 { return Float64FromBits(v.Raw) }

// Argument is an instruction operand: either an immediate int/float or an
// index into the local-variable, argument or global-variable space,
// depending on the opcode's encoded operand kind.
type Argument struct {
	// I holds an immediate int32, or the bits of an immediate float32
	// (use Float32FromBits), or a local-var/argument/global-var index.
	I uint32
}

// Instruction is a single fetch-decode-execute unit: an opcode plus two
// generic operands (not every opcode uses both).
type Instruction struct {
	Opcode uint32
	Arg1   Argument
	Arg2   Argument
}

// Object types (spec.md §6). Unique bit 0x40 may be OR'd onto any of them,
// IO included (a unique IO object is a "world token" passed linearly
// through I/O-performing native calls).
const (
	ObjectIArray8  int32 = 0
	ObjectIArray16 int32 = 1
	ObjectIArray32 int32 = 2
	ObjectIArray64 int32 = 3
	ObjectSFArray  int32 = 4
	ObjectDFArray  int32 = 5
	ObjectRArray   int32 = 6
	ObjectTuple    int32 = 7
	ObjectIO       int32 = 8
	ObjectLazyValue int32 = 9
	ObjectNative   int32 = 10
	ObjectUnique   int32 = 0x40
	ObjectError    int32 = -1
)

// TupleElemType is the element-type byte recorded per TUPLE slot; only
// INT/FLOAT/REF are legal on disk (spec.md §4.1 validation rule).
type TupleElemType int8

const (
	TupleElemInt   TupleElemType = TupleElemType(ValueInt)
	TupleElemFloat TupleElemType = TupleElemType(ValueFloat)
	TupleElemRef   TupleElemType = TupleElemType(ValueRef)
)

func (t TupleElemType) Valid() bool {
	return t == TupleElemInt || t == TupleElemFloat || t == TupleElemRef
}

// Relocation types (spec.md §6). SymbolicBit marks a relocation whose
// Symbol field is a symbol-table index (name lookup) rather than a raw
// local index.
const (
	RelocArg1Fun       uint32 = 0
	RelocArg2Fun       uint32 = 1
	RelocArg1Var       uint32 = 2
	RelocArg2Var       uint32 = 3
	RelocElemFun       uint32 = 4
	RelocVarFun        uint32 = 5
	RelocArg1NativeFun uint32 = 6
	RelocArg2NativeFun uint32 = 7
	RelocElemNativeFun uint32 = 8
	RelocVarNativeFun  uint32 = 9
	RelocSymbolicBit   uint32 = 0x100
)

// Relocation is one fixup: rewrite the operand or data cell named by Addr
// using the (possibly symbolic) reference named by Symbol.
type Relocation struct {
	Type   uint32
	Addr   uint32
	Symbol uint32
}

// Symbol types (spec.md §6).
const (
	SymbolFun        uint8 = 0
	SymbolVar        uint8 = 1
	SymbolNativeFun  uint8 = 2
	SymbolDefinedBit uint8 = 0x10
)

// Symbol is one entry of the (optional) symbol table: a name bound to a
// local function/variable/native-function index, marked defined or
// undefined (a reference awaiting resolution by the linker).
type Symbol struct {
	Index  uint32
	Type   uint8
	Name   string
}

func (s Symbol) IsDefined() bool { return s.Type&SymbolDefinedBit != 0 }
func (s Symbol) Kind() uint8     { return s.Type &^ SymbolDefinedBit }

// Evaluation-strategy bits of a FunctionInfo (supplemented from
// original_source's FunctionInfo: a bitset, not a single bool).
const (
	EvalStrategyLazy uint8 = 1 << 0
	EvalStrategyMemo uint8 = 1 << 1
)

// FunctionInfo carries the per-function eval-strategy bits the interpreter
// and the memoization cache both consult.
type FunctionInfo struct {
	EvalStrategy     uint8
	EvalStrategyMask uint8
}

func (fi FunctionInfo) IsLazy() bool { return fi.EvalStrategy&fi.EvalStrategyMask&EvalStrategyLazy != 0 }
func (fi FunctionInfo) IsMemoizable() bool {
	return fi.EvalStrategy&fi.EvalStrategyMask&EvalStrategyMemo != 0
}

func (h Header) String() string {
	return fmt.Sprintf("flags=%#x entry=%d funs=%d vars=%d code=%d data=%d relocs=%d syms=%d",
		h.Flags, h.Entry, h.FunCount, h.VarCount, h.CodeSize, h.DataSize, h.RelocCount, h.SymbolCount)
}
