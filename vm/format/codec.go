package format

import (
	"encoding/binary"
	"math"
)

// Float32FromBits and Float64FromBits convert the disk-endian IEEE-754 word
// layout to a host float explicitly, rather than relying on the host's
// float encoding happening to match the wire encoding (spec.md §4.1).
func Float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }
func Float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }

func Float32Bits(f float32) uint32 { return math.Float32bits(f) }
func Float64Bits(f float64) uint64 { return math.Float64bits(f) }

// DecodeHeader reads a HeaderSize-byte big-endian header into host order.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}
	var h Header
	copy(h.Magic[:], b[0:8])
	h.Flags = binary.BigEndian.Uint32(b[8:12])
	h.Entry = binary.BigEndian.Uint32(b[12:16])
	h.FunCount = binary.BigEndian.Uint32(b[16:20])
	h.VarCount = binary.BigEndian.Uint32(b[20:24])
	h.CodeSize = binary.BigEndian.Uint32(b[24:28])
	h.DataSize = binary.BigEndian.Uint32(b[28:32])
	h.RelocCount = binary.BigEndian.Uint32(b[32:36])
	h.SymbolCount = binary.BigEndian.Uint32(b[36:40])
	h.Reserved[0] = binary.BigEndian.Uint32(b[40:44])
	h.Reserved[1] = binary.BigEndian.Uint32(b[44:48])
	return h, nil
}

// EncodeHeader is the inverse of DecodeHeader, used by tests that assert
// Load(serialize(P)) ≡ P.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:8], h.Magic[:])
	binary.BigEndian.PutUint32(b[8:12], h.Flags)
	binary.BigEndian.PutUint32(b[12:16], h.Entry)
	binary.BigEndian.PutUint32(b[16:20], h.FunCount)
	binary.BigEndian.PutUint32(b[20:24], h.VarCount)
	binary.BigEndian.PutUint32(b[24:28], h.CodeSize)
	binary.BigEndian.PutUint32(b[28:32], h.DataSize)
	binary.BigEndian.PutUint32(b[32:36], h.RelocCount)
	binary.BigEndian.PutUint32(b[36:40], h.SymbolCount)
	binary.BigEndian.PutUint32(b[40:44], h.Reserved[0])
	binary.BigEndian.PutUint32(b[44:48], h.Reserved[1])
	return b
}

const FunctionSize = 12

func DecodeFunction(b []byte) Function {
	return Function{
		Addr:       binary.BigEndian.Uint32(b[0:4]),
		ArgCount:   binary.BigEndian.Uint32(b[4:8]),
		InstrCount: binary.BigEndian.Uint32(b[8:12]),
	}
}

func EncodeFunction(f Function, b []byte) {
	binary.BigEndian.PutUint32(b[0:4], f.Addr)
	binary.BigEndian.PutUint32(b[4:8], f.ArgCount)
	binary.BigEndian.PutUint32(b[8:12], f.InstrCount)
}

const ValueSize = 16

func DecodeValue(b []byte) Value {
	return Value{
		Type: int32(binary.BigEndian.Uint32(b[0:4])),
		Raw:  binary.BigEndian.Uint64(b[8:16]),
	}
}

func EncodeValue(v Value, b []byte) {
	binary.BigEndian.PutUint32(b[0:4], uint32(v.Type))
	binary.BigEndian.PutUint32(b[4:8], 0)
	binary.BigEndian.PutUint64(b[8:16], v.Raw)
}

const InstructionSize = 12

func DecodeInstruction(b []byte) Instruction {
	return Instruction{
		Opcode: binary.BigEndian.Uint32(b[0:4]),
		Arg1:   Argument{I: binary.BigEndian.Uint32(b[4:8])},
		Arg2:   Argument{I: binary.BigEndian.Uint32(b[8:12])},
	}
}

func EncodeInstruction(in Instruction, b []byte) {
	binary.BigEndian.PutUint32(b[0:4], in.Opcode)
	binary.BigEndian.PutUint32(b[4:8], in.Arg1.I)
	binary.BigEndian.PutUint32(b[8:12], in.Arg2.I)
}

const RelocationSize = 12

func DecodeRelocation(b []byte) Relocation {
	return Relocation{
		Type:   binary.BigEndian.Uint32(b[0:4]),
		Addr:   binary.BigEndian.Uint32(b[4:8]),
		Symbol: binary.BigEndian.Uint32(b[8:12]),
	}
}

func EncodeRelocation(r Relocation, b []byte) {
	binary.BigEndian.PutUint32(b[0:4], r.Type)
	binary.BigEndian.PutUint32(b[4:8], r.Addr)
	binary.BigEndian.PutUint32(b[8:12], r.Symbol)
}

// symbolHeaderSize is the fixed portion of an on-disk Symbol entry
// (index, name length, type) preceding its raw name bytes — mirroring
// format::Symbol's "fixed header + char name[1]" layout.
const symbolHeaderSize = 4 + 2 + 1

// DecodeSymbol reads one symbol entry starting at b[0] and returns it along
// with the number of bytes consumed (8-byte aligned, per spec.md §4.1).
func DecodeSymbol(b []byte) (Symbol, int, error) {
	if len(b) < symbolHeaderSize {
		return Symbol{}, 0, ErrTruncated
	}
	index := binary.BigEndian.Uint32(b[0:4])
	nameLen := int(binary.BigEndian.Uint16(b[4:6]))
	typ := b[6]
	total := symbolHeaderSize + nameLen
	if len(b) < total {
		return Symbol{}, 0, ErrTruncated
	}
	name := string(b[symbolHeaderSize:total])
	aligned := align8(total)
	return Symbol{Index: index, Type: typ, Name: name}, aligned, nil
}

// EncodeSymbol appends one 8-byte-aligned symbol entry to dst.
func EncodeSymbol(s Symbol, dst []byte) []byte {
	hdr := make([]byte, symbolHeaderSize)
	binary.BigEndian.PutUint32(hdr[0:4], s.Index)
	binary.BigEndian.PutUint16(hdr[4:6], uint16(len(s.Name)))
	hdr[6] = s.Type
	dst = append(dst, hdr...)
	dst = append(dst, s.Name...)
	for len(dst)%8 != 0 {
		dst = append(dst, 0)
	}
	return dst
}

const FunctionInfoSize = 8

func DecodeFunctionInfo(b []byte) FunctionInfo {
	return FunctionInfo{EvalStrategy: b[0], EvalStrategyMask: b[1]}
}

func EncodeFunctionInfo(fi FunctionInfo, b []byte) {
	b[0] = fi.EvalStrategy
	b[1] = fi.EvalStrategyMask
	for i := 2; i < FunctionInfoSize; i++ {
		b[i] = 0
	}
}

func align8(n int) int {
	if r := n % 8; r != 0 {
		return n + (8 - r)
	}
	return n
}
