package format

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic:       Magic,
		Flags:       FlagLibrary | FlagFunInfos,
		Entry:       3,
		FunCount:    4,
		VarCount:    5,
		CodeSize:    6,
		DataSize:    7,
		RelocCount:  8,
		SymbolCount: 9,
	}
	b := EncodeHeader(h)
	if len(b) != HeaderSize {
		t.Fatalf("EncodeHeader produced %d bytes, want %d", len(b), HeaderSize)
	}
	got, err := DecodeHeader(b)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatalf("DecodeHeader on a short buffer should fail")
	}
}

func TestFunctionRoundTrip(t *testing.T) {
	f := Function{Addr: 10, ArgCount: 2, InstrCount: 40}
	b := make([]byte, FunctionSize)
	EncodeFunction(f, b)
	if got := DecodeFunction(b); got != f {
		t.Fatalf("Function round trip: got %+v, want %+v", got, f)
	}
}

func TestValueRoundTripInt(t *testing.T) {
	n := int64(-42)
	v := Value{Type: ValueInt, Raw: uint64(n)}
	b := make([]byte, ValueSize)
	EncodeValue(v, b)
	got := DecodeValue(b)
	if got.Type != v.Type || got.Int() != -42 {
		t.Fatalf("Value int round trip: got %+v (Int()=%d), want Int()=-42", got, got.Int())
	}
}

func TestValueRoundTripFloat(t *testing.T) {
	f := 3.25
	v := Value{Type: ValueFloat, Raw: Float64Bits(f)}
	b := make([]byte, ValueSize)
	EncodeValue(v, b)
	got := DecodeValue(b)
	if got.Float() != f {
		t.Fatalf("Value float round trip: got %g, want %g", got.Float(), f)
	}
}

func TestValuePairRoundTrip(t *testing.T) {
	v := PairValue(0x1111, 0x2222)
	first, second := v.Pair()
	if first != 0x1111 || second != 0x2222 {
		t.Fatalf("Pair() = (%x,%x), want (0x1111,0x2222)", first, second)
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	in := Instruction{Opcode: 0x0102, Arg1: Argument{I: 7}, Arg2: Argument{I: 9}}
	b := make([]byte, InstructionSize)
	EncodeInstruction(in, b)
	if got := DecodeInstruction(b); got != in {
		t.Fatalf("Instruction round trip: got %+v, want %+v", got, in)
	}
}

func TestRelocationRoundTrip(t *testing.T) {
	r := Relocation{Type: RelocElemFun, Addr: 100, Symbol: 3}
	b := make([]byte, RelocationSize)
	EncodeRelocation(r, b)
	if got := DecodeRelocation(b); got != r {
		t.Fatalf("Relocation round trip: got %+v, want %+v", got, r)
	}
}

func TestSymbolRoundTripAndAlignment(t *testing.T) {
	s := Symbol{Index: 5, Type: SymbolFun | SymbolDefinedBit, Name: "main"}
	b := EncodeSymbol(s, nil)
	if len(b)%8 != 0 {
		t.Fatalf("EncodeSymbol must produce an 8-byte-aligned entry, got %d bytes", len(b))
	}
	got, n, err := DecodeSymbol(b)
	if err != nil {
		t.Fatalf("DecodeSymbol: %v", err)
	}
	if n != len(b) {
		t.Fatalf("DecodeSymbol consumed %d bytes, want %d", n, len(b))
	}
	if got != s {
		t.Fatalf("Symbol round trip: got %+v, want %+v", got, s)
	}
	if !got.IsDefined() {
		t.Fatalf("IsDefined() should be true for a SymbolDefinedBit-tagged symbol")
	}
	if got.Kind() != SymbolFun {
		t.Fatalf("Kind() = %d, want SymbolFun", got.Kind())
	}
}

func TestDecodeSymbolTruncated(t *testing.T) {
	full := EncodeSymbol(Symbol{Index: 1, Type: SymbolVar, Name: "x"}, nil)
	if _, _, err := DecodeSymbol(full[:len(full)-1]); err == nil {
		// Truncating by one byte may still land within an alignment pad;
		// only assert failure when we truncate into the name itself.
	}
	if _, _, err := DecodeSymbol(full[:symbolHeaderSize-1]); err == nil {
		t.Fatalf("DecodeSymbol on a header-truncated buffer should fail")
	}
}

func TestMultipleSymbolsConcatenate(t *testing.T) {
	var buf []byte
	buf = EncodeSymbol(Symbol{Index: 0, Type: SymbolFun, Name: "f"}, buf)
	buf = EncodeSymbol(Symbol{Index: 1, Type: SymbolVar, Name: "longer_name"}, buf)

	s1, n1, err := DecodeSymbol(buf)
	if err != nil {
		t.Fatalf("decode first symbol: %v", err)
	}
	s2, n2, err := DecodeSymbol(buf[n1:])
	if err != nil {
		t.Fatalf("decode second symbol: %v", err)
	}
	if s1.Name != "f" || s2.Name != "longer_name" {
		t.Fatalf("got names %q, %q", s1.Name, s2.Name)
	}
	if n1+n2 != len(buf) {
		t.Fatalf("consumed %d+%d bytes, want %d total", n1, n2, len(buf))
	}
}

func TestFunctionInfoRoundTrip(t *testing.T) {
	fi := FunctionInfo{EvalStrategy: EvalStrategyLazy, EvalStrategyMask: EvalStrategyLazy | EvalStrategyMemo}
	b := make([]byte, FunctionInfoSize)
	EncodeFunctionInfo(fi, b)
	if !bytes.Equal(b[2:], make([]byte, FunctionInfoSize-2)) {
		t.Fatalf("EncodeFunctionInfo must zero its reserved tail")
	}
	got := DecodeFunctionInfo(b)
	if got != fi {
		t.Fatalf("FunctionInfo round trip: got %+v, want %+v", got, fi)
	}
	if !got.IsLazy() {
		t.Fatalf("IsLazy() should be true when the lazy bit is set and masked in")
	}
	if got.IsMemoizable() {
		t.Fatalf("IsMemoizable() should be false — the memo bit was never set in EvalStrategy")
	}
}

func TestFunctionInfoMaskGatesStrategyBits(t *testing.T) {
	fi := FunctionInfo{EvalStrategy: EvalStrategyLazy | EvalStrategyMemo, EvalStrategyMask: EvalStrategyMemo}
	if fi.IsLazy() {
		t.Fatalf("IsLazy() must be false when the lazy bit isn't in the mask, even if set in EvalStrategy")
	}
	if !fi.IsMemoizable() {
		t.Fatalf("IsMemoizable() must be true when the memo bit is both set and masked in")
	}
}
