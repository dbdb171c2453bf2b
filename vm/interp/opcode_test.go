package interp

import "testing"

func TestEncodeDecodeOpcodeRoundTrip(t *testing.T) {
	cases := []struct {
		op     Op
		m1, m2 OperandMode
	}{
		{OpILoad, ModeImmediate, ModeImmediate},
		{OpIAdd, ModeLocalVar, ModeArgument},
		{OpRCall, ModeGlobalVar, ModeLocalVar},
		{OpLetTuple, ModeArgument, ModeGlobalVar},
	}
	for _, c := range cases {
		raw := EncodeOpcode(c.op, c.m1, c.m2)
		op, m1, m2 := DecodeOpcode(raw)
		if op != c.op || m1 != c.m1 || m2 != c.m2 {
			t.Fatalf("DecodeOpcode(EncodeOpcode(%v,%v,%v)) = (%v,%v,%v)", c.op, c.m1, c.m2, op, m1, m2)
		}
	}
}

func TestDecodeOpcodeFieldWidths(t *testing.T) {
	raw := EncodeOpcode(OpIAdd, ModeArgument, ModeGlobalVar)
	if raw&0xF != uint32(ModeGlobalVar) {
		t.Fatalf("low nibble must carry m2, got raw=%x", raw)
	}
	if (raw>>4)&0xF != uint32(ModeArgument) {
		t.Fatalf("second nibble must carry m1, got raw=%x", raw)
	}
	if raw>>8 != uint32(OpIAdd) {
		t.Fatalf("remaining bits must carry the base opcode, got raw=%x", raw)
	}
}
