package link

import (
	"encoding/binary"
	"testing"

	"letin/vm/format"
	"letin/vm/gc"
	"letin/vm/load"
)

func encodeIArray8Object(vals ...byte) []byte {
	hdr := make([]byte, format.ObjectHeaderSize)
	format.EncodeObjectHeader(format.ObjectHeader{Type: format.ObjectIArray8, Length: uint32(len(vals))}, hdr)
	return append(hdr, vals...)
}

func TestLinkMaterializesIntAndFloatGlobals(t *testing.T) {
	img := &load.Image{
		Header: format.Header{Entry: 0},
		Vars: []format.Value{
			{Type: format.ValueInt, Raw: uint64(int64(42))},
			{Type: format.ValueFloat, Raw: format.Float64Bits(1.5)},
		},
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	prog, err := Link(img, heap, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if prog.Globals[0].I() != 42 {
		t.Fatalf("global 0 = %d, want 42", prog.Globals[0].I())
	}
	if prog.Globals[1].F() != 1.5 {
		t.Fatalf("global 1 = %g, want 1.5", prog.Globals[1].F())
	}
}

func TestLinkMaterializesRefGlobalAsImmortal(t *testing.T) {
	data := encodeIArray8Object(10, 20, 30)
	img := &load.Image{
		Header: format.Header{Entry: 0},
		Vars: []format.Value{
			{Type: format.ValueRef, Raw: 0},
		},
		Data: data,
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	prog, err := Link(img, heap, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	v := prog.Globals[0]
	if !v.IsRef() {
		t.Fatalf("global 0 should be a REF, got Tag=%v", v.Tag)
	}
	obj := v.R().Ptr
	if !obj.Immortal {
		t.Fatalf("a data-section-materialized global must be Immortal")
	}
	if len(obj.I8) != 3 || obj.I8[0] != 10 || obj.I8[1] != 20 || obj.I8[2] != 30 {
		t.Fatalf("materialized object payload = %v, want [10 20 30]", obj.I8)
	}
}

func TestLinkMaterializeHandlesSelfReferentialRArray(t *testing.T) {
	// An RARRAY of length 1 at offset 0 whose single element points back to
	// offset 0 itself — must not infinite-loop.
	hdr := make([]byte, format.ObjectHeaderSize)
	format.EncodeObjectHeader(format.ObjectHeader{Type: format.ObjectRArray, Length: 1}, hdr)
	elemOff := make([]byte, 4)
	binary.BigEndian.PutUint32(elemOff, 0)
	data := append(hdr, elemOff...)

	img := &load.Image{
		Header: format.Header{Entry: 0},
		Vars:   []format.Value{{Type: format.ValueRef, Raw: 0}},
		Data:   data,
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	prog, err := Link(img, heap, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	obj := prog.Globals[0].R().Ptr
	if obj.R[0].Ptr != obj {
		t.Fatalf("self-referential RARRAY must resolve to itself, got a distinct object")
	}
}

func TestLinkAppliesArg1FunRelocation(t *testing.T) {
	code := []format.Instruction{{Opcode: 1, Arg1: format.Argument{I: 0xFFFFFFFF}}}
	img := &load.Image{
		Header:    format.Header{Entry: 0},
		Functions: []format.Function{{Addr: 0, ArgCount: 0, InstrCount: 1}},
		Code:      code,
		Relocations: []format.Relocation{
			{Type: format.RelocArg1Fun, Addr: 0, Symbol: 5},
		},
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	prog, err := Link(img, heap, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if prog.Code[0].Arg1.I != 5 {
		t.Fatalf("Arg1 after relocation = %d, want 5", prog.Code[0].Arg1.I)
	}
}

func TestLinkElemFunRelocationPatchesDataBeforeMaterialization(t *testing.T) {
	// An IARRAY32 object of length 1 in the data section whose single cell
	// gets overwritten by an ELEM_FUN relocation before any global reads it.
	hdr := make([]byte, format.ObjectHeaderSize)
	format.EncodeObjectHeader(format.ObjectHeader{Type: format.ObjectIArray32, Length: 1}, hdr)
	cell := make([]byte, 4) // placeholder, patched by the relocation
	data := append(hdr, cell...)

	img := &load.Image{
		Header: format.Header{Entry: 0},
		Vars:   []format.Value{{Type: format.ValueRef, Raw: 0}},
		Data:   data,
		Relocations: []format.Relocation{
			{Type: format.RelocElemFun, Addr: uint32(format.ObjectHeaderSize), Symbol: 7},
		},
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	prog, err := Link(img, heap, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	obj := prog.Globals[0].R().Ptr
	if obj.I32[0] != 7 {
		t.Fatalf("ELEM_FUN-patched cell = %d, want 7 (patched before materialization)", obj.I32[0])
	}
}

func TestLinkRejectsUndefinedSymbolicFunRelocation(t *testing.T) {
	code := []format.Instruction{{Opcode: 1}}
	img := &load.Image{
		Header:    format.Header{Entry: 0},
		Functions: []format.Function{{Addr: 0, ArgCount: 0, InstrCount: 1}},
		Code:      code,
		Symbols:   []format.Symbol{{Index: 0, Type: format.SymbolFun, Name: "undef"}}, // not SymbolDefinedBit
		Relocations: []format.Relocation{
			{Type: format.RelocArg1Fun | format.RelocSymbolicBit, Addr: 0, Symbol: 0},
		},
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	if _, err := Link(img, heap, nil); err == nil {
		t.Fatalf("Link with an undefined function symbol relocation should fail")
	}
}

func TestLinkRejectsNativeFunRelocationWithoutResolver(t *testing.T) {
	code := []format.Instruction{{Opcode: 1}}
	img := &load.Image{
		Header:    format.Header{Entry: 0},
		Functions: []format.Function{{Addr: 0, ArgCount: 0, InstrCount: 1}},
		Code:      code,
		Relocations: []format.Relocation{
			{Type: format.RelocArg1NativeFun, Addr: 0, Symbol: 3},
		},
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	if _, err := Link(img, heap, nil); err == nil {
		t.Fatalf("Link referencing a native function with no resolver linked should fail")
	}
}

type fakeResolver struct{ names map[string]int }

func (f fakeResolver) ResolveByName(name string) (int, bool) {
	i, ok := f.names[name]
	return i, ok
}

func TestLinkResolvesSymbolicNativeFunByName(t *testing.T) {
	code := []format.Instruction{{Opcode: 1}}
	img := &load.Image{
		Header:    format.Header{Entry: 0},
		Functions: []format.Function{{Addr: 0, ArgCount: 0, InstrCount: 1}},
		Code:      code,
		Symbols:   []format.Symbol{{Index: 0, Type: format.SymbolNativeFun | format.SymbolDefinedBit, Name: "posix_open"}},
		Relocations: []format.Relocation{
			{Type: format.RelocArg1NativeFun | format.RelocSymbolicBit, Addr: 0, Symbol: 0},
		},
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	resolver := fakeResolver{names: map[string]int{"posix_open": 4}}
	prog, err := Link(img, heap, resolver)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if prog.Code[0].Arg1.I != 4 {
		t.Fatalf("Arg1 after symbolic native-fun relocation = %d, want 4", prog.Code[0].Arg1.I)
	}
}

func TestLinkPreservesLibraryFlagAndEntry(t *testing.T) {
	img := &load.Image{
		Header: format.Header{Flags: format.FlagLibrary, Entry: 0},
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	prog, err := Link(img, heap, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !prog.Library {
		t.Fatalf("Library flag must propagate to Program.Library")
	}
}
