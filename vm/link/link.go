// Package link implements spec.md §4.2's linker for a single image: symbol
// resolution, relocation patching, and immortal object construction for
// global variables backed by the data section. Link takes one image and
// keeps that image's own function and variable indices; linking several
// images together into one index space is not done.
//
// Grounded in original_source/vm/loader.cpp's link_functions/link_vars
// passes and vm/impl_gc_base.cpp's constant-pool construction; the
// resulting Program is what vm/interp's scheduler actually runs.
package link

import (
	"encoding/binary"
	"fmt"
	"math"

	"letin/vm"
	"letin/vm/format"
	"letin/vm/gc"
	"letin/vm/load"
)

// NativeResolver translates a symbolic native-function name into the index
// a NativeFunctionHandler chose for it (spec.md §4.2) — vm/native.Multi
// satisfies this.
type NativeResolver interface {
	ResolveByName(name string) (int, bool)
}

// Program is a fully linked, ready-to-run image: relocations applied,
// globals materialized as immortal heap objects, symbols resolved.
type Program struct {
	Functions    []format.Function
	FunctionInfo []format.FunctionInfo
	Code         []format.Instruction
	Globals      []vm.Value
	Entry        uint32
	Library      bool
}

// Error reports a link-time failure, per spec.md §4.2's ENTRY / FUN_SYM /
// VAR_SYM / NO_FUN_SYM / NO_VAR_SYM family of rejections.
type Error struct {
	Code vm.ErrorCode
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("link: %s (%s)", e.Msg, e.Code) }

func fail(code vm.ErrorCode, format_ string, args ...interface{}) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format_, args...)}
}

// Link resolves img against an optional NativeResolver (nil if the image
// uses no native functions) and a heap to materialize global-variable
// objects into, producing a runnable Program.
func Link(img *load.Image, heap *gc.Heap, natives NativeResolver) (*Program, error) {
	data := append([]byte(nil), img.Data...)
	l := &linker{img: img, heap: heap, natives: natives, data: data, built: make(map[uint32]*vm.Object)}

	code := append([]format.Instruction(nil), img.Code...)
	globals := make([]vm.Value, len(img.Vars))

	// Data-section element relocations (ELEM_FUN/ELEM_NATIVE_FUN) must land
	// before buildGlobals reads the bytes they patch; var-index and
	// code-operand relocations are independent of materialization order.
	for i, r := range img.Relocations {
		typ := r.Type &^ format.RelocSymbolicBit
		switch typ {
		case format.RelocElemFun, format.RelocElemNativeFun:
			if err := l.apply(code, globals, r); err != nil {
				return nil, fmt.Errorf("link: relocation %d: %w", i, err)
			}
		}
	}

	built, err := l.buildGlobals()
	if err != nil {
		return nil, err
	}
	globals = built

	for i, r := range img.Relocations {
		typ := r.Type &^ format.RelocSymbolicBit
		switch typ {
		case format.RelocElemFun, format.RelocElemNativeFun:
			continue // already applied above
		}
		if err := l.apply(code, globals, r); err != nil {
			return nil, fmt.Errorf("link: relocation %d: %w", i, err)
		}
	}

	funInfo := img.FunctionInfo
	if len(funInfo) == 0 {
		funInfo = make([]format.FunctionInfo, len(img.Functions))
	}

	return &Program{
		Functions:    img.Functions,
		FunctionInfo: funInfo,
		Code:         code,
		Globals:      globals,
		Entry:        img.Header.Entry,
		Library:      img.Header.Flags&format.FlagLibrary != 0,
	}, nil
}

type linker struct {
	img     *load.Image
	heap    *gc.Heap
	natives NativeResolver
	data    []byte // mutable copy of img.Data, patched by ELEM_FUN relocations before materialization
	built   map[uint32]*vm.Object // data-section offset -> materialized object
}

// buildGlobals converts every on-disk format.Value describing a global
// variable into a run-time vm.Value, materializing REF-typed ones from the
// data section as immortal objects (spec.md §4.2: "Objects constructed
// here are marked immortal — they live for the process's duration, the way
// the image's own constant pool does").
func (l *linker) buildGlobals() ([]vm.Value, error) {
	out := make([]vm.Value, len(l.img.Vars))
	for i, raw := range l.img.Vars {
		v, err := l.convertValue(raw)
		if err != nil {
			return nil, fmt.Errorf("link: global %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (l *linker) convertValue(raw format.Value) (vm.Value, error) {
	switch raw.Type {
	case format.ValueInt:
		return vm.IntValue(raw.Int()), nil
	case format.ValueFloat:
		return vm.FloatValue(raw.Float()), nil
	case format.ValueRef:
		obj, err := l.materialize(uint32(raw.Raw))
		if err != nil {
			return vm.Value{}, err
		}
		return vm.RefValue(vm.Reference{Ptr: obj}), nil
	case format.ValueError:
		return vm.ErrorValue(), nil
	default:
		return vm.Value{}, fail(vm.ErrLoading, "global variable has disallowed wire type %d", raw.Type)
	}
}

// materialize builds (and caches) the immortal object rooted at a data
// section byte offset.
func (l *linker) materialize(offset uint32) (*vm.Object, error) {
	if obj, ok := l.built[offset]; ok {
		return obj, nil
	}
	data := l.data
	if int(offset)+format.ObjectHeaderSize > len(data) {
		return nil, fmt.Errorf("data object at %d: header out of bounds", offset)
	}
	hdr := format.DecodeObjectHeader(data[offset:])
	size, err := format.ObjectByteSize(hdr)
	if err != nil {
		return nil, fmt.Errorf("data object at %d: %w", offset, err)
	}
	if uint64(offset)+size > uint64(len(data)) {
		return nil, fmt.Errorf("data object at %d: body out of bounds", offset)
	}

	objType := vm.ObjType(hdr.Type)
	obj := l.heap.NewImmortalObject(objType, hdr.Length)
	// Placeholder registered before recursing, so a self-referential
	// RArray (spec.md's data section may encode cyclic constant structures)
	// doesn't infinitely recurse.
	l.built[offset] = obj

	body := data[offset+format.ObjectHeaderSize : offset+uint32(size)]
	if err := l.fillObject(obj, objType, hdr.Length, body); err != nil {
		return nil, fmt.Errorf("data object at %d: %w", offset, err)
	}
	return obj, nil
}

func (l *linker) fillObject(obj *vm.Object, objType vm.ObjType, length uint32, body []byte) error {
	switch objType.Base() {
	case vm.ObjIArray8:
		for i := uint32(0); i < length; i++ {
			obj.I8[i] = int8(body[i])
		}
	case vm.ObjIArray16:
		for i := uint32(0); i < length; i++ {
			obj.I16[i] = int16(binary.BigEndian.Uint16(body[i*2:]))
		}
	case vm.ObjIArray32:
		for i := uint32(0); i < length; i++ {
			obj.I32[i] = int32(binary.BigEndian.Uint32(body[i*4:]))
		}
	case vm.ObjIArray64:
		for i := uint32(0); i < length; i++ {
			obj.I64[i] = int64(binary.BigEndian.Uint64(body[i*8:]))
		}
	case vm.ObjSFArray:
		for i := uint32(0); i < length; i++ {
			obj.SF[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
		}
	case vm.ObjDFArray:
		for i := uint32(0); i < length; i++ {
			obj.DF[i] = math.Float64frombits(binary.BigEndian.Uint64(body[i*8:]))
		}
	case vm.ObjRArray:
		for i := uint32(0); i < length; i++ {
			off := binary.BigEndian.Uint32(body[i*4:])
			elem, err := l.materialize(off)
			if err != nil {
				return err
			}
			obj.R[i] = vm.Reference{Ptr: elem}
		}
	case vm.ObjTuple:
		tailOff := format.TupleTypeTailOffset(length) - format.ObjectHeaderSize
		for i := uint32(0); i < length; i++ {
			cell := body[i*8 : i*8+8]
			elemType := format.TupleElemType(body[int(tailOff)+int(i)])
			if !elemType.Valid() {
				return fmt.Errorf("tuple element %d: invalid type byte %d", i, elemType)
			}
			tag := vm.Tag(elemType)
			obj.TupleTypes[i] = tag
			switch tag {
			case vm.TagInt:
				obj.Tuple[i] = vm.TupleElem{Type: tag, I: int64(binary.BigEndian.Uint64(cell))}
			case vm.TagFloat:
				obj.Tuple[i] = vm.TupleElem{Type: tag, F: math.Float64frombits(binary.BigEndian.Uint64(cell))}
			case vm.TagRef:
				off := binary.BigEndian.Uint32(cell[4:8])
				elem, err := l.materialize(off)
				if err != nil {
					return err
				}
				obj.Tuple[i] = vm.TupleElem{Type: tag, R: vm.Reference{Ptr: elem}}
			}
		}
	case vm.ObjIO, vm.ObjLazyValue, vm.ObjNative:
		return fmt.Errorf("object type %d cannot be constant-pool data", objType)
	}
	return nil
}

// apply patches one relocation into either the code section (instruction
// operands) or the data section (object element cells), per spec.md §4.2's
// relocation-type table.
func (l *linker) apply(code []format.Instruction, globals []vm.Value, r format.Relocation) error {
	symbolic := r.Type&format.RelocSymbolicBit != 0
	typ := r.Type &^ format.RelocSymbolicBit

	resolveFun := func() (uint32, error) {
		if !symbolic {
			return r.Symbol, nil
		}
		sym := l.img.Symbols[r.Symbol]
		if !sym.IsDefined() || sym.Kind() != format.SymbolFun {
			return 0, fail(vm.ErrNoFunSym, "undefined function symbol %q", sym.Name)
		}
		return sym.Index, nil
	}
	resolveVar := func() (uint32, error) {
		if !symbolic {
			return r.Symbol, nil
		}
		sym := l.img.Symbols[r.Symbol]
		if !sym.IsDefined() || sym.Kind() != format.SymbolVar {
			return 0, fail(vm.ErrNoVarSym, "undefined variable symbol %q", sym.Name)
		}
		return sym.Index, nil
	}
	resolveNativeFun := func() (uint32, error) {
		var name string
		if symbolic {
			sym := l.img.Symbols[r.Symbol]
			if sym.Kind() != format.SymbolNativeFun {
				return 0, fail(vm.ErrNoNativeFunSym, "symbol %q is not a native function", sym.Name)
			}
			name = sym.Name
		}
		if l.natives == nil {
			return 0, fail(vm.ErrNoNativeFunSym, "image references native functions but no handler is linked")
		}
		if symbolic {
			idx, ok := l.natives.ResolveByName(name)
			if !ok {
				return 0, fail(vm.ErrNoNativeFunSym, "undefined native function symbol %q", name)
			}
			return uint32(idx), nil
		}
		return r.Symbol, nil
	}

	switch typ {
	case format.RelocArg1Fun, format.RelocArg2Fun:
		idx, instr, err := decodeCodeAddr(code, r.Addr)
		if err != nil {
			return err
		}
		v, err := resolveFun()
		if err != nil {
			return err
		}
		setArg(instr, typ == format.RelocArg2Fun, v)
		code[idx] = *instr
	case format.RelocArg1Var, format.RelocArg2Var:
		idx, instr, err := decodeCodeAddr(code, r.Addr)
		if err != nil {
			return err
		}
		v, err := resolveVar()
		if err != nil {
			return err
		}
		setArg(instr, typ == format.RelocArg2Var, v)
		code[idx] = *instr
	case format.RelocArg1NativeFun, format.RelocArg2NativeFun:
		idx, instr, err := decodeCodeAddr(code, r.Addr)
		if err != nil {
			return err
		}
		v, err := resolveNativeFun()
		if err != nil {
			return err
		}
		setArg(instr, typ == format.RelocArg2NativeFun, v)
		code[idx] = *instr
	case format.RelocElemFun, format.RelocVarFun:
		v, err := resolveFun()
		if err != nil {
			return err
		}
		return l.patchGlobalOrElem(globals, typ, r.Addr, v)
	case format.RelocElemNativeFun, format.RelocVarNativeFun:
		v, err := resolveNativeFun()
		if err != nil {
			return err
		}
		return l.patchGlobalOrElem(globals, typ, r.Addr, v)
	default:
		return fmt.Errorf("unknown relocation type %d", typ)
	}
	return nil
}

func decodeCodeAddr(code []format.Instruction, addr uint32) (int, *format.Instruction, error) {
	idx := int(addr / format.InstructionSize)
	if idx < 0 || idx >= len(code) {
		return 0, nil, fmt.Errorf("code address %d out of range", addr)
	}
	return idx, &code[idx], nil
}

func setArg(instr *format.Instruction, second bool, v uint32) {
	if second {
		instr.Arg2.I = v
	} else {
		instr.Arg1.I = v
	}
}

// patchGlobalOrElem handles VAR_FUN/VAR_NATIVE_FUN (Addr names a global
// variable index to overwrite with a function/native-function index value)
// and ELEM_FUN/ELEM_NATIVE_FUN (Addr names the byte offset, within the data
// section, of an IARRAY32 cell to overwrite with a function/native-function
// index). Function/native-function values inside the value model are
// represented as plain ints (the ICALL/FCALL/RCALL and INCALL/FNCALL/RNCALL
// opcodes address functions by integer index, never by REF), so both cases
// degrade to "store this integer".
func (l *linker) patchGlobalOrElem(globals []vm.Value, typ uint32, addr, v uint32) error {
	switch typ {
	case format.RelocVarFun, format.RelocVarNativeFun:
		if int(addr) >= len(globals) {
			return fmt.Errorf("global variable index %d out of range", addr)
		}
		globals[addr] = vm.IntValue(int64(v))
		return nil
	case format.RelocElemFun, format.RelocElemNativeFun:
		if int(addr)+4 > len(l.data) {
			return fmt.Errorf("data address %d out of range", addr)
		}
		binary.BigEndian.PutUint32(l.data[addr:addr+4], v)
		return nil
	}
	return fmt.Errorf("unsupported relocation target type %d", typ)
}
