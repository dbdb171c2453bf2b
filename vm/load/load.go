// Package load implements spec.md §4.1's program loader: parsing a raw
// image byte slice into validated, in-memory section tables, rejecting
// every malformed-image case the spec enumerates before a single byte of
// it is trusted by the linker or interpreter.
//
// Grounded in original_source/vm/loader.cpp/hpp and vm/format/* for the
// section shapes; the codec itself lives in vm/format (spec.md §6) so
// vm/load only has to walk sections and validate, never hand-decode
// big-endian fields.
package load

import (
	"fmt"

	"letin/vm/format"
)

// Image is a fully parsed, structurally-validated program image: every
// section decoded into host-order values, but relocations not yet applied
// (that is vm/link's job) and evaluation strategy not yet merged into
// function descriptors.
type Image struct {
	Header       format.Header
	Functions    []format.Function
	Vars         []format.Value
	Code         []format.Instruction
	Data         []byte
	Relocations  []format.Relocation
	Symbols      []format.Symbol
	FunctionInfo []format.FunctionInfo
}

// Error wraps a validation failure with the section it was found in, so
// callers (and tests) can assert on *which* rule fired without string
// matching.
type Error struct {
	Section string
	Err     error
}

func (e *Error) Error() string { return fmt.Sprintf("load: %s: %v", e.Section, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func fail(section string, err error) error { return &Error{Section: section, Err: err} }

// Load parses and validates a raw image, per spec.md §4.1: "decodes and
// validates every byte of the image before constructing a single object;
// a structurally invalid image is rejected wholesale, never partially
// loaded."
func Load(b []byte) (*Image, error) {
	h, err := format.DecodeHeader(b)
	if err != nil {
		return nil, fail("header", err)
	}
	if h.Magic != format.Magic {
		return nil, fail("header", format.ErrBadMagic)
	}

	off := format.HeaderSize
	img := &Image{Header: h}

	img.Functions, off, err = decodeFunctions(b, off, int(h.FunCount))
	if err != nil {
		return nil, fail("functions", err)
	}
	img.Vars, off, err = decodeVars(b, off, int(h.VarCount))
	if err != nil {
		return nil, fail("vars", err)
	}
	img.Code, off, err = decodeCode(b, off, int(h.CodeSize))
	if err != nil {
		return nil, fail("code", err)
	}
	img.Data, off, err = decodeData(b, off, int(h.DataSize))
	if err != nil {
		return nil, fail("data", err)
	}
	img.Relocations, off, err = decodeRelocations(b, off, int(h.RelocCount))
	if err != nil {
		return nil, fail("relocations", err)
	}
	img.Symbols, off, err = decodeSymbols(b, off, int(h.SymbolCount))
	if err != nil {
		return nil, fail("symbols", err)
	}
	if h.Flags&format.FlagFunInfos != 0 {
		img.FunctionInfo, off, err = decodeFunctionInfos(b, off, int(h.FunCount))
		if err != nil {
			return nil, fail("funinfo", err)
		}
	}
	_ = off

	if err := img.validate(); err != nil {
		return nil, err
	}
	return img, nil
}

func decodeFunctions(b []byte, off, count int) ([]format.Function, int, error) {
	out := make([]format.Function, count)
	for i := 0; i < count; i++ {
		end := off + format.FunctionSize
		if end > len(b) {
			return nil, off, format.ErrTruncated
		}
		out[i] = format.DecodeFunction(b[off:end])
		off = end
	}
	return out, off, nil
}

func decodeVars(b []byte, off, count int) ([]format.Value, int, error) {
	out := make([]format.Value, count)
	for i := 0; i < count; i++ {
		end := off + format.ValueSize
		if end > len(b) {
			return nil, off, format.ErrTruncated
		}
		out[i] = format.DecodeValue(b[off:end])
		off = end
	}
	return out, off, nil
}

func decodeCode(b []byte, off, byteSize int) ([]format.Instruction, int, error) {
	if byteSize%format.InstructionSize != 0 {
		return nil, off, fmt.Errorf("code size %d not a multiple of instruction size", byteSize)
	}
	end := off + byteSize
	if end > len(b) {
		return nil, off, format.ErrTruncated
	}
	n := byteSize / format.InstructionSize
	out := make([]format.Instruction, n)
	for i := 0; i < n; i++ {
		s := off + i*format.InstructionSize
		out[i] = format.DecodeInstruction(b[s : s+format.InstructionSize])
	}
	return out, end, nil
}

func decodeData(b []byte, off, byteSize int) ([]byte, int, error) {
	end := off + byteSize
	if end > len(b) {
		return nil, off, format.ErrTruncated
	}
	return b[off:end], end, nil
}

func decodeRelocations(b []byte, off, count int) ([]format.Relocation, int, error) {
	out := make([]format.Relocation, count)
	for i := 0; i < count; i++ {
		end := off + format.RelocationSize
		if end > len(b) {
			return nil, off, format.ErrTruncated
		}
		out[i] = format.DecodeRelocation(b[off:end])
		off = end
	}
	return out, off, nil
}

func decodeSymbols(b []byte, off, count int) ([]format.Symbol, int, error) {
	out := make([]format.Symbol, count)
	for i := 0; i < count; i++ {
		if off > len(b) {
			return nil, off, format.ErrTruncated
		}
		s, n, err := format.DecodeSymbol(b[off:])
		if err != nil {
			return nil, off, err
		}
		out[i] = s
		off += n
	}
	return out, off, nil
}

func decodeFunctionInfos(b []byte, off, count int) ([]format.FunctionInfo, int, error) {
	out := make([]format.FunctionInfo, count)
	for i := 0; i < count; i++ {
		end := off + format.FunctionInfoSize
		if end > len(b) {
			return nil, off, format.ErrTruncated
		}
		out[i] = format.DecodeFunctionInfo(b[off:end])
		off = end
	}
	return out, off, nil
}

// validate checks the cross-section invariants spec.md §4.1 enumerates:
// every function's code range falls inside the code section, every
// relocation addresses something that exists, every symbol index names a
// function/var/native-fun slot in range, and entry (when the image is not
// a library) names a valid, argument-less function.
func (img *Image) validate() error {
	codeLen := uint32(len(img.Code))
	for i, f := range img.Functions {
		if f.Addr > codeLen || uint64(f.Addr)+uint64(f.InstrCount) > uint64(codeLen) {
			return fail("functions", fmt.Errorf("function %d: code range [%d,%d) out of bounds (code len %d)", i, f.Addr, f.Addr+f.InstrCount, codeLen))
		}
	}

	funCount := uint32(len(img.Functions))
	varCount := uint32(len(img.Vars))
	for i, r := range img.Relocations {
		if err := img.validateRelocation(r); err != nil {
			return fail("relocations", fmt.Errorf("relocation %d: %w", i, err))
		}
	}
	for i, s := range img.Symbols {
		switch s.Kind() {
		case format.SymbolFun:
			if s.Index >= funCount {
				return fail("symbols", fmt.Errorf("symbol %d (%q): function index %d out of range", i, s.Name, s.Index))
			}
		case format.SymbolVar:
			if s.Index >= varCount {
				return fail("symbols", fmt.Errorf("symbol %d (%q): var index %d out of range", i, s.Name, s.Index))
			}
		case format.SymbolNativeFun:
			// Native-function indices are resolved against a handler
			// registry supplied at link time, not against this image.
		default:
			return fail("symbols", fmt.Errorf("symbol %d (%q): unknown kind %d", i, s.Name, s.Kind()))
		}
	}

	if img.Header.Flags&format.FlagLibrary == 0 {
		if img.Header.Entry >= funCount {
			return fail("header", fmt.Errorf("entry function index %d out of range (%d functions)", img.Header.Entry, funCount))
		}
		if img.Functions[img.Header.Entry].ArgCount != 0 {
			return fail("header", fmt.Errorf("entry function %d must take no arguments", img.Header.Entry))
		}
	}

	if len(img.FunctionInfo) != 0 && len(img.FunctionInfo) != len(img.Functions) {
		return fail("funinfo", fmt.Errorf("function-info count %d does not match function count %d", len(img.FunctionInfo), len(img.Functions)))
	}

	return nil
}

func (img *Image) validateRelocation(r format.Relocation) error {
	symbolic := r.Type&format.RelocSymbolicBit != 0
	typ := r.Type &^ format.RelocSymbolicBit

	if symbolic {
		if r.Symbol >= uint32(len(img.Symbols)) {
			return fmt.Errorf("symbol table index %d out of range", r.Symbol)
		}
	}

	switch typ {
	case format.RelocArg1Fun, format.RelocArg2Fun, format.RelocElemFun, format.RelocVarFun:
		switch addr := r.Addr; typ {
		case format.RelocElemFun:
			if addr >= uint32(len(img.Data)) {
				return fmt.Errorf("data address %d out of range", addr)
			}
		case format.RelocArg1Fun, format.RelocArg2Fun:
			if addr >= uint32(len(img.Code))*format.InstructionSize {
				return fmt.Errorf("code address %d out of range", addr)
			}
		}
		if !symbolic && r.Symbol >= uint32(len(img.Functions)) {
			return fmt.Errorf("function index %d out of range", r.Symbol)
		}
	case format.RelocArg1Var, format.RelocArg2Var:
		if !symbolic && r.Symbol >= uint32(len(img.Vars)) {
			return fmt.Errorf("var index %d out of range", r.Symbol)
		}
	case format.RelocArg1NativeFun, format.RelocArg2NativeFun, format.RelocElemNativeFun, format.RelocVarNativeFun:
		// Native-function index validity depends on the handler registry
		// supplied at link time.
	default:
		return fmt.Errorf("unknown relocation type %d", typ)
	}
	return nil
}
