package vm

import "sync"

// TupleElem is one slot of a TUPLE object: a numeric or reference payload
// tagged with the element type the loader validated (spec.md §4.1: only
// INT/FLOAT/REF are legal tuple element types).
type TupleElem struct {
	Type Tag // TagInt, TagFloat or TagRef — nothing else is legal
	I    int64
	F    float64
	R    Reference
}

func (e TupleElem) ToValue() Value {
	switch e.Type {
	case TagInt:
		return IntValue(e.I)
	case TagFloat:
		return FloatValue(e.F)
	case TagRef:
		return RefValue(e.R)
	default:
		return ErrorValue()
	}
}

func TupleElemFromValue(v Value) (TupleElem, bool) {
	switch v.Tag {
	case TagInt:
		return TupleElem{Type: TagInt, I: v.I()}, true
	case TagFloat:
		return TupleElem{Type: TagFloat, F: v.F()}, true
	case TagRef:
		return TupleElem{Type: TagRef, R: v.R()}, true
	default:
		return TupleElem{}, false
	}
}

// NativeObject is an opaque foreign handle a NativeFunctionHandler created,
// with its own vtable-style finalizer/hash/equal (spec.md §3). Go's own GC
// already reclaims Handle's backing memory; Finalize exists for releasing
// resources a Handle owns outside the Go heap (file descriptors, native
// library state), mirroring include/letin/vm.hpp's NativeObjectFunctions.
type NativeObject struct {
	ClassID uintptr
	Handle  interface{}
	Finalize func(interface{})
	Hash     func(interface{}) uint64
	Equal    func(a, b interface{}) bool
}

// LazyState is the payload of an ObjLazyValue object: the thunk's captured
// call (fun_index, args) plus its resolved-once memo cell and per-thunk
// lock (spec.md §4.5).
type LazyState struct {
	// Mu is the per-thunk computation lock: held for the duration of the
	// captured function's evaluation, so concurrent forcers serialize on
	// it rather than racing to compute the value twice.
	Mu           sync.Mutex
	ValueType    Tag
	MustBeShared bool
	Resolved     bool
	Value        Value
	FunIndex     int
	Args         []Value

	// State guards Resolved/ComputingBy so vm/lazy can detect same-thread
	// reentrancy and the "already resolved" fast path without taking Mu
	// itself (which a reentrant same-thread call would deadlock on).
	State           sync.Mutex
	ComputingBy     int64
	HasComputingBy  bool
}

// Object is the run-time heap record (spec.md §3). Exactly one of the
// payload slices/pointers below is populated, selected by Type.Base().
// Only vm/gc's allocator constructs one (spec.md §4.3: "Only the GC's
// allocator returns a new object").
type Object struct {
	Type   ObjType
	Length uint32

	I8  []int8
	I16 []int16
	I32 []int32
	I64 []int64
	SF  []float32
	DF  []float64
	R   []Reference
	// Tuple holds Length payload slots; TupleTypes holds one element-type
	// byte per slot, kept as a parallel slice so invariant I4 ("the type
	// byte at slot i agrees with the payload at slot i") is checkable by
	// comparing Tuple[i].Type == TupleTypes[i] rather than packed bytes.
	Tuple      []TupleElem
	TupleTypes []Tag

	Native *NativeObject
	Lazy   *LazyState

	// Immortal objects are owned by the Environment (they back global
	// variables) and are never swept by the collector (spec.md §4.2).
	Immortal bool

	// marked is the collector's per-cycle mark bit; only vm/gc touches it,
	// through the exported Marked/SetMark accessors below so the field
	// itself can stay unexported.
	marked bool
}

func (o *Object) Marked() bool  { return o.marked }
func (o *Object) SetMark(v bool) { o.marked = v }

// IsUnique reports whether this object bears the UNIQUE bit (spec.md §3).
func (o *Object) IsUnique() bool { return o.Type.IsUnique() }

// Children returns every Reference this object directly holds, for the
// collector's mark phase. It never allocates when the object holds no
// references (the common case for numeric arrays).
func (o *Object) Children() []Reference {
	switch o.Type.Base() {
	case ObjRArray:
		return o.R
	case ObjTuple:
		if len(o.R) == 0 && len(o.Tuple) > 0 {
			refs := make([]Reference, 0, len(o.Tuple))
			for _, e := range o.Tuple {
				if e.Type == TagRef {
					refs = append(refs, e.R)
				}
			}
			return refs
		}
		return nil
	case ObjLazyValue:
		if o.Lazy == nil {
			return nil
		}
		refs := make([]Reference, 0, len(o.Lazy.Args)+1)
		if o.Lazy.Resolved && o.Lazy.Value.IsRefLike() {
			refs = append(refs, o.Lazy.Value.R())
		}
		for _, a := range o.Lazy.Args {
			if a.IsRefLike() {
				refs = append(refs, a.R())
			}
		}
		return refs
	default:
		return nil
	}
}

// Len returns the element count for array/tuple object types.
func (o *Object) Len() uint32 { return o.Length }
