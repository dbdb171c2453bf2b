package vm

// This file implements spec.md §4.3's element access, concatenation/length,
// and linear-discipline (unique-object) operations. It is the shared
// primitive layer vm/interp's opcode table calls into; the opcode table
// itself only does operand fetching/dispatch.

func checkBase(o *Object, want ObjType) ErrorCode {
	if o == nil {
		return ErrIncorrectValue
	}
	if o.Type.Base() != want {
		return ErrIncorrectObject
	}
	return Success
}

func boundsCheck(i, length uint32) ErrorCode {
	if i >= length {
		return ErrIndexOutOfBounds
	}
	return Success
}

// Elem reads element i of a shared (non-unique) array/tuple object. Unique
// containers are rejected — callers must go through UniqueElem instead
// (spec.md §4.4: "RIANTH... reject unique containers (use RU*NTH for
// those)").
func Elem(ref Reference, i uint32, want ObjType) (Value, ErrorCode) {
	if ref.HasNil() {
		return ErrorValue(), ErrIncorrectValue
	}
	o := ref.Ptr
	if o.IsUnique() {
		return ErrorValue(), ErrUniqueObject
	}
	if code := checkBase(o, want); code != Success {
		return ErrorValue(), code
	}
	if code := boundsCheck(i, o.Length); code != Success {
		return ErrorValue(), code
	}
	return rawElem(o, i), Success
}

func rawElem(o *Object, i uint32) Value {
	switch o.Type.Base() {
	case ObjIArray8:
		return IntValue(int64(o.I8[i]))
	case ObjIArray16:
		return IntValue(int64(o.I16[i]))
	case ObjIArray32:
		return IntValue(int64(o.I32[i]))
	case ObjIArray64:
		return IntValue(o.I64[i])
	case ObjSFArray:
		return FloatValue(float64(o.SF[i]))
	case ObjDFArray:
		return FloatValue(o.DF[i])
	case ObjRArray:
		return RefValue(o.R[i])
	case ObjTuple:
		return o.Tuple[i].ToValue()
	default:
		return ErrorValue()
	}
}

// SetElem writes element i of an array/tuple in place, type-checking v
// against the object's element type. It does not check uniqueness: callers
// use it to fill freshly allocated objects (object construction and
// RU*FILL opcodes) and, through UniqueSetElem, to write unique containers.
func SetElem(ref Reference, i uint32, v Value) ErrorCode {
	if ref.HasNil() {
		return ErrIncorrectValue
	}
	o := ref.Ptr
	if code := boundsCheck(i, o.Length); code != Success {
		return code
	}
	switch o.Type.Base() {
	case ObjIArray8:
		if !v.IsInt() {
			return ErrIncorrectValue
		}
		o.I8[i] = int8(v.I())
	case ObjIArray16:
		if !v.IsInt() {
			return ErrIncorrectValue
		}
		o.I16[i] = int16(v.I())
	case ObjIArray32:
		if !v.IsInt() {
			return ErrIncorrectValue
		}
		o.I32[i] = int32(v.I())
	case ObjIArray64:
		if !v.IsInt() {
			return ErrIncorrectValue
		}
		o.I64[i] = v.I()
	case ObjSFArray:
		if !v.IsFloat() {
			return ErrIncorrectValue
		}
		o.SF[i] = float32(v.F())
	case ObjDFArray:
		if !v.IsFloat() {
			return ErrIncorrectValue
		}
		o.DF[i] = v.F()
	case ObjRArray:
		if !v.IsRef() && !v.IsCanceledRef() {
			return ErrIncorrectValue
		}
		o.R[i] = v.R()
	case ObjTuple:
		elem, ok := TupleElemFromValue(v)
		if !ok {
			return ErrIncorrectValue
		}
		// Poisoned-tag write order preserved for documentation fidelity
		// (spec.md §4.3); real concurrent-GC safety here is provided by
		// the collector's stop-the-world guarantee (spec.md §9), so a
		// plain ordered assignment is sufficient.
		o.TupleTypes[i] = TagError // transiently "no reference" to any tracer
		o.Tuple[i] = elem
		o.TupleTypes[i] = elem.Type
	default:
		return ErrIncorrectObject
	}
	return Success
}

// Len returns an array/tuple's element count, rejecting unique containers
// the same way Elem does.
func Len(ref Reference, want ObjType) (int64, ErrorCode) {
	if ref.HasNil() {
		return 0, ErrIncorrectValue
	}
	o := ref.Ptr
	if o.IsUnique() {
		return 0, ErrUniqueObject
	}
	if code := checkBase(o, want); code != Success {
		return 0, code
	}
	return int64(o.Length), Success
}

// UniqueElem is the RU*NTH family: read element i of a unique container,
// returning the element plus a fresh "container'" handle for the same
// object, and transitioning slot (the caller's reference cell) to
// CANCELED_REF (spec.md §4.3, §9's move-only-handle re-architecture).
func UniqueElem(slot *Value, i uint32, want ObjType) (elem Value, container Value, code ErrorCode) {
	if slot.Tag == TagCanceledRef {
		return ErrorValue(), ErrorValue(), ErrAgainUsedUnique
	}
	if !slot.IsUnique() {
		return ErrorValue(), ErrorValue(), ErrUniqueObject
	}
	o := slot.R().Ptr
	if code := checkBase(o, want); code != Success {
		return ErrorValue(), ErrorValue(), code
	}
	if code := boundsCheck(i, o.Length); code != Success {
		return ErrorValue(), ErrorValue(), code
	}
	elem = rawElem(o, i)
	container = RefValue(slot.R())
	slot.Tag = TagCanceledRef
	return elem, container, Success
}

// UniqueSetElem is the RU*SNTH family: write element i of a unique
// container, returning the container handle onward and cancelling slot.
func UniqueSetElem(slot *Value, i uint32, v Value, want ObjType) (container Value, code ErrorCode) {
	if slot.Tag == TagCanceledRef {
		return ErrorValue(), ErrAgainUsedUnique
	}
	if !slot.IsUnique() {
		return ErrorValue(), ErrUniqueObject
	}
	o := slot.R().Ptr
	if code := checkBase(o, want); code != Success {
		return ErrorValue(), code
	}
	if code := boundsCheck(i, o.Length); code != Success {
		return ErrorValue(), code
	}
	if code := SetElem(slot.R(), i, v); code != Success {
		return ErrorValue(), code
	}
	container = RefValue(slot.R())
	slot.Tag = TagCanceledRef
	return container, Success
}

// ToShared implements the RU*TO* family: copies a unique container's
// elements into a fresh shared object and returns the shared copy — the
// original slot is NOT cancelled, since the caller keeps using it
// (spec.md §4.3: "retains the original for the caller's continued use").
// RARRAY/TUPLE reference elements are copied as references (the objects
// they point to are aliased, not copied), and the copy fails with
// ErrUniqueObject if any directly referenced object is unique. Objects
// further down the graph are not checked.
func ToShared(slot Value, alloc func(ObjType, uint32) (*Object, ErrorCode)) (Value, ErrorCode) {
	if !slot.IsUnique() {
		return ErrorValue(), ErrUniqueObject
	}
	src := slot.R().Ptr
	dst, code := alloc(src.Type.Base(), src.Length)
	if code != Success {
		return ErrorValue(), code
	}
	switch src.Type.Base() {
	case ObjIArray8:
		copy(dst.I8, src.I8)
	case ObjIArray16:
		copy(dst.I16, src.I16)
	case ObjIArray32:
		copy(dst.I32, src.I32)
	case ObjIArray64:
		copy(dst.I64, src.I64)
	case ObjSFArray:
		copy(dst.SF, src.SF)
	case ObjDFArray:
		copy(dst.DF, src.DF)
	case ObjRArray:
		for i, r := range src.R {
			if !r.HasNil() && r.Ptr.IsUnique() {
				return ErrorValue(), ErrUniqueObject
			}
			dst.R[i] = r
		}
	case ObjTuple:
		for i, e := range src.Tuple {
			if e.Type == TagRef && !e.R.HasNil() && e.R.Ptr.IsUnique() {
				return ErrorValue(), ErrUniqueObject
			}
			dst.Tuple[i] = e
			dst.TupleTypes[i] = e.Type
		}
	default:
		return ErrorValue(), ErrIncorrectObject
	}
	return RefValue(NewReference(dst)), Success
}

// TupleCanBecomeUnique implements §4.3's shallow uniqueness check for
// converting a freshly-built shared TUPLE to UNIQUE: legal iff no slot
// holds a shared REF that is itself unique.
func TupleCanBecomeUnique(o *Object) bool {
	if o.Type.Base() != ObjTuple {
		return false
	}
	for _, e := range o.Tuple {
		if e.Type == TagRef && !e.R.HasNil() && e.R.Ptr.IsUnique() {
			return false
		}
	}
	return true
}
