package vm

import "fmt"

// Value is the run-time tagged cell described in spec.md §3: copyable, and
// always read through one of the typed accessors below rather than the raw
// fields, so a caller can't accidentally interpret a mistagged payload.
//
// Unlike the original's packed 16-byte union (format.Value/ValueRaw), this
// keeps the numeric payload, the pair halves and the reference in separate
// fields instead of a C union; Go has no tagged-union primitive, and the
// teacher codebase never reaches for unsafe.Pointer tricks to fake one, so
// this keeps the same call-site shape (v.I(), v.F(), v.R()) without it.
type Value struct {
	Tag Tag
	i   int64
	f   float64
	r   Reference
	p1  uint32
	p2  uint32
}

func IntValue(i int64) Value   { return Value{Tag: TagInt, i: i} }
func FloatValue(f float64) Value { return Value{Tag: TagFloat, f: f} }
func RefValue(r Reference) Value { return Value{Tag: TagRef, r: r} }
func ErrorValue() Value        { return Value{Tag: TagError} }
func PairCellValue(first, second uint32) Value { return Value{Tag: TagPair, p1: first, p2: second} }

// LazyRefValue wraps a reference to a LAZY_VALUE object. isLazilyCanceled
// marks that the thunk was consumed by a unique-object operation before
// ever being forced (spec.md §4.5).
func LazyRefValue(r Reference, isLazilyCanceled bool) Value {
	tag := TagLazyRef
	if isLazilyCanceled {
		tag |= TagLazilyCanceled
	}
	return Value{Tag: tag, r: r}
}

func LockedLazyRefValue(r Reference) Value { return Value{Tag: TagLockedLazyRef, r: r} }

func (v Value) IsInt() bool   { return v.Tag == TagInt }
func (v Value) IsFloat() bool { return v.Tag == TagFloat }
func (v Value) IsRef() bool   { return v.Tag == TagRef }
func (v Value) IsPair() bool  { return v.Tag == TagPair }
func (v Value) IsError() bool { return v.Tag == TagError }
func (v Value) IsCanceledRef() bool { return v.Tag == TagCanceledRef }
func (v Value) IsLazy() bool  { return v.Tag.IsLazy() }
func (v Value) IsLockedLazy() bool { return v.Tag == TagLockedLazyRef }
func (v Value) IsLazilyCanceled() bool { return v.Tag&TagLazilyCanceled != 0 }

// IsRefLike reports whether the GC must trace through this value's R field
// (mirrors include/letin/vm.hpp's implicit "type == REF || type ==
// CANCELED_REF || is_lazy() || type == LOCKED_LAZY_VALUE_REF" check used
// when deciding what a slot "points at").
func (v Value) IsRefLike() bool {
	return v.Tag == TagRef || v.Tag == TagCanceledRef || v.Tag.IsLazy() || v.Tag == TagLockedLazyRef
}

// I returns the payload as int64, or 0 if this Value is not an int
// (matches the original's permissive accessor rather than panicking).
func (v Value) I() int64 {
	if v.Tag == TagInt {
		return v.i
	}
	return 0
}

func (v Value) F() float64 {
	if v.Tag == TagFloat {
		return v.f
	}
	return 0
}

// R returns the referenced object, or the nil sentinel if this Value does
// not currently hold a live reference.
func (v Value) R() Reference {
	if v.IsRefLike() {
		return v.r
	}
	return NilReference()
}

func (v Value) Pair() (uint32, uint32) {
	if v.Tag == TagPair {
		return v.p1, v.p2
	}
	return 0, 0
}

// IsUnique reports whether this value is a REF to a unique object — the
// precondition every RU*-family opcode checks before proceeding, and that
// the non-U family rejects (spec.md §4.4, "reject unique containers").
func (v Value) IsUnique() bool {
	return v.Tag == TagRef && !v.r.HasNil() && v.r.Ptr.Type.IsUnique()
}

// CancelRef transitions a REF value to CANCELED_REF in place, the runtime
// witness that the caller has moved this reference onward (spec.md §4.3,
// §9). Returns false (no-op) if v was not a plain REF.
func (v *Value) CancelRef() bool {
	if v.Tag != TagRef {
		return false
	}
	v.Tag = TagCanceledRef
	return true
}

// LazilyCancelRef marks a lazy reference as having been consumed by a
// unique-object operation before it was forced; forcing still succeeds,
// but subsequent reads of the force result raise AGAIN_USED_UNIQUE
// (spec.md §4.5).
func (v *Value) LazilyCancelRef() {
	if v.Tag.IsLazy() {
		v.Tag |= TagLazilyCanceled
	}
}

// Equal implements REQ/RNE, IEQ/INE, FEQ/FNE style structural comparison at
// the Value level (reference identity for refs, not deep equality — deep
// equality is a property of canonicalization in vm/memo, not of Value
// itself).
func (v Value) Equal(other Value) bool {
	if v.Tag != other.Tag {
		return false
	}
	switch v.Tag {
	case TagInt:
		return v.i == other.i
	case TagFloat:
		return v.f == other.f
	case TagPair:
		return v.p1 == other.p1 && v.p2 == other.p2
	case TagRef, TagCanceledRef, TagLockedLazyRef:
		return v.r.Ptr == other.r.Ptr
	default:
		if v.Tag.IsLazy() {
			return v.r.Ptr == other.r.Ptr
		}
		return true // ERROR == ERROR
	}
}

// String renders a Value for diagnostics (cmd/vmrun's result line, test
// failure output) — never parsed back, so the format owes nothing to the
// wire encoding.
func (v Value) String() string {
	switch v.Tag {
	case TagInt:
		return fmt.Sprintf("%d", v.i)
	case TagFloat:
		return fmt.Sprintf("%g", v.f)
	case TagPair:
		return fmt.Sprintf("pair(%d,%d)", v.p1, v.p2)
	case TagError:
		return "error"
	case TagRef, TagCanceledRef:
		if v.r.HasNil() {
			return "ref(nil)"
		}
		return fmt.Sprintf("ref(%p)", v.r.Ptr)
	default:
		if v.Tag.IsLazy() {
			return "lazy-ref"
		}
		return "value"
	}
}
