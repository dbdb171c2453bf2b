package vm

import "math"

// ConcatLen returns the combined length of two arrays, failing with
// ErrOutOfMemory if it would overflow a uint32 element count — spec.md §8's
// boundary case "Concatenating two arrays whose total length overflows
// size arithmetic yields OUT_OF_MEMORY".
func ConcatLen(a, b uint32) (uint32, ErrorCode) {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return 0, ErrOutOfMemory
	}
	return uint32(sum), Success
}

// Concat fills dst (already allocated with length len(a)+len(b) by the
// caller's allocator) with a's elements followed by b's. a and b must share
// dst's base object type and neither may be unique (RIACAT*/RRACAT/RTCAT
// only operate on shared arrays; concatenating a unique array requires
// converting it to shared first via RU*TO*).
func Concat(dst, a, b *Object) ErrorCode {
	if a.IsUnique() || b.IsUnique() {
		return ErrUniqueObject
	}
	if a.Type.Base() != b.Type.Base() || dst.Type.Base() != a.Type.Base() {
		return ErrIncorrectObject
	}
	switch dst.Type.Base() {
	case ObjIArray8:
		copy(dst.I8, a.I8)
		copy(dst.I8[len(a.I8):], b.I8)
	case ObjIArray16:
		copy(dst.I16, a.I16)
		copy(dst.I16[len(a.I16):], b.I16)
	case ObjIArray32:
		copy(dst.I32, a.I32)
		copy(dst.I32[len(a.I32):], b.I32)
	case ObjIArray64:
		copy(dst.I64, a.I64)
		copy(dst.I64[len(a.I64):], b.I64)
	case ObjSFArray:
		copy(dst.SF, a.SF)
		copy(dst.SF[len(a.SF):], b.SF)
	case ObjDFArray:
		copy(dst.DF, a.DF)
		copy(dst.DF[len(a.DF):], b.DF)
	case ObjRArray:
		copy(dst.R, a.R)
		copy(dst.R[len(a.R):], b.R)
	case ObjTuple:
		copy(dst.Tuple, a.Tuple)
		copy(dst.Tuple[len(a.Tuple):], b.Tuple)
		copy(dst.TupleTypes, a.TupleTypes)
		copy(dst.TupleTypes[len(a.TupleTypes):], b.TupleTypes)
	default:
		return ErrIncorrectObject
	}
	return Success
}
