package format

import "encoding/binary"

// ObjectHeaderSize is the fixed (type, length) prefix of every on-disk data
// object; ElementSize(type) bytes follow per element, plus (for TUPLE) one
// type-byte per element after the payloads.
const ObjectHeaderSize = 8

// ElementSize returns the per-element payload size in bytes for an object
// type, or 0 for types with no per-element payload (IO has none).
func ElementSize(objType int32) int {
	switch objType &^ ObjectUnique {
	case ObjectIArray8:
		return 1
	case ObjectIArray16:
		return 2
	case ObjectIArray32:
		return 4
	case ObjectIArray64:
		return 8
	case ObjectSFArray:
		return 4
	case ObjectDFArray:
		return 8
	case ObjectRArray:
		return 4
	case ObjectTuple:
		return 8 // payload cell; +1 type byte/elem lives in the tail
	case ObjectIO:
		return 0
	default:
		return 0
	}
}

// ObjectHeader is the (type, length) prefix read from a data-object address.
type ObjectHeader struct {
	Type   int32
	Length uint32
}

func DecodeObjectHeader(b []byte) ObjectHeader {
	return ObjectHeader{
		Type:   int32(binary.BigEndian.Uint32(b[0:4])),
		Length: binary.BigEndian.Uint32(b[4:8]),
	}
}

func EncodeObjectHeader(h ObjectHeader, b []byte) {
	binary.BigEndian.PutUint32(b[0:4], uint32(h.Type))
	binary.BigEndian.PutUint32(b[4:8], h.Length)
}

// ObjectByteSize returns the total on-disk size of an object with the given
// header, including the TUPLE element-type-byte tail, or an overflow error
// if the arithmetic would overflow a 32-bit size (spec.md §4.1 validation:
// "any size arithmetic that would overflow").
func ObjectByteSize(h ObjectHeader) (uint64, error) {
	elemSize := uint64(ElementSize(h.Type))
	total := uint64(ObjectHeaderSize) + uint64(h.Length)*elemSize
	if (h.Type&^ObjectUnique) == ObjectTuple {
		total += uint64(h.Length) // one type byte per element
	}
	if total > uint64(^uint32(0)) {
		return 0, ErrOverflow
	}
	return total, nil
}

// TupleTypeTailOffset returns the byte offset, relative to the object
// header, where the per-element type-byte tail begins.
func TupleTypeTailOffset(length uint32) uint64 {
	return uint64(ObjectHeaderSize) + uint64(length)*8
}
