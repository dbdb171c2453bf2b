// Package memo implements spec.md §4.6's memoization cache: keyed result
// cache with concurrent insertion, where a key is a function index plus the
// canonical form of its arguments.
//
// Canonicalization's recursive hash is grounded in spec.md §4.6 directly
// ("hash via recursive hash"); golang.org/x/crypto/blake2b is the concrete
// hash this repo reaches for — the teacher's go.mod already carries
// golang.org/x/crypto, and blake2b.New256 gives a collision-resistant,
// streamable digest without inventing a bespoke mixing function
// (SPEC_FULL.md §10).
package memo

import (
	"encoding/binary"
	"errors"
	"math"

	"golang.org/x/crypto/blake2b"

	"letin/vm"
)

// ErrNotMemoizable is returned when an argument's transitive closure
// contains a unique object or a lazy value, which spec.md §4.6 excludes
// from memoizability.
var ErrNotMemoizable = errors.New("memo: argument not memoizable")

// Canonicalize computes the recursive hash of args, failing with
// ErrNotMemoizable if any argument (directly or through a shared object's
// transitive closure) contains a unique object or an unforced lazy value.
func Canonicalize(args []vm.Value) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	visiting := make(map[*vm.Object]bool)
	for _, a := range args {
		if err := hashValue(h, a, visiting); err != nil {
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

func hashValue(h interface{ Write([]byte) (int, error) }, v vm.Value, visiting map[*vm.Object]bool) error {
	var tagBuf [1]byte
	tagBuf[0] = byte(v.Tag)
	h.Write(tagBuf[:])

	switch {
	case v.IsInt():
		writeU64(h, uint64(v.I()))
		return nil
	case v.IsFloat():
		writeU64(h, floatBits(v.F()))
		return nil
	case v.Tag.IsLazy():
		return ErrNotMemoizable
	case v.IsRef():
		r := v.R()
		if r.HasNil() {
			return nil
		}
		return hashObject(h, r.Ptr, visiting)
	default:
		return nil // PAIR/ERROR never appear as surface arguments
	}
}

func hashObject(h interface{ Write([]byte) (int, error) }, o *vm.Object, visiting map[*vm.Object]bool) error {
	if o.IsUnique() {
		return ErrNotMemoizable
	}
	if o.Type.Base() == vm.ObjLazyValue || o.Type.Base() == vm.ObjNative {
		return ErrNotMemoizable
	}
	if visiting[o] {
		// A cycle in a supposedly-pure-functional value graph; treat as
		// not memoizable rather than spinning forever.
		return ErrNotMemoizable
	}
	visiting[o] = true
	defer delete(visiting, o)

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(o.Type))
	binary.BigEndian.PutUint32(hdr[4:8], o.Length)
	h.Write(hdr[:])

	switch o.Type.Base() {
	case vm.ObjIArray8:
		for _, x := range o.I8 {
			writeU64(h, uint64(uint8(x)))
		}
	case vm.ObjIArray16:
		for _, x := range o.I16 {
			writeU64(h, uint64(uint16(x)))
		}
	case vm.ObjIArray32:
		for _, x := range o.I32 {
			writeU64(h, uint64(uint32(x)))
		}
	case vm.ObjIArray64:
		for _, x := range o.I64 {
			writeU64(h, uint64(x))
		}
	case vm.ObjSFArray:
		for _, x := range o.SF {
			writeU64(h, uint64(floatBits(float64(x))))
		}
	case vm.ObjDFArray:
		for _, x := range o.DF {
			writeU64(h, floatBits(x))
		}
	case vm.ObjRArray:
		for _, r := range o.R {
			if err := hashValue(h, vm.RefValue(r), visiting); err != nil {
				return err
			}
		}
	case vm.ObjTuple:
		for _, e := range o.Tuple {
			if err := hashValue(h, e.ToValue(), visiting); err != nil {
				return err
			}
		}
	case vm.ObjIO:
		// IO tokens carry no data; their presence alone is hashed via hdr.
	}
	return nil
}

func writeU64(h interface{ Write([]byte) (int, error) }, x uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], x)
	h.Write(b[:])
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}
