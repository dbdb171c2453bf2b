package vm

// NilObject is the shared sentinel object an empty/unset Reference points
// at, so a Reference is never a literal nil pointer and every call site can
// skip a nil check (original_source/include/letin/vm.hpp's static
// Reference::_S_nil, supplemented per SPEC_FULL.md §11).
var NilObject = &Object{Type: ObjError}

// Reference is a handle to a heap Object. The zero Reference is not valid;
// use NilReference().
type Reference struct {
	Ptr *Object
}

func NilReference() Reference { return Reference{Ptr: NilObject} }

func NewReference(o *Object) Reference {
	if o == nil {
		return NilReference()
	}
	return Reference{Ptr: o}
}

func (r Reference) HasNil() bool { return r.Ptr == nil || r.Ptr == NilObject }

func (r Reference) Equal(other Reference) bool { return r.Ptr == other.Ptr }
