// Package vm holds the run-time value and object representation shared by
// every other vm/* package: the tagged Value cell, heap Object, Reference
// handle, and the linear ("unique object") discipline built on top of them.
//
// Grounded in original_source/include/letin/vm.hpp (Value, Reference,
// Object, TupleElement*) and original_source/include/letin/format.hpp for
// the wire-level tag numbering, which vm/format already exposes; this file
// re-declares the run-time (host-order, in-memory) counterparts.
package vm

import "letin/vm/format"

// Tag identifies what a Value currently holds.
type Tag int32

const (
	TagInt             Tag = Tag(format.ValueInt)
	TagFloat           Tag = Tag(format.ValueFloat)
	TagRef             Tag = Tag(format.ValueRef)
	TagPair            Tag = Tag(format.ValuePair)
	TagCanceledRef     Tag = Tag(format.ValueCanceledRef)
	TagError           Tag = Tag(format.ValueError)
	TagLazyRef         Tag = Tag(format.ValueLazyValueRef)
	TagLockedLazyRef   Tag = Tag(format.ValueLockedLazyValueRef)
	TagLazilyCanceled  Tag = Tag(format.ValueLazilyCanceled)
)

// base strips the LazilyCanceled bit that may be OR'd onto TagLazyRef.
func (t Tag) base() Tag { return t &^ TagLazilyCanceled }

func (t Tag) IsLazy() bool { return t.base() == TagLazyRef }

// ObjType identifies the shape of a heap Object.
type ObjType int32

const (
	ObjIArray8   ObjType = ObjType(format.ObjectIArray8)
	ObjIArray16  ObjType = ObjType(format.ObjectIArray16)
	ObjIArray32  ObjType = ObjType(format.ObjectIArray32)
	ObjIArray64  ObjType = ObjType(format.ObjectIArray64)
	ObjSFArray   ObjType = ObjType(format.ObjectSFArray)
	ObjDFArray   ObjType = ObjType(format.ObjectDFArray)
	ObjRArray    ObjType = ObjType(format.ObjectRArray)
	ObjTuple     ObjType = ObjType(format.ObjectTuple)
	ObjIO        ObjType = ObjType(format.ObjectIO)
	ObjLazyValue ObjType = ObjType(format.ObjectLazyValue)
	ObjNative    ObjType = ObjType(format.ObjectNative)
	ObjUnique    ObjType = ObjType(format.ObjectUnique)
	ObjError     ObjType = ObjType(format.ObjectError)
)

func (t ObjType) Base() ObjType    { return t &^ ObjUnique }
func (t ObjType) IsUnique() bool   { return t&ObjUnique != 0 && t != ObjError }
func (t ObjType) WithUnique() ObjType { return t | ObjUnique }
