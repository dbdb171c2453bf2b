package sched

import (
	"testing"

	"letin/vm"
)

func TestRegisterAndSnapshot(t *testing.T) {
	r := newRegisteredRefs()
	o1 := &vm.Object{Type: vm.ObjIArray8, Length: 1}
	o2 := &vm.Object{Type: vm.ObjIArray8, Length: 1}

	h1 := r.Register(vm.NewReference(o1))
	h2 := r.Register(vm.NewReference(o2))

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() = %d refs, want 2", len(snap))
	}

	h1.Release()
	snap = r.Snapshot()
	if len(snap) != 1 || snap[0].Ptr != o2 {
		t.Fatalf("after releasing h1, Snapshot() = %v, want only o2", snap)
	}

	h2.Release()
	if len(r.Snapshot()) != 0 {
		t.Fatalf("after releasing both handles, Snapshot() should be empty")
	}
}

func TestReleaseTwiceIsNoOp(t *testing.T) {
	r := newRegisteredRefs()
	h := r.Register(vm.NewReference(&vm.Object{Type: vm.ObjIArray8}))
	h.Release()
	h.Release() // must not panic or double-count
	if len(r.Snapshot()) != 0 {
		t.Fatalf("Snapshot() after double Release() should be empty")
	}
}

func TestReleaseNilHandleIsNoOp(t *testing.T) {
	var h *Handle
	h.Release() // must not panic
}
