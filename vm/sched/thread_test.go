package sched

import (
	"testing"
	"time"

	"letin/vm"
)

func TestNewThreadContextInitialRegisters(t *testing.T) {
	tc := NewThreadContext(1, 16, 16)
	if tc.ID() != 1 {
		t.Fatalf("ID() = %d, want 1", tc.ID())
	}
	if tc.Regs.Fp != -1 {
		t.Fatalf("a fresh thread's Fp must start at -1, got %d", tc.Regs.Fp)
	}
}

func TestRegisterRefViaVMContextInterface(t *testing.T) {
	tc := NewThreadContext(1, 4, 4)
	obj := &vm.Object{Type: vm.ObjIArray8}
	release := tc.RegisterRef(vm.NewReference(obj))

	roots := tc.Roots()
	found := false
	for _, r := range roots {
		if r.Ptr == obj {
			found = true
		}
	}
	if !found {
		t.Fatalf("a registered reference must appear in Roots()")
	}

	release()
	roots = tc.Roots()
	for _, r := range roots {
		if r.Ptr == obj {
			t.Fatalf("Roots() must no longer include a released reference")
		}
	}
}

func TestRootsIncludesStackUpToSec(t *testing.T) {
	tc := NewThreadContext(1, 4, 4)
	obj := &vm.Object{Type: vm.ObjIArray8}
	tc.Stack[0] = vm.RefValue(vm.NewReference(obj))
	tc.Stack[1] = vm.IntValue(5) // not a ref, must be skipped
	tc.Regs.Sec = 2

	roots := tc.Roots()
	if len(roots) != 1 || roots[0].Ptr != obj {
		t.Fatalf("Roots() = %v, want exactly the one ref-valued stack slot below Sec", roots)
	}
}

func TestRootsIgnoresStackBeyondSec(t *testing.T) {
	tc := NewThreadContext(1, 4, 4)
	tc.Stack[2] = vm.RefValue(vm.NewReference(&vm.Object{Type: vm.ObjIArray8}))
	tc.Regs.Sec = 1 // slot 2 is beyond the scan cursor

	if roots := tc.Roots(); len(roots) != 0 {
		t.Fatalf("Roots() must not include stack slots at or beyond Sec, got %v", roots)
	}
}

func TestEnterInterruptibleFreezesRootSnapshot(t *testing.T) {
	tc := NewThreadContext(1, 4, 4)
	obj := &vm.Object{Type: vm.ObjIArray8}
	tc.Stack[0] = vm.RefValue(vm.NewReference(obj))
	tc.Regs.Sec = 1

	tc.EnterInterruptible()
	// Mutate the live stack after entering the interruptible scope — Roots()
	// must keep returning the snapshot taken at entry, not the live stack.
	tc.Stack[0] = vm.IntValue(0)

	roots := tc.Roots()
	if len(roots) != 1 || roots[0].Ptr != obj {
		t.Fatalf("Roots() during an interruptible scope must return the frozen snapshot, got %v", roots)
	}

	tc.ExitInterruptible()
	if roots := tc.Roots(); len(roots) != 0 {
		t.Fatalf("after ExitInterruptible, Roots() must reflect the live (now ref-free) stack, got %v", roots)
	}
}

func TestAwaitStoppedReturnsFrozenForInterruptibleThread(t *testing.T) {
	tc := NewThreadContext(1, 4, 4)
	tc.EnterInterruptible()
	tc.RequestStop()

	done := make(chan bool, 1)
	go func() { done <- tc.AwaitStopped() }()

	select {
	case frozen := <-done:
		if !frozen {
			t.Fatalf("AwaitStopped on an interruptible thread must return frozen=true without waiting")
		}
	case <-time.After(time.Second):
		t.Fatalf("AwaitStopped blocked instead of returning immediately for an interruptible thread")
	}
}

func TestRequestStopAndSafepointPollParksThenResumes(t *testing.T) {
	tc := NewThreadContext(1, 4, 4)
	tc.RequestStop()

	parked := make(chan struct{})
	resumed := make(chan struct{})
	go func() {
		tc.SafepointPoll() // should park here until Resume()
		close(resumed)
	}()

	stoppedCh := make(chan bool, 1)
	go func() {
		stoppedCh <- tc.AwaitStopped()
	}()

	select {
	case frozen := <-stoppedCh:
		if frozen {
			t.Fatalf("AwaitStopped should report frozen=false for a thread that actually parks")
		}
	case <-time.After(time.Second):
		t.Fatalf("AwaitStopped never observed the thread parking")
	}
	close(parked)

	tc.Resume()
	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatalf("SafepointPoll did not return after Resume()")
	}
}

func TestSafepointPollNoOpWithoutStopRequest(t *testing.T) {
	tc := NewThreadContext(1, 4, 4)
	done := make(chan struct{})
	go func() {
		tc.SafepointPoll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("SafepointPoll must return immediately when no stop was requested")
	}
}
