package sched

import (
	"testing"

	"letin/vm/native"
)

func TestForkDefaultExecutorReturnsUnsupported(t *testing.T) {
	c := NewForkCoordinator(native.NewForkCoordinator())
	_, _, err := c.Fork()
	if err != ErrForkUnsupported {
		t.Fatalf("Fork with no executor installed = %v, want ErrForkUnsupported", err)
	}
}

func TestForkRunsAfterForkInParentEvenOnFailure(t *testing.T) {
	var log []string
	h := loggingHandler{priority: 0, log: &log}
	nfc := native.NewForkCoordinator()
	nfc.Register(h)

	c := NewForkCoordinator(nfc)
	c.Fork()

	want := []string{"before", "parent"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v (BeforeFork then the parent-resuming unwind on failure)", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

type stubExecutor struct {
	pid     int
	inChild bool
}

func (s stubExecutor) Fork() (int, bool, error) { return s.pid, s.inChild, nil }

func TestForkRunsAfterForkInChildWhenInChild(t *testing.T) {
	var log []string
	h := loggingHandler{priority: 0, log: &log}
	nfc := native.NewForkCoordinator()
	nfc.Register(h)

	c := NewForkCoordinator(nfc)
	c.SetExecutor(stubExecutor{pid: 123, inChild: true})

	pid, inChild, err := c.Fork()
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if !inChild {
		t.Fatalf("Fork must report inChild=true when the executor says so")
	}
	_ = pid

	want := []string{"before", "child"}
	if len(log) != len(want) || log[0] != want[0] || log[1] != want[1] {
		t.Fatalf("log = %v, want %v", log, want)
	}
}

func TestForkRunsAfterForkInParentWhenInParent(t *testing.T) {
	var log []string
	h := loggingHandler{priority: 0, log: &log}
	nfc := native.NewForkCoordinator()
	nfc.Register(h)

	c := NewForkCoordinator(nfc)
	c.SetExecutor(stubExecutor{pid: 456, inChild: false})

	pid, inChild, err := c.Fork()
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if inChild {
		t.Fatalf("Fork must report inChild=false when the executor ran in the parent")
	}
	if pid != 456 {
		t.Fatalf("Fork pid = %d, want 456", pid)
	}

	want := []string{"before", "parent"}
	if len(log) != len(want) || log[0] != want[0] || log[1] != want[1] {
		t.Fatalf("log = %v, want %v", log, want)
	}
}

type loggingHandler struct {
	priority int
	log      *[]string
}

func (h loggingHandler) Priority() int       { return h.priority }
func (h loggingHandler) BeforeFork()         { *h.log = append(*h.log, "before") }
func (h loggingHandler) AfterForkInParent()  { *h.log = append(*h.log, "parent") }
func (h loggingHandler) AfterForkInChild()   { *h.log = append(*h.log, "child") }
