package sched

import (
	"sync"

	"letin/vm"
)

type runState int

const (
	stateRunning runState = iota
	stateStopRequested
	stateParked
)

// ThreadContext owns one thread's value stack, expression stack, register
// bundle, and registered-reference list (spec.md §3). It implements
// vm/gc.ThreadHandle so the collector can stop, root-scan and resume it,
// and vm/native.VMContext so native functions can register references and
// mark an interruptible scope.
type ThreadContext struct {
	id int64

	Stack     []vm.Value
	ExprStack []vm.Value
	Regs      Registers

	refs *RegisteredRefs

	mu            sync.Mutex
	cond          *sync.Cond
	state         runState
	interruptible bool
	frozenRoots   []vm.Reference
}

// NewThreadContext allocates one thread's stacks. stackSize/exprStackSize
// are fixed at creation, matching the original's fixed-size _M_stack /
// _M_expr_stack arrays (spec.md's STACK_OVERFLOW error exists precisely
// because these are bounded).
func NewThreadContext(id int64, stackSize, exprStackSize int) *ThreadContext {
	t := &ThreadContext{
		id:        id,
		Stack:     make([]vm.Value, stackSize),
		ExprStack: make([]vm.Value, exprStackSize),
		refs:      newRegisteredRefs(),
	}
	t.cond = sync.NewCond(&t.mu)
	t.Regs.Fp = -1
	return t
}

func (t *ThreadContext) ID() int64 { return t.id }

// RegisterRef implements native.VMContext.
func (t *ThreadContext) RegisterRef(ref vm.Reference) func() {
	h := t.refs.Register(ref)
	return h.Release
}

func (t *ThreadContext) ThreadID() int64 { return t.id }

// EnterInterruptible / ExitInterruptible implement native.VMContext and
// lazy.InterruptibleMarker: both a blocking native syscall and holding a
// lazy-thunk mutex describe the same "frozen, untraceable-until-released"
// window from the collector's point of view (spec.md §4.5, §4.8).
func (t *ThreadContext) EnterInterruptible() {
	t.mu.Lock()
	t.interruptible = true
	t.frozenRoots = t.liveRootsLocked()
	t.mu.Unlock()
}

func (t *ThreadContext) ExitInterruptible() {
	t.mu.Lock()
	t.interruptible = false
	t.frozenRoots = nil
	t.mu.Unlock()
	t.SafepointPoll()
}

// RequestStop implements gc.ThreadHandle: ask this thread to park at its
// next safepoint.
func (t *ThreadContext) RequestStop() {
	t.mu.Lock()
	if t.state == stateRunning {
		t.state = stateStopRequested
	}
	t.mu.Unlock()
}

// AwaitStopped implements gc.ThreadHandle. Returns frozen=true immediately
// if this thread is currently inside an interruptible scope — spec.md §5:
// "if its interruptible flag is set, skips stopping it".
func (t *ThreadContext) AwaitStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.interruptible {
		return true
	}
	for t.state != stateParked {
		if t.interruptible {
			return true
		}
		t.cond.Wait()
	}
	return false
}

// Resume implements gc.ThreadHandle.
func (t *ThreadContext) Resume() {
	t.mu.Lock()
	t.state = stateRunning
	t.cond.Broadcast()
	t.mu.Unlock()
}

// SafepointPoll is called by vm/interp between instructions (spec.md §5:
// "A VM thread is suspendable by the GC at any instruction boundary"). If a
// stop has been requested and this thread is not currently interruptible,
// it parks and waits for Resume.
func (t *ThreadContext) SafepointPoll() {
	t.mu.Lock()
	if t.state == stateStopRequested && !t.interruptible {
		t.state = stateParked
		t.cond.Broadcast()
		for t.state == stateParked {
			t.cond.Wait()
		}
	}
	t.mu.Unlock()
}

// Roots implements gc.ThreadHandle: the thread's live root set, or its
// scope-entry snapshot if it is currently interruptible (spec.md §4.7,
// §5).
func (t *ThreadContext) Roots() []vm.Reference {
	t.mu.Lock()
	if t.interruptible {
		snap := t.frozenRoots
		t.mu.Unlock()
		return snap
	}
	t.mu.Unlock()
	return t.liveRootsLocked0()
}

func (t *ThreadContext) liveRootsLocked0() []vm.Reference {
	return t.liveRootsLocked()
}

// liveRootsLocked computes the current root set: stack[0:sec],
// exprStack[0:esec], registered references, and every ref-carrying
// register (spec.md §4.7). It does not itself need t.mu — the caller holds
// it only for the interruptible-snapshot path; when called live it reads
// Stack/ExprStack/Regs which only this thread's own goroutine mutates
// between safepoints, and the collector only calls it after this thread
// has parked or reported itself frozen.
func (t *ThreadContext) liveRootsLocked() []vm.Reference {
	roots := make([]vm.Reference, 0, t.Regs.Sec+t.Regs.Esec+8)
	for i := uint32(0); i < t.Regs.Sec && int(i) < len(t.Stack); i++ {
		if v := t.Stack[i]; v.IsRefLike() {
			roots = append(roots, v.R())
		}
	}
	for i := uint32(0); i < t.Regs.Esec && int(i) < len(t.ExprStack); i++ {
		if v := t.ExprStack[i]; v.IsRefLike() {
			roots = append(roots, v.R())
		}
	}
	roots = append(roots, t.refs.Snapshot()...)
	for _, v := range []vm.Value{
		t.Regs.Rv.V, t.Regs.TmpR, t.Regs.TmpPtr, t.Regs.TryArg2, t.Regs.TryIOR,
		t.Regs.ForceTmpR, t.Regs.ForceTmpR2, t.Regs.ForceTmpRv.V, t.Regs.ForceTmpRv2.V,
	} {
		if v.IsRefLike() {
			roots = append(roots, v.R())
		}
	}
	return roots
}
