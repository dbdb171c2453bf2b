package native

import (
	"context"
	"sort"

	"letin/vm"
)

// Multi composes several Handlers into one contiguous index space, each
// occupying [offset, offset+handler.MaxIndex()-handler.MinIndex()] in
// registration order — spec.md §4.8: "composes multiple handlers via a
// MultiNativeFunctionHandler that offsets indices so each handler occupies
// a contiguous range".
type Multi struct {
	handlers []Handler
	offsets  []int
	max      int
}

func NewMulti(handlers ...Handler) *Multi {
	m := &Multi{handlers: handlers, offsets: make([]int, len(handlers))}
	next := 0
	for i, h := range handlers {
		m.offsets[i] = next
		span := h.MaxIndex() - h.MinIndex() + 1
		if span < 0 {
			span = 0
		}
		next += span
	}
	m.max = next - 1
	return m
}

func (m *Multi) MinIndex() int { return 0 }
func (m *Multi) MaxIndex() int { return m.max }

func (m *Multi) find(nfi int) (Handler, int, bool) {
	// offsets is built in ascending order, so binary search would also
	// work; linear is fine for the handful of libraries a process links.
	for i := len(m.handlers) - 1; i >= 0; i-- {
		if nfi >= m.offsets[i] {
			h := m.handlers[i]
			local := h.MinIndex() + (nfi - m.offsets[i])
			if local <= h.MaxIndex() {
				return h, local, true
			}
			return nil, 0, false
		}
	}
	return nil, 0, false
}

func (m *Multi) Name(nfi int) (string, bool) {
	h, local, ok := m.find(nfi)
	if !ok {
		return "", false
	}
	return h.Name(local)
}

func (m *Multi) Invoke(ctx context.Context, vctx VMContext, nfi int, args []vm.Value) ReturnValue {
	h, local, ok := m.find(nfi)
	if !ok {
		return ReturnValue{Error: vm.ErrNoNativeFun}
	}
	return h.Invoke(ctx, vctx, local, args)
}

// ResolveByName looks up a native function's global index across every
// constituent handler by name, for the linker's SYMBOLIC_NATIVE_FUNS
// relocations (spec.md §4.2: "translates a symbolic native-function name
// into the index chosen by the NativeFunctionHandler").
func (m *Multi) ResolveByName(name string) (int, bool) {
	for i, h := range m.handlers {
		lo, hi := h.MinIndex(), h.MaxIndex()
		for local := lo; local <= hi; local++ {
			if n, ok := h.Name(local); ok && n == name {
				return m.offsets[i] + (local - lo), true
			}
		}
	}
	return 0, false
}

// ForkHandler is spec.md §5's fork-coordination participant: "A handler
// library may register a ForkHandler with priority". GC priority locks the
// GC mutex and seizes every interruptible-fun mutex before fork; native
// libraries install their own mutex fork handlers (e.g. to reset a POSIX
// library's internal locks post-fork).
type ForkHandler interface {
	Priority() int
	BeforeFork()
	AfterForkInParent()
	AfterForkInChild()
}

// ForkCoordinator runs registered ForkHandlers in priority order around a
// fork, per spec.md §5.
type ForkCoordinator struct {
	handlers []ForkHandler
}

func NewForkCoordinator() *ForkCoordinator { return &ForkCoordinator{} }

func (c *ForkCoordinator) Register(h ForkHandler) {
	c.handlers = append(c.handlers, h)
	sort.SliceStable(c.handlers, func(i, j int) bool {
		return c.handlers[i].Priority() < c.handlers[j].Priority()
	})
}

func (c *ForkCoordinator) RunBeforeFork() {
	for _, h := range c.handlers {
		h.BeforeFork()
	}
}

func (c *ForkCoordinator) RunAfterForkInParent() {
	for i := len(c.handlers) - 1; i >= 0; i-- {
		c.handlers[i].AfterForkInParent()
	}
}

func (c *ForkCoordinator) RunAfterForkInChild() {
	for i := len(c.handlers) - 1; i >= 0; i-- {
		c.handlers[i].AfterForkInChild()
	}
}
