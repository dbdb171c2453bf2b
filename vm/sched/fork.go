package sched

import (
	"errors"

	"letin/vm/native"
)

// ErrForkUnsupported is returned by the default ForkExecutor. Go's runtime
// multiplexes goroutines over OS threads behind the scheduler's back, so a
// raw fork(2) in a multithreaded process is unsafe in general (only the
// calling thread survives into the child, while Go's own runtime threads
// and their locks do not) — spec.md §5's fork primitive is a deliberate
// deviation point, documented in SPEC_FULL.md §11: the handler ordering
// (ForkHandler priority order before the fork, reverse order after) is
// implemented, while locking the GC mutex or interruptible mutexes is not
// done here (only registered handlers run); the actual fork syscall is left
// to a pluggable ForkExecutor that a POSIX-only build could supply via
// golang.org/x/sys/unix, and which this module does not attempt by
// default.
var ErrForkUnsupported = errors.New("sched: fork is not supported by this runtime")

// ForkExecutor performs the actual process fork, once every ForkHandler has
// run BeforeFork. It returns the child's pid (as seen by the parent) and
// whether the calling goroutine is now running in the child.
type ForkExecutor interface {
	Fork() (pid int, inChild bool, err error)
}

// noForkExecutor always fails; this is the default.
type noForkExecutor struct{}

func (noForkExecutor) Fork() (int, bool, error) { return 0, false, ErrForkUnsupported }

// ForkCoordinator drives spec.md §5's fork sequence: run BeforeFork on every
// registered handler in priority order, perform the fork, then run
// AfterForkInParent or AfterForkInChild (in reverse order) depending on
// which side of the fork this goroutine ended up on.
type ForkCoordinator struct {
	handlers *native.ForkCoordinator
	exec     ForkExecutor
}

// NewForkCoordinator builds a coordinator with the default (unsupported)
// executor. Call SetExecutor to install a platform-specific one.
func NewForkCoordinator(handlers *native.ForkCoordinator) *ForkCoordinator {
	return &ForkCoordinator{handlers: handlers, exec: noForkExecutor{}}
}

func (c *ForkCoordinator) SetExecutor(exec ForkExecutor) {
	if exec == nil {
		exec = noForkExecutor{}
	}
	c.exec = exec
}

// Fork runs the full spec.md §5 sequence. On success in the parent, pid is
// the child's pid and inChild is false; in the child, inChild is true and
// pid is meaningless (mirrors fork(2)'s own return convention).
func (c *ForkCoordinator) Fork() (pid int, inChild bool, err error) {
	c.handlers.RunBeforeFork()
	pid, inChild, err = c.exec.Fork()
	if err != nil {
		// BeforeFork ran under the assumption the fork would happen; since
		// it didn't, unwind exactly as if we were the parent resuming.
		c.handlers.RunAfterForkInParent()
		return 0, false, err
	}
	if inChild {
		c.handlers.RunAfterForkInChild()
	} else {
		c.handlers.RunAfterForkInParent()
	}
	return pid, inChild, nil
}
