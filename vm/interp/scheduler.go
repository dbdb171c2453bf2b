package interp

import (
	"context"

	"letin/vm"
)

// Start implements spec.md §4.7's start(fun_index, args, continuation): it
// allocates a fresh ThreadContext, runs funIndex(args) to completion on its
// own goroutine, and delivers the final (value, error code) to
// continuation once the thread's fp reaches −1.
func Start(ctx context.Context, env *Environment, funIndex int, args []vm.Value, continuation func(vm.Value, vm.ErrorCode)) {
	go func() {
		v, code := StartAndWait(ctx, env, funIndex, args)
		continuation(v, code)
	}()
}

// StartAndWait runs funIndex(args) on a fresh thread to completion and
// returns its result synchronously — the shape most callers (tests,
// cmd/vmrun) actually want.
func StartAndWait(ctx context.Context, env *Environment, funIndex int, args []vm.Value) (vm.Value, vm.ErrorCode) {
	id := env.allocThreadID()
	r := newRunner(env, id)
	return r.runToCompletion(ctx, funIndex, args)
}
