package interp

import (
	"context"
	"testing"

	"letin/vm"
	"letin/vm/format"
	"letin/vm/gc"
	"letin/vm/lazy"
	"letin/vm/link"
	"letin/vm/memo"
)

func instrOp(op Op, m1, m2 OperandMode, a1, a2 uint32) format.Instruction {
	return format.Instruction{Opcode: EncodeOpcode(op, m1, m2), Arg1: format.Argument{I: a1}, Arg2: format.Argument{I: a2}}
}

func newTestEnv(code []format.Instruction, functions []format.Function, infos []format.FunctionInfo, globals []vm.Value) *Environment {
	prog := &link.Program{
		Functions:    functions,
		FunctionInfo: infos,
		Code:         code,
		Globals:      globals,
		Entry:        0,
	}
	heap := gc.NewHeap(gc.DefaultConfig())
	lazyEngine := lazy.NewEngine(4)
	cache := memo.NewCache()
	return NewEnvironment(prog, heap, lazyEngine, cache, nil)
}

// f(a0, a1) = iadd lv0, lv1 where lv0/lv1 just load the two arguments.
func TestInvokeAddsTwoArguments(t *testing.T) {
	code := []format.Instruction{
		instrOp(OpLet, ModeArgument, ModeImmediate, 0, 0),
		instrOp(OpLet, ModeArgument, ModeImmediate, 1, 0),
		instrOp(OpIAdd, ModeLocalVar, ModeLocalVar, 0, 1),
		instrOp(OpRet, ModeLocalVar, ModeImmediate, 2, 0),
	}
	functions := []format.Function{{Addr: 0, ArgCount: 2, InstrCount: uint32(len(code))}}
	infos := []format.FunctionInfo{{}}
	env := newTestEnv(code, functions, infos, nil)

	v, errc := env.Invoke(context.Background(), 0, []vm.Value{vm.IntValue(3), vm.IntValue(4)})
	if errc != vm.Success {
		t.Fatalf("Invoke error = %v", errc)
	}
	if !v.IsInt() || v.I() != 7 {
		t.Fatalf("Invoke result = %v, want int 7", v)
	}
}

func TestInvokeWrongArgCount(t *testing.T) {
	code := []format.Instruction{instrOp(OpRet, ModeArgument, ModeImmediate, 0, 0)}
	functions := []format.Function{{Addr: 0, ArgCount: 1, InstrCount: uint32(len(code))}}
	infos := []format.FunctionInfo{{}}
	env := newTestEnv(code, functions, infos, nil)

	_, errc := env.Invoke(context.Background(), 0, nil)
	if errc != vm.ErrIncorrectArgCount {
		t.Fatalf("Invoke with wrong arg count = %v, want ErrIncorrectArgCount", errc)
	}
}

func TestInvokeDivByZero(t *testing.T) {
	code := []format.Instruction{
		instrOp(OpIDiv, ModeArgument, ModeImmediate, 0, 0),
		instrOp(OpRet, ModeLocalVar, ModeImmediate, 0, 0),
	}
	functions := []format.Function{{Addr: 0, ArgCount: 1, InstrCount: uint32(len(code))}}
	infos := []format.FunctionInfo{{}}
	env := newTestEnv(code, functions, infos, nil)

	_, errc := env.Invoke(context.Background(), 0, []vm.Value{vm.IntValue(1)})
	if errc != vm.ErrDivByZero {
		t.Fatalf("Invoke idiv by 0 = %v, want ErrDivByZero", errc)
	}
}

// fib(n) = n < 2 ? n : fib(n-1) + fib(n-2), called through a lazy+memoizable
// function info to exercise vm/lazy and vm/memo together (spec.md §8's
// memoized fib scenario).
func buildFib(t *testing.T, lazyStrategy, memoStrategy bool) *Environment {
	t.Helper()
	code := []format.Instruction{
		instrOp(OpLet, ModeArgument, ModeImmediate, 0, 0), // ip0: lv0 = a0
		instrOp(OpILt, ModeLocalVar, ModeImmediate, 0, 2), // ip1: lv1 = lv0 < 2
		instrOp(OpJC, ModeLocalVar, ModeImmediate, 1, 9),  // ip2: if lv1 != 0, ip += 9 -> ip11 (base case)
		instrOp(OpISub, ModeLocalVar, ModeImmediate, 0, 1),  // ip3: lv2 = lv0-1
		instrOp(OpArg, ModeLocalVar, ModeImmediate, 2, 0),   // ip4: push lv2
		instrOp(OpICall, ModeImmediate, ModeImmediate, 0, 0),// ip5: lv3 = fib(lv2)
		instrOp(OpISub, ModeLocalVar, ModeImmediate, 0, 2),  // ip6: lv4 = lv0-2
		instrOp(OpArg, ModeLocalVar, ModeImmediate, 4, 0),   // ip7: push lv4
		instrOp(OpICall, ModeImmediate, ModeImmediate, 0, 0),// ip8: lv5 = fib(lv4)
		instrOp(OpIAdd, ModeLocalVar, ModeLocalVar, 3, 5),   // ip9: lv6 = lv3+lv5
		instrOp(OpRet, ModeLocalVar, ModeImmediate, 6, 0),   // ip10: ret lv6
		instrOp(OpRet, ModeLocalVar, ModeImmediate, 0, 0),   // ip11: ret lv0 (base case)
	}

	strategy := uint8(0)
	mask := uint8(0)
	if lazyStrategy {
		strategy |= format.EvalStrategyLazy
		mask |= format.EvalStrategyLazy
	}
	if memoStrategy {
		strategy |= format.EvalStrategyMemo
		mask |= format.EvalStrategyMemo
	}

	functions := []format.Function{{Addr: 0, ArgCount: 1, InstrCount: uint32(len(code))}}
	infos := []format.FunctionInfo{{EvalStrategy: strategy, EvalStrategyMask: mask}}
	return newTestEnv(code, functions, infos, nil)
}

func TestInvokeFibRecursiveMemoized(t *testing.T) {
	env := buildFib(t, false, true)
	v, errc := env.Invoke(context.Background(), 0, []vm.Value{vm.IntValue(10)})
	if errc != vm.Success {
		t.Fatalf("Invoke fib(10) error = %v", errc)
	}
	if !v.IsInt() || v.I() != 55 {
		t.Fatalf("fib(10) = %v, want int 55", v)
	}
	if env.Memo.Invocations() == 0 {
		t.Fatalf("a memoizable fib(10) should have recorded at least one cache invocation")
	}
}

// fib(10) under a lazy+memoizable strategy: every recursive ICALL wraps the
// callee in a LAZY_REF (spec.md §4.5), which the ICALL branch must force
// back down to a concrete INT before its own arithmetic can use it
// (spec.md §8 scenario 4: "Expected: INT 55").
func TestInvokeFibLazyMemoized(t *testing.T) {
	env := buildFib(t, true, true)
	v, errc := env.Invoke(context.Background(), 0, []vm.Value{vm.IntValue(10)})
	if errc != vm.Success {
		t.Fatalf("Invoke lazy fib(10) error = %v", errc)
	}
	if !v.IsInt() || v.I() != 55 {
		t.Fatalf("lazy fib(10) = %v, want int 55", v)
	}
}

func TestInvokeFibConcurrentCallsShareMemoCache(t *testing.T) {
	env := buildFib(t, false, true)
	type result struct {
		v    vm.Value
		errc vm.ErrorCode
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			v, errc := env.Invoke(context.Background(), 0, []vm.Value{vm.IntValue(10)})
			results <- result{v, errc}
		}()
	}
	for i := 0; i < 2; i++ {
		r := <-results
		if r.errc != vm.Success || !r.v.IsInt() || r.v.I() != 55 {
			t.Fatalf("concurrent fib(10) = (%v, %v), want (55, Success)", r.v, r.errc)
		}
	}
}

// f(a0) pushes two pending arguments and RETRYs a one-argument function —
// RETRY's pending count must match the function's declared arg count
// (spec.md §8: "RETRY with ac != ac2 -> INCORRECT_ARG_COUNT").
func TestInvokeRetryWrongArgCount(t *testing.T) {
	code := []format.Instruction{
		instrOp(OpLet, ModeArgument, ModeImmediate, 0, 0), // ip0: lv0 = a0
		instrOp(OpArg, ModeLocalVar, ModeImmediate, 0, 0),  // ip1: push lv0
		instrOp(OpArg, ModeLocalVar, ModeImmediate, 0, 0),  // ip2: push lv0 again (now 2 pending, fn takes 1)
		instrOp(OpRetry, ModeImmediate, ModeImmediate, 0, 0),
	}
	functions := []format.Function{{Addr: 0, ArgCount: 1, InstrCount: uint32(len(code))}}
	infos := []format.FunctionInfo{{}}
	env := newTestEnv(code, functions, infos, nil)

	_, errc := env.Invoke(context.Background(), 0, []vm.Value{vm.IntValue(1)})
	if errc != vm.ErrIncorrectArgCount {
		t.Fatalf("RETRY with mismatched pending count = %v, want ErrIncorrectArgCount", errc)
	}
}

// f(a0) pushes exactly one pending argument (a0-1) and RETRYs until a0
// reaches 0, then returns it — the matching-count RETRY path actually
// re-enters the function body with the new argument list.
func TestInvokeRetryLoopsToBaseCase(t *testing.T) {
	code := []format.Instruction{
		instrOp(OpLet, ModeArgument, ModeImmediate, 0, 0), // ip0: lv0 = a0
		instrOp(OpJC, ModeLocalVar, ModeImmediate, 0, 2),  // ip1: if lv0 != 0, ip += 2 -> ip3 (loop body)
		instrOp(OpRet, ModeLocalVar, ModeImmediate, 0, 0), // ip2: ret lv0 (base case: lv0==0)
		instrOp(OpISub, ModeLocalVar, ModeImmediate, 0, 1), // ip3: lv1 = lv0-1
		instrOp(OpArg, ModeLocalVar, ModeImmediate, 1, 0),  // ip4: push lv1
		instrOp(OpRetry, ModeImmediate, ModeImmediate, 0, 0),
	}
	functions := []format.Function{{Addr: 0, ArgCount: 1, InstrCount: uint32(len(code))}}
	infos := []format.FunctionInfo{{}}
	env := newTestEnv(code, functions, infos, nil)

	v, errc := env.Invoke(context.Background(), 0, []vm.Value{vm.IntValue(4)})
	if errc != vm.Success {
		t.Fatalf("Invoke RETRY loop error = %v", errc)
	}
	if !v.IsInt() || v.I() != 0 {
		t.Fatalf("RETRY loop result = %v, want int 0", v)
	}
}

func TestInvokeNoSuchFunction(t *testing.T) {
	env := newTestEnv(nil, nil, nil, nil)
	_, errc := env.Invoke(context.Background(), 5, nil)
	if errc != vm.ErrNoFun {
		t.Fatalf("Invoke on an out-of-range function index = %v, want ErrNoFun", errc)
	}
}
