package memo

import (
	"context"
	"encoding/hex"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"letin/vm"
)

// Compute runs a memoizable function's body to produce its result; the
// cache calls it at most once per canonical key even when many threads
// request the same (fun_index, args) concurrently.
type Compute func(ctx context.Context) (vm.Value, vm.ErrorCode)

// entry is a resolved cache slot. Results are GC roots (spec.md §4.6:
// "Cache entries are GC roots") — Cache.GCRoots walks every entry.
type entry struct {
	value vm.Value
}

// Cache is the memoization cache of spec.md §4.6. Concurrent insertion is
// racy-safe by construction: golang.org/x/sync/singleflight.Group.Do
// collapses concurrent callers for the same key into one execution and
// hands every caller (winner and losers alike) the winner's result — which
// is precisely "if two threads produce the same key concurrently, one
// wins; the loser's result is discarded (both return the winner's value)".
type Cache struct {
	sf singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry

	invocations uint64 // instrumentation: spec.md §8 scenario 4/5's "invoked at most once" check
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

func key(funIndex int, canonical []byte) string {
	return strconv.Itoa(funIndex) + ":" + hex.EncodeToString(canonical)
}

// GetOrCompute returns the memoized result for (funIndex, args), computing
// it via compute only if no entry exists yet (and only once, even under
// concurrent callers). If args are not memoizable, it calls compute
// directly without touching the cache. vm/interp consults the cache for
// every call to a function flagged memoizable without checking the
// argument values first, so such calls do reach here and take this path.
func (c *Cache) GetOrCompute(ctx context.Context, funIndex int, args []vm.Value, compute Compute) (vm.Value, vm.ErrorCode) {
	canonical, err := Canonicalize(args)
	if err != nil {
		return compute(ctx)
	}
	k := key(funIndex, canonical)

	c.mu.RLock()
	if e, ok := c.entries[k]; ok {
		c.mu.RUnlock()
		return e.value, vm.Success
	}
	c.mu.RUnlock()

	type result struct {
		v    vm.Value
		code vm.ErrorCode
	}
	raw, err, _ := c.sf.Do(k, func() (interface{}, error) {
		c.mu.RLock()
		if e, ok := c.entries[k]; ok {
			c.mu.RUnlock()
			return result{e.value, vm.Success}, nil
		}
		c.mu.RUnlock()

		addInvocation(c)
		v, code := compute(ctx)
		if code == vm.Success {
			c.mu.Lock()
			c.entries[k] = entry{value: v}
			c.mu.Unlock()
		}
		return result{v, code}, nil
	})
	if err != nil {
		return vm.ErrorValue(), vm.ErrException
	}
	r := raw.(result)
	return r.v, r.code
}

func addInvocation(c *Cache) {
	c.mu.Lock()
	c.invocations++
	c.mu.Unlock()
}

// Invocations reports how many times compute actually ran across every key
// — the counter spec.md §8's fib(10)/memoized_square scenarios check.
func (c *Cache) Invocations() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.invocations
}

// GCRoots implements gc.RootSource: every memoized value keeps its
// transitive closure alive for the life of the process.
func (c *Cache) GCRoots() []vm.Reference {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roots := make([]vm.Reference, 0, len(c.entries))
	for _, e := range c.entries {
		if e.value.IsRefLike() {
			roots = append(roots, e.value.R())
		}
	}
	return roots
}
