// Package diag turns runtime counters from vm/gc and vm/memo into a
// github.com/google/pprof/profile.Profile, so a run started with
// cmd/vmrun -memprofile can be opened directly in `pprof`. Grounded in the
// teacher's own cmd/trace → pprof pipeline (SPEC_FULL.md's ambient-stack
// section): rather than a bespoke text dump, runtime counters get the same
// profile.proto shape the Go toolchain's own profiling tools produce.
package diag

import (
	"io"
	"time"

	"github.com/google/pprof/profile"

	"letin/vm/gc"
	"letin/vm/memo"
)

// sampleType/unit pairs this profile reports, one per gc.Stats/memo.Cache
// counter worth inspecting after a run.
var valueTypes = []*profile.ValueType{
	{Type: "live_objects", Unit: "count"},
	{Type: "live_bytes", Unit: "bytes"},
	{Type: "allocations", Unit: "count"},
	{Type: "collections", Unit: "count"},
	{Type: "pause", Unit: "nanoseconds"},
	{Type: "memo_invocations", Unit: "count"},
}

// HeapProfile builds a single-sample profile.Profile summarizing heap and
// memoization activity at the moment it is called — not a stack-sampled
// profile (this VM's interpreter loop, not Go's own call stacks, is the
// thing spec.md's scenarios care about), so every sample shares one
// synthetic "run" location.
func HeapProfile(heap *gc.Heap, cache *memo.Cache) *profile.Profile {
	hs := heap.Stats()
	var invocations uint64
	if cache != nil {
		invocations = cache.Invocations()
	}

	fn := &profile.Function{ID: 1, Name: "run", SystemName: "run", Filename: "vmrun"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn, Line: 1}}}

	sample := &profile.Sample{
		Location: []*profile.Location{loc},
		Value: []int64{
			int64(hs.LiveObjects),
			int64(hs.LiveBytes),
			int64(hs.Allocations),
			int64(hs.Collections),
			hs.TotalPauseNS,
			int64(invocations),
		},
	}

	return &profile.Profile{
		SampleType:    valueTypes,
		DefaultSampleType: "live_bytes",
		Sample:        []*profile.Sample{sample},
		Function:      []*profile.Function{fn},
		Location:      []*profile.Location{loc},
		TimeNanos:     time.Now().UnixNano(),
	}
}

// WriteHeapProfile builds and serializes a HeapProfile in one call, the
// shape cmd/vmrun's -memprofile flag wants.
func WriteHeapProfile(w io.Writer, heap *gc.Heap, cache *memo.Cache) error {
	return HeapProfile(heap, cache).Write(w)
}
