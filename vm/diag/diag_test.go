package diag

import (
	"bytes"
	"testing"

	"letin/vm"
	"letin/vm/gc"
	"letin/vm/memo"
)

func TestHeapProfileReportsCounters(t *testing.T) {
	h := gc.NewHeap(gc.DefaultConfig())
	h.NewObject(vm.ObjIArray8, 4)
	h.Collect()

	cache := memo.NewCache()

	p := HeapProfile(h, cache)
	if len(p.Sample) != 1 {
		t.Fatalf("HeapProfile produced %d samples, want 1", len(p.Sample))
	}
	if len(p.SampleType) != len(p.Sample[0].Value) {
		t.Fatalf("SampleType length %d does not match Sample value length %d", len(p.SampleType), len(p.Sample[0].Value))
	}
	if p.Sample[0].Value[0] != int64(h.Stats().LiveObjects) {
		t.Fatalf("live_objects sample = %d, want %d", p.Sample[0].Value[0], h.Stats().LiveObjects)
	}
}

func TestHeapProfileHandlesNilCache(t *testing.T) {
	h := gc.NewHeap(gc.DefaultConfig())
	p := HeapProfile(h, nil)
	if len(p.Sample) != 1 {
		t.Fatalf("HeapProfile with a nil cache should still produce one sample")
	}
}

func TestWriteHeapProfileProducesNonEmptyOutput(t *testing.T) {
	h := gc.NewHeap(gc.DefaultConfig())
	var buf bytes.Buffer
	if err := WriteHeapProfile(&buf, h, nil); err != nil {
		t.Fatalf("WriteHeapProfile: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("WriteHeapProfile produced no bytes")
	}
}
