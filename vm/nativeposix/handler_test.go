package nativeposix

import (
	"context"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"letin/vm"
	"letin/vm/native"
)

type fakeVMContext struct{}

func (f *fakeVMContext) RegisterRef(ref vm.Reference) func() { return func() {} }
func (f *fakeVMContext) ThreadID() int64                     { return 1 }
func (f *fakeVMContext) EnterInterruptible()                 {}
func (f *fakeVMContext) ExitInterruptible()                  {}

func pathBuffer(path string) vm.Value {
	bytes := []byte(path)
	i8 := make([]int8, len(bytes))
	for i, b := range bytes {
		i8[i] = int8(b)
	}
	obj := &vm.Object{Type: vm.ObjIArray8, Length: uint32(len(i8)), I8: i8}
	return vm.RefValue(vm.NewReference(obj))
}

func dataBuffer(size int) (vm.Value, *vm.Object) {
	obj := &vm.Object{Type: vm.ObjIArray8, Length: uint32(size), I8: make([]int8, size)}
	return vm.RefValue(vm.NewReference(obj)), obj
}

func TestHandlerNameAndIndexRange(t *testing.T) {
	h := NewHandler()
	if h.MinIndex() != 0 || h.MaxIndex() != fnCount-1 {
		t.Fatalf("MinIndex/MaxIndex = %d/%d, want 0/%d", h.MinIndex(), h.MaxIndex(), fnCount-1)
	}
	if name, ok := h.Name(fnOpen); !ok || name != "open" {
		t.Fatalf("Name(fnOpen) = (%q, %v), want (open, true)", name, ok)
	}
	if _, ok := h.Name(fnCount); ok {
		t.Fatalf("Name(fnCount) should be out of range")
	}
}

func TestHandlerOpenWriteLseekReadClose(t *testing.T) {
	h := NewHandler()
	vctx := &fakeVMContext{}
	ctx := context.Background()

	tmp, err := os.CreateTemp("", "nativeposix-handler-test-")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	rv := h.Invoke(ctx, vctx, fnOpen, []vm.Value{pathBuffer(path), vm.IntValue(int64(unix.O_RDWR)), vm.IntValue(0o644)})
	if rv.Error != vm.Success {
		t.Fatalf("open Invoke error = %v", rv.Error)
	}
	if rv.I < 0 {
		t.Fatalf("open returned a negative-errno result %d opening a file that exists", rv.I)
	}
	fd := rv.I

	payload := []byte("letin")
	wbuf, wobj := dataBuffer(len(payload))
	for i, b := range payload {
		wobj.I8[i] = int8(b)
	}
	rv = h.Invoke(ctx, vctx, fnWrite, []vm.Value{vm.IntValue(fd), wbuf, vm.IntValue(int64(len(payload)))})
	if rv.Error != vm.Success || rv.I != int64(len(payload)) {
		t.Fatalf("write = (%d, %v), want (%d, Success)", rv.I, rv.Error, len(payload))
	}

	rv = h.Invoke(ctx, vctx, fnLseek, []vm.Value{vm.IntValue(fd), vm.IntValue(0), vm.IntValue(int64(unix.SEEK_SET))})
	if rv.Error != vm.Success || rv.I != 0 {
		t.Fatalf("lseek back to 0 = (%d, %v), want (0, Success)", rv.I, rv.Error)
	}

	rbuf, robj := dataBuffer(len(payload))
	rv = h.Invoke(ctx, vctx, fnRead, []vm.Value{vm.IntValue(fd), rbuf, vm.IntValue(int64(len(payload)))})
	if rv.Error != vm.Success || rv.I != int64(len(payload)) {
		t.Fatalf("read = (%d, %v), want (%d, Success)", rv.I, rv.Error, len(payload))
	}
	for i, b := range payload {
		if byte(robj.I8[i]) != b {
			t.Fatalf("read-back buffer[%d] = %d, want %d", i, robj.I8[i], b)
		}
	}

	rv = h.Invoke(ctx, vctx, fnClose, []vm.Value{vm.IntValue(fd)})
	if rv.Error != vm.Success || rv.I != 0 {
		t.Fatalf("close = (%d, %v), want (0, Success)", rv.I, rv.Error)
	}
}

func TestHandlerOpenMissingFileReturnsNegativeErrno(t *testing.T) {
	h := NewHandler()
	vctx := &fakeVMContext{}
	rv := h.Invoke(context.Background(), vctx, fnOpen, []vm.Value{pathBuffer("/nonexistent/path/for/nativeposix/test"), vm.IntValue(int64(unix.O_RDONLY)), vm.IntValue(0)})
	if rv.Error != vm.Success {
		t.Fatalf("open Invoke error = %v, want Success (the errno travels in I)", rv.Error)
	}
	if rv.I >= 0 {
		t.Fatalf("open on a missing path returned %d, want a negative-errno result", rv.I)
	}
}

func TestHandlerGetpid(t *testing.T) {
	h := NewHandler()
	rv := h.Invoke(context.Background(), &fakeVMContext{}, fnGetpid, nil)
	if rv.Error != vm.Success || rv.I != int64(unix.Getpid()) {
		t.Fatalf("getpid = (%d, %v), want (%d, Success)", rv.I, rv.Error, unix.Getpid())
	}
}

func TestHandlerWrongArgCount(t *testing.T) {
	h := NewHandler()
	rv := h.Invoke(context.Background(), &fakeVMContext{}, fnClose, nil)
	if rv.Error != vm.ErrIncorrectArgCount {
		t.Fatalf("close with no args = %v, want ErrIncorrectArgCount", rv.Error)
	}
}

func TestHandlerReadRejectsNonBufferArg(t *testing.T) {
	h := NewHandler()
	rv := h.Invoke(context.Background(), &fakeVMContext{}, fnRead, []vm.Value{vm.IntValue(0), vm.IntValue(0), vm.IntValue(4)})
	if rv.Error != vm.ErrIncorrectValue {
		t.Fatalf("read with a non-ref buffer arg = %v, want ErrIncorrectValue", rv.Error)
	}
}
