package nativeposix

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"letin/vm"
	"letin/vm/native"
)

// Handler is a small native.Handler wrapping golang.org/x/sys/unix, grounded
// in original_source/nlib/posix/posix.cpp's fd/buffer/errno conventions:
// open/close/read/write/lseek take and return plain integers and an
// IARRAY8 buffer reference exactly like that file's tobufref/tofd/tocount
// argument converters, and every call's negative-errno convention mirrors
// system_error_to_error's lookup table. Buffers are caller-allocated (the
// VM script passes an existing IARRAY8 to fill or drain), so this handler
// never needs its own allocator hook into the heap.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

const (
	fnOpen = iota
	fnClose
	fnRead
	fnWrite
	fnLseek
	fnGetpid
	fnNanosleep
	fnTime
	fnCount
)

var names = [fnCount]string{
	fnOpen:      "open",
	fnClose:     "close",
	fnRead:      "read",
	fnWrite:     "write",
	fnLseek:     "lseek",
	fnGetpid:    "getpid",
	fnNanosleep: "nanosleep",
	fnTime:      "time",
}

func (h *Handler) MinIndex() int { return 0 }
func (h *Handler) MaxIndex() int { return fnCount - 1 }

func (h *Handler) Name(nfi int) (string, bool) {
	if nfi < 0 || nfi >= fnCount {
		return "", false
	}
	return names[nfi], true
}

func (h *Handler) Invoke(ctx context.Context, vctx native.VMContext, nfi int, args []vm.Value) native.ReturnValue {
	switch nfi {
	case fnOpen:
		return h.open(vctx, args)
	case fnClose:
		return h.close(vctx, args)
	case fnRead:
		return h.read(vctx, args)
	case fnWrite:
		return h.write(vctx, args)
	case fnLseek:
		return h.lseek(vctx, args)
	case fnGetpid:
		return h.getpid(vctx, args)
	case fnNanosleep:
		return h.nanosleep(vctx, args)
	case fnTime:
		return h.time(vctx, args)
	default:
		return native.ReturnValue{Error: vm.ErrNoNativeFun}
	}
}

// errnoResult maps a syscall error to its VM-level errno index. Every
// wrapper below that can fail returns -(errnoResult(err))-1 in place of its
// normal non-negative result — this VM has no separate errno register, so
// the sign bit plus an index shift is this handler's one encoding for "see
// posix_errno.cpp's error table" without colliding with a legitimate 0
// result (lseek's offset, read's zero-byte EOF, and so on).
func errnoResult(err error) int64 {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return systemErrorToError(int(errno))
	}
	return -1
}

// bufferBytes returns the live byte window of an IARRAY8 (possibly unique)
// object referenced by v, clamped to count — tobufref's job in posix.hpp.
func bufferBytes(v vm.Value, count int64) ([]byte, vm.ErrorCode) {
	if !v.IsRefLike() || v.R().HasNil() {
		return nil, vm.ErrIncorrectValue
	}
	obj := v.R().Ptr
	if obj.Type.Base() != vm.ObjIArray8 {
		return nil, vm.ErrIncorrectValue
	}
	if count < 0 || count > int64(len(obj.I8)) {
		count = int64(len(obj.I8))
	}
	raw := make([]byte, count)
	for i := range raw {
		raw[i] = byte(obj.I8[i])
	}
	return raw, vm.Success
}

func writeBackBuffer(v vm.Value, data []byte) {
	obj := v.R().Ptr
	for i, b := range data {
		if i >= len(obj.I8) {
			break
		}
		obj.I8[i] = int8(b)
	}
}

func (h *Handler) open(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 3 || !args[0].IsRefLike() || !args[1].IsInt() || !args[2].IsInt() {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	pathObj := args[0].R()
	if pathObj.HasNil() || pathObj.Ptr.Type.Base() != vm.ObjIArray8 {
		return native.ReturnValue{Error: vm.ErrIncorrectValue}
	}
	path := make([]byte, len(pathObj.Ptr.I8))
	for i, c := range pathObj.Ptr.I8 {
		path[i] = byte(c)
	}
	flags := int(args[1].I())
	mode := uint32(args[2].I())

	var fd int
	var err error
	native.InterruptibleFunctionAround(vctx, func() native.ReturnValue {
		fd, err = unix.Open(string(path), flags, mode)
		return native.ReturnValue{}
	})
	if err != nil {
		return native.ReturnValue{I: -errnoResult(err) - 1, Error: vm.Success}
	}
	return native.ReturnValue{I: int64(fd), Error: vm.Success}
}

func (h *Handler) close(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 1 || !args[0].IsInt() {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	err := unix.Close(int(args[0].I()))
	if err != nil {
		return native.ReturnValue{I: -errnoResult(err) - 1, Error: vm.Success}
	}
	return native.ReturnValue{I: 0, Error: vm.Success}
}

func (h *Handler) read(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 3 || !args[0].IsInt() || !args[2].IsInt() {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	fd := int(args[0].I())
	count := args[2].I()
	buf, code := bufferBytes(args[1], count)
	if code != vm.Success {
		return native.ReturnValue{Error: code}
	}

	var n int
	var err error
	native.InterruptibleFunctionAround(vctx, func() native.ReturnValue {
		n, err = unix.Read(fd, buf)
		return native.ReturnValue{}
	})
	if err != nil {
		return native.ReturnValue{I: -errnoResult(err) - 1, Error: vm.Success}
	}
	writeBackBuffer(args[1], buf[:n])
	return native.ReturnValue{I: int64(n), Error: vm.Success}
}

func (h *Handler) write(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 3 || !args[0].IsInt() || !args[2].IsInt() {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	fd := int(args[0].I())
	count := args[2].I()
	buf, code := bufferBytes(args[1], count)
	if code != vm.Success {
		return native.ReturnValue{Error: code}
	}

	var n int
	var err error
	native.InterruptibleFunctionAround(vctx, func() native.ReturnValue {
		n, err = unix.Write(fd, buf)
		return native.ReturnValue{}
	})
	if err != nil {
		return native.ReturnValue{I: -errnoResult(err) - 1, Error: vm.Success}
	}
	return native.ReturnValue{I: int64(n), Error: vm.Success}
}

func (h *Handler) lseek(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 3 || !args[0].IsInt() || !args[1].IsInt() || !args[2].IsInt() {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	off, err := unix.Seek(int(args[0].I()), args[1].I(), int(args[2].I()))
	if err != nil {
		return native.ReturnValue{I: -errnoResult(err) - 1, Error: vm.Success}
	}
	return native.ReturnValue{I: off, Error: vm.Success}
}

func (h *Handler) getpid(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 0 {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	return native.ReturnValue{I: int64(unix.Getpid()), Error: vm.Success}
}

func (h *Handler) nanosleep(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 1 || !args[0].IsInt() {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	dur := time.Duration(args[0].I()) * time.Nanosecond
	var err error
	native.InterruptibleFunctionAround(vctx, func() native.ReturnValue {
		remaining := unix.NsecToTimespec(int64(dur))
		err = unix.Nanosleep(&remaining, nil)
		return native.ReturnValue{}
	})
	if err != nil {
		return native.ReturnValue{I: -errnoResult(err) - 1, Error: vm.Success}
	}
	return native.ReturnValue{I: 0, Error: vm.Success}
}

func (h *Handler) time(vctx native.VMContext, args []vm.Value) native.ReturnValue {
	if len(args) != 0 {
		return native.ReturnValue{Error: vm.ErrIncorrectArgCount}
	}
	return native.ReturnValue{I: time.Now().Unix(), Error: vm.Success}
}
