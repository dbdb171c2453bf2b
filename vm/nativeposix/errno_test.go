package nativeposix

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestSystemErrorToErrorKnownErrno(t *testing.T) {
	idx := systemErrorToError(int(unix.ENOENT))
	if idx <= 0 {
		t.Fatalf("systemErrorToError(ENOENT) = %d, want a positive table index", idx)
	}
	back, ok := errorToSystemError(idx)
	if !ok || back != int(unix.ENOENT) {
		t.Fatalf("errorToSystemError(%d) = (%d, %v), want (ENOENT, true)", idx, back, ok)
	}
}

func TestSystemErrorToErrorUnknownErrno(t *testing.T) {
	if idx := systemErrorToError(999999); idx != -1 {
		t.Fatalf("systemErrorToError with an out-of-table errno = %d, want -1", idx)
	}
}

func TestErrorToSystemErrorOutOfRange(t *testing.T) {
	if _, ok := errorToSystemError(-1); ok {
		t.Fatalf("errorToSystemError(-1) should report ok=false")
	}
	if _, ok := errorToSystemError(int64(len(systemErrors))); ok {
		t.Fatalf("errorToSystemError(len(systemErrors)) should report ok=false")
	}
}

func TestZeroIndexIsNoErrorSentinel(t *testing.T) {
	v, ok := errorToSystemError(0)
	if !ok || v != 0 {
		t.Fatalf("errorToSystemError(0) = (%d, %v), want (0, true) per the table's leading sentinel", v, ok)
	}
}

func TestEWOULDBLOCKAliasesEAGAIN(t *testing.T) {
	if unix.EAGAIN == unix.EWOULDBLOCK {
		t.Skip("this platform defines EWOULDBLOCK as EAGAIN, nothing to alias")
	}
	if systemErrorToError(int(unix.EWOULDBLOCK)) != systemErrorToError(int(unix.EAGAIN)) {
		t.Fatalf("EWOULDBLOCK must map to the same table index as EAGAIN")
	}
}
