// Package nativeposix is a sample native.Handler exposing a small POSIX
// surface over golang.org/x/sys/unix — read/write/open/close/lseek/getpid/
// nanosleep — in the spirit of original_source/nlib/posix/posix.cpp, but
// deliberately not a full per-syscall wrapper set (spec.md's Non-goals
// exclude a complete standard library).
package nativeposix

import "golang.org/x/sys/unix"

// systemErrors mirrors posix_errno.cpp's initialize_errors() table: a fixed,
// portable ordering of POSIX errno values. Its index is the VM-level error
// number passed back to bytecode through toerrno-style conversions — index 0
// is "no error", matching that table's leading 0 sentinel.
var systemErrors = []int{
	0,
	int(unix.E2BIG), int(unix.EACCES), int(unix.EADDRINUSE), int(unix.EADDRNOTAVAIL),
	int(unix.EAFNOSUPPORT), int(unix.EAGAIN), int(unix.EALREADY), int(unix.EBADF),
	int(unix.EBADMSG), int(unix.EBUSY), int(unix.ECANCELED), int(unix.ECHILD),
	int(unix.ECONNABORTED), int(unix.ECONNREFUSED), int(unix.ECONNRESET), int(unix.EDEADLK),
	int(unix.EDESTADDRREQ), int(unix.EDOM), int(unix.EDQUOT), int(unix.EEXIST),
	int(unix.EFAULT), int(unix.EFBIG), int(unix.EHOSTUNREACH), int(unix.EIDRM),
	int(unix.EILSEQ), int(unix.EINPROGRESS), int(unix.EINTR), int(unix.EINVAL),
	int(unix.EIO), int(unix.EISCONN), int(unix.EISDIR), int(unix.ELOOP),
	int(unix.EMFILE), int(unix.EMLINK), int(unix.EMSGSIZE), int(unix.EMULTIHOP),
	int(unix.ENAMETOOLONG), int(unix.ENETDOWN), int(unix.ENETRESET), int(unix.ENETUNREACH),
	int(unix.ENFILE), int(unix.ENOBUFS), int(unix.ENODATA), int(unix.ENODEV),
	int(unix.ENOENT), int(unix.ENOEXEC), int(unix.ENOLCK), int(unix.ENOLINK),
	int(unix.ENOMEM), int(unix.ENOMSG), int(unix.ENOPROTOOPT), int(unix.ENOSPC),
	int(unix.ENOSR), int(unix.ENOSTR), int(unix.ENOSYS), int(unix.ENOTCONN),
	int(unix.ENOTDIR), int(unix.ENOTEMPTY), int(unix.ENOTRECOVERABLE), int(unix.ENOTSOCK),
	int(unix.ENOTSUP), int(unix.ENOTTY), int(unix.ENXIO), int(unix.EOVERFLOW),
	int(unix.EOWNERDEAD), int(unix.EPERM), int(unix.EPIPE), int(unix.EPROTO),
	int(unix.EPROTONOSUPPORT), int(unix.EPROTOTYPE), int(unix.ERANGE), int(unix.EROFS),
	int(unix.ESPIPE), int(unix.ESRCH), int(unix.ESTALE), int(unix.ETIME),
	int(unix.ETIMEDOUT), int(unix.ETXTBSY), int(unix.EXDEV),
}

var errnoToIndex map[int]int64

func init() {
	errnoToIndex = make(map[int]int64, len(systemErrors))
	for i, e := range systemErrors {
		if _, ok := errnoToIndex[e]; !ok {
			errnoToIndex[e] = int64(i)
		}
	}
}

// systemErrorToError converts a raw errno into its VM-level index, or -1 if
// the errno is not in the table (posix_errno.cpp's behavior for an
// out-of-range value).
func systemErrorToError(errno int) int64 {
	if errno == int(unix.EWOULDBLOCK) && unix.EAGAIN != unix.EWOULDBLOCK {
		errno = int(unix.EAGAIN)
	}
	if errno == int(unix.EOPNOTSUPP) && unix.ENOTSUP != unix.EOPNOTSUPP {
		errno = int(unix.ENOTSUP)
	}
	if idx, ok := errnoToIndex[errno]; ok {
		return idx
	}
	return -1
}

// errorToSystemError is the inverse: a VM-level error index back to errno,
// used by functions that take an errno as an argument (none in this subset
// yet, but kept symmetric with posix.hpp's error_to_system_error).
func errorToSystemError(e int64) (int, bool) {
	if e < 0 || int(e) >= len(systemErrors) {
		return 0, false
	}
	return systemErrors[e], true
}
