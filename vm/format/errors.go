package format

import "errors"

var (
	ErrTruncated = errors.New("format: section truncated")
	ErrBadMagic  = errors.New("format: bad magic")
	ErrOverflow  = errors.New("format: size arithmetic overflow")
)
