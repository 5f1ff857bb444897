package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrFull   = errors.New("submission queue full")
	ErrClosed = errors.New("submission queue closed")
)
