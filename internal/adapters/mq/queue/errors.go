package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("update queue full")
	ErrClosed = errors.New("update queue closed")
)
