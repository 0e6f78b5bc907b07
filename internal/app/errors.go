package service

import "github.com/okian/competa/internal/domain/types"

var (
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = types.ErrUnavailable
	// ErrInvalidRequest reports a request missing required fields.
	ErrInvalidRequest = types.ErrInvalidRequest
)
