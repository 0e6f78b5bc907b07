package types

import "errors"

// Errors shared by the service and its transports.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnavailable    = errors.New("service not started")
)
