package model

import "errors"

// Sentinel kinds shared by stores and their callers.
var (
	ErrNotFound = errors.New("evaluation not found")
	ErrConflict = errors.New("assignment key changed concurrently")
)
