package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound    = errors.New("group not found")
	ErrInvalidID   = errors.New("invalid id")
	ErrUnavailable = errors.New("store unavailable")
)
