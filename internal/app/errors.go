package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrBackpressure = errors.New("refresh queue full")
	ErrNotStarted   = errors.New("service not started")
)
