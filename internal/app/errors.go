package service

import "errors"

// Sentinel kinds returned by the Service.
var (
	ErrNotStarted           = errors.New("service not started")
	ErrInvalidEntry         = errors.New("invalid entry")
	ErrDuplicate            = errors.New("duplicate submission")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrBackpressure         = errors.New("submission queue full")
	ErrFormatMismatch       = errors.New("round format mismatch")
)
