package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound      = errors.New("result not found")
	ErrInvalidLimit  = errors.New("invalid results limit")
	ErrMissingRound  = errors.New("missing round id")
	ErrMissingPerson = errors.New("missing person id")

	// ErrFormatMismatch is returned when a row's event or format differs
	// from the one its round was first stored with.
	ErrFormatMismatch = errors.New("round format mismatch")
)
