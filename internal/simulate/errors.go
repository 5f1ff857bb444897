package simulate

import "errors"

var (
	// ErrInvalidConfig indicates the simulation settings are unusable.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrUnexpectedStatus indicates the server answered with an unexpected HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrNotSettled indicates accepted submissions did not reach the store in time.
	ErrNotSettled = errors.New("results did not settle")
	// ErrMismatch indicates stored results differ from the locally computed ones.
	ErrMismatch = errors.New("result mismatch")
)
