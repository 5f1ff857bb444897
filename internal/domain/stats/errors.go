package stats

import "errors"

// Contract violations. These signal a caller bug, not a data-entry problem.
var (
	ErrInvalidSolveCount = errors.New("expected solve count must be 3 or 5")
	ErrMissingEventID    = errors.New("missing event id")
)
