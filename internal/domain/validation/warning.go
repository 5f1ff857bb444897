package validation

import (
	"fmt"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/format"
	"github.com/okian/wcalive/internal/domain/model"
)

// Warning thresholds.
const (
	minMbldSecondsPerCube    = 30
	inconsistentSpreadFactor = 4
)

// IssueKind classifies an advisory warning.
type IssueKind string

// Warning kinds, in the order they are checked.
const (
	IssueSkippedGap   IssueKind = "skipped_gap"
	IssueMbldPace     IssueKind = "mbld_pace"
	IssueInconsistent IssueKind = "inconsistent"
)

// Issue is an advisory warning about entered attempts.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// Warning returns the first advisory message that applies to attempts.
func Warning(attempts []attempt.Result, eventID string) (string, bool) {
	issue, ok := Check(attempts, eventID)
	return issue.Message, ok
}

// Check is Warning with the kind of the issue attached.
func Check(attempts []attempt.Result, eventID string) (Issue, bool) {
	trimmed := attempt.TrimTrailingSkipped(attempts)
	for i, r := range trimmed {
		if r.IsSkipped() {
			return Issue{
				Kind:    IssueSkippedGap,
				Message: fmt.Sprintf("You've omitted attempt %d. Make sure it's intentional.", i+1),
			}, true
		}
	}

	if eventID == model.EventMultiBlind {
		for _, r := range trimmed {
			if !r.IsCompleted() {
				continue
			}
			m := attempt.DecodeMbld(r)
			if m.TimeUnknown || m.Attempted == 0 {
				continue
			}
			if m.Centiseconds < minMbldSecondsPerCube*100*m.Attempted {
				return Issue{
					Kind: IssueMbldPace,
					Message: fmt.Sprintf(
						"The result you're trying to submit seems to be impossible: %d cubes attempted in %s. Please double check it.",
						m.Attempted, format.ClockSeconds(m.Centiseconds)),
				}, true
			}
		}
		return Issue{}, false
	}

	lo, hi := 0, 0
	for _, o := range attempt.Outcomes(trimmed) {
		if !o.IsCompleted() {
			continue
		}
		if lo == 0 || o.Value < lo {
			lo = o.Value
		}
		hi = max(hi, o.Value)
	}
	if lo > 0 && hi > inconsistentSpreadFactor*lo {
		return Issue{
			Kind:    IssueInconsistent,
			Message: "The result you're trying to submit seems to be inconsistent. There's a big difference between the best and the worst single. Please double check it.",
		}, true
	}
	return Issue{}, false
}
