package validation

import (
	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

// Gated is the outcome of ApplyGating together with what it changed.
type Gated struct {
	Attempts []attempt.Result
	// TimeLimited counts attempts forced to DNF by the time limit.
	TimeLimited int
	// CutOff counts entered attempts cleared because the cutoff was missed.
	CutOff int
}

// MeetsCutoff reports whether attempts past the cutoff window may be entered.
// A nil cutoff is always met.
func MeetsCutoff(attempts []attempt.Result, cutoff *model.Cutoff) bool {
	if cutoff == nil {
		return true
	}
	window := attempts[:max(0, min(cutoff.NumberOfAttempts, len(attempts)))]
	for _, o := range attempt.Outcomes(window) {
		if o.IsCompleted() && o.Value < int(cutoff.AttemptResult) {
			return true
		}
	}
	return false
}

// ApplyGating returns a copy of attempts with the time limit and cutoff
// enforced. It must be re-run after every edit since an earlier attempt can
// change whether later slots are allowed.
//
// Time limits apply to the attempt value as is, so callers pass a nil limit
// for 333mbf where the per-cube limit is part of ValidateMbld.
func ApplyGating(attempts []attempt.Result, cutoff *model.Cutoff, limit *model.TimeLimit) []attempt.Result {
	return Gate(attempts, cutoff, limit).Attempts
}

// Gate is ApplyGating reporting what was changed.
func Gate(attempts []attempt.Result, cutoff *model.Cutoff, limit *model.TimeLimit) Gated {
	g := Gated{Attempts: make([]attempt.Result, len(attempts))}
	copy(g.Attempts, attempts)

	if limit != nil && limit.Centiseconds > 0 {
		elapsed := limit.ElapsedCentiseconds
		for i, o := range attempt.Outcomes(g.Attempts) {
			if !o.IsCompleted() {
				continue
			}
			spent := o.Value
			if limit.Cumulative() {
				elapsed += o.Value
				spent = elapsed
			}
			if spent > limit.Centiseconds {
				g.Attempts[i] = attempt.DNF
				g.TimeLimited++
			}
		}
	}

	if cutoff != nil && !MeetsCutoff(g.Attempts, cutoff) {
		for i := max(cutoff.NumberOfAttempts, 0); i < len(g.Attempts); i++ {
			if !g.Attempts[i].IsSkipped() {
				g.Attempts[i] = attempt.Skipped
				g.CutOff++
			}
		}
	}
	return g
}
