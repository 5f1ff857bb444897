package validation

import (
	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

const (
	// singles over 10 minutes are rounded to the whole second, x.50 up (9f2)
	roundingThreshold = 10 * 60 * 100
	centisPerSecond   = 100
	fmMaxMoves        = 80
)

// Normalize repairs entered attempts the way the scoretaking form does on
// blur: long time singles are rounded to the whole second, 333fm counts
// over 80 moves become DNF and 333mbf attempts are revalidated. Unknown
// negative values become DNF and trailing skipped slots are dropped.
func Normalize(attempts []attempt.Result, eventID string) []attempt.Result {
	out := make([]attempt.Result, 0, len(attempts))
	for _, r := range attempt.TrimTrailingSkipped(attempts) {
		out = append(out, normalizeOne(r, eventID))
	}
	return out
}

func normalizeOne(r attempt.Result, eventID string) attempt.Result {
	o := r.Outcome()
	if !o.IsCompleted() {
		return o.Result()
	}
	switch eventID {
	case model.EventFewestMoves:
		if o.Value > fmMaxMoves {
			return attempt.DNF
		}
		return r
	case model.EventMultiBlind:
		return attempt.EncodeMbld(ValidateMbld(attempt.DecodeMbld(r)))
	default:
		if o.Value > roundingThreshold {
			return attempt.Result((o.Value + centisPerSecond/2) / centisPerSecond * centisPerSecond)
		}
		return r
	}
}
