// Package stats computes the best and average statistics of a result under
// WCA aggregation rules.
package stats

import (
	"fmt"
	"slices"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

// Aggregation constants from the regulations.
const (
	meanOfThree    = 3
	averageOfFive  = 5
	fmAverageScale = 100
	// averages above ten minutes are rounded to the whole second (9f2)
	roundingThreshold = 10 * 60 * 100
	centisPerSecond   = 100
)

// Best returns the best single. Empty or fully skipped attempts yield
// Skipped; attempts with no completed value yield DNF.
func Best(attempts []attempt.Result) attempt.Result {
	best := attempt.Outcome{Kind: attempt.KindSkipped}
	for _, o := range attempt.Outcomes(attempts) {
		switch o.Kind {
		case attempt.KindSkipped:
			continue
		case attempt.KindCompleted:
			if !best.IsCompleted() || o.Value < best.Value {
				best = o
			}
		default:
			if best.IsSkipped() {
				best = attempt.Outcome{Kind: attempt.KindDNF}
			}
		}
	}
	return best.Result()
}

// Average returns the mean of 3 or trimmed average of 5 for attempts.
//
// Missing trailing attempts count as skipped, and any skipped attempt makes
// the average Skipped. 333mbf never has an average. For 333fm the result is
// the move count times 100. Timed averages above ten minutes are rounded to
// the nearest second.
func Average(attempts []attempt.Result, eventID string, expectedSolveCount int) (attempt.Result, error) {
	if expectedSolveCount != meanOfThree && expectedSolveCount != averageOfFive {
		return attempt.Skipped, fmt.Errorf("average of %d: %w", expectedSolveCount, ErrInvalidSolveCount)
	}
	if eventID == "" {
		return attempt.Skipped, ErrMissingEventID
	}
	if eventID == model.EventMultiBlind {
		return attempt.Skipped, nil
	}

	normalized := make([]attempt.Result, expectedSolveCount)
	copy(normalized, attempts)
	for _, r := range normalized {
		if r.IsSkipped() {
			return attempt.Skipped, nil
		}
	}

	counted := normalized
	if expectedSolveCount == averageOfFive {
		slices.SortFunc(normalized, attempt.Compare)
		counted = normalized[1 : averageOfFive-1]
	}

	scale := 1
	if eventID == model.EventFewestMoves {
		scale = fmAverageScale
	}
	sum := 0
	for _, o := range attempt.Outcomes(counted) {
		if !o.IsCompleted() {
			return attempt.DNF, nil
		}
		sum += o.Value * scale
	}

	mean := roundHalfUp(sum, len(counted))
	if eventID != model.EventFewestMoves {
		mean = roundOverTenMinutes(mean)
	}
	return attempt.Completed(mean).Result(), nil
}

// Compute returns best and, when the format has one, average for attempts.
func Compute(attempts []attempt.Result, eventID string, format model.EventFormat) (model.Stats, error) {
	s := model.Stats{Best: Best(attempts), Average: attempt.Skipped}
	if !format.HasAverage() {
		return s, nil
	}
	avg, err := Average(attempts, eventID, format.NumberOfAttempts)
	if err != nil {
		return model.Stats{}, err
	}
	s.Average = avg
	return s, nil
}

// roundHalfUp divides non-negative num by den rounding halves up.
func roundHalfUp(num, den int) int {
	return (2*num + den) / (2 * den)
}

func roundOverTenMinutes(centiseconds int) int {
	if centiseconds <= roundingThreshold {
		return centiseconds
	}
	return roundHalfUp(centiseconds, centisPerSecond) * centisPerSecond
}
