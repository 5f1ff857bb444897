package stats

import (
	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

// Stat names.
const (
	NameBest    = "best"
	NameAverage = "average"
)

// Named is a statistic labelled for display.
type Named struct {
	Name      string
	Value     attempt.Result
	IsAverage bool
}

// Ordered lists the statistics shown for a result, the ranking criterion
// first. The average is omitted when the format has none and for 333mbf.
func Ordered(s model.Stats, eventID string, format model.EventFormat) []Named {
	best := Named{Name: NameBest, Value: s.Best}
	if !format.HasAverage() || eventID == model.EventMultiBlind {
		return []Named{best}
	}
	avg := Named{Name: NameAverage, Value: s.Average, IsAverage: true}
	if format.SortBy == model.SortByAverage {
		return []Named{avg, best}
	}
	return []Named{best, avg}
}

// CompareStats orders two results for ranking by their statistics taken in
// Ordered order. It returns -1, 0 or 1.
func CompareStats(a, b model.Stats, eventID string, format model.EventFormat) int {
	oa, ob := Ordered(a, eventID, format), Ordered(b, eventID, format)
	for i := range oa {
		if c := attempt.Compare(oa[i].Value, ob[i].Value); c != 0 {
			return c
		}
	}
	return 0
}
