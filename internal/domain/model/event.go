// Package model contains domain models passed between layers.
package model

import "github.com/okian/wcalive/internal/domain/attempt"

// Event ids with dedicated scoring rules.
const (
	EventFewestMoves = "333fm"
	EventMultiBlind  = "333mbf"
)

// SortBy names the statistic a round is ranked by.
type SortBy string

// Ranking criteria.
const (
	SortByBest    SortBy = "best"
	SortByAverage SortBy = "average"
)

// EventFormat describes how many attempts a round has and how it is ranked.
type EventFormat struct {
	NumberOfAttempts int    `json:"number_of_attempts"`
	SortBy           SortBy `json:"sort_by"`
}

// HasAverage reports whether the format produces an average statistic.
func (f EventFormat) HasAverage() bool {
	return f.NumberOfAttempts == 3 || f.NumberOfAttempts == 5
}

// Cutoff gates attempts past NumberOfAttempts behind beating AttemptResult.
type Cutoff struct {
	NumberOfAttempts int            `json:"number_of_attempts"`
	AttemptResult    attempt.Result `json:"attempt_result"`
}

// TimeLimit forces attempts over Centiseconds to DNF. When CumulativeRoundIDs
// is set the limit is shared across those rounds and ElapsedCentiseconds
// carries the time already spent in the other rounds.
type TimeLimit struct {
	Centiseconds        int      `json:"centiseconds"`
	CumulativeRoundIDs  []string `json:"cumulative_round_ids,omitempty"`
	ElapsedCentiseconds int      `json:"elapsed_centiseconds,omitempty"`
}

// Cumulative reports whether the limit is pooled across rounds.
func (t TimeLimit) Cumulative() bool { return len(t.CumulativeRoundIDs) > 0 }

// Entry is one competitor's attempts in a round together with the rules
// needed to validate and aggregate them.
type Entry struct {
	RoundID   string
	PersonID  string
	EventID   string
	Attempts  []attempt.Result
	Format    EventFormat
	Cutoff    *Cutoff
	TimeLimit *TimeLimit
}

// Stats is the aggregated outcome of a result.
type Stats struct {
	Best    attempt.Result `json:"best"`
	Average attempt.Result `json:"average"`
}

// Submission is an entry queued for storage.
type Submission struct {
	SubmissionID string
	Entry        Entry
	// Confirmed acknowledges any warning raised for the attempts.
	Confirmed bool
}

// Evaluated is an entry after normalization, gating and aggregation.
type Evaluated struct {
	Attempts    []attempt.Result
	Stats       Stats
	MeetsCutoff bool
	// Warning is empty when no advisory applies.
	Warning     string
	WarningKind string
}
