// Package repository keeps the ranked results of every round.
package repository

import (
	"context"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

// Row is a stored result and, on reads, its rank within the round.
type Row struct {
	Rank     int
	RoundID  string
	PersonID string
	EventID  string
	Format   model.EventFormat
	Attempts []attempt.Result
	Stats    model.Stats
}

// Store provides read/write access to round results.
type Store interface {
	// Upsert stores row as the person's result in its round, replacing any
	// previous one. Edits can make a result worse, so the latest write wins.
	// It reports whether the person had no result in the round before.
	// The first row of a round fixes its event and format; later rows with
	// a different one fail with ErrFormatMismatch.
	Upsert(ctx context.Context, row Row) (bool, error)

	// CheckFormat returns ErrFormatMismatch if the round already holds
	// results for another event or format.
	CheckFormat(ctx context.Context, roundID, eventID string, format model.EventFormat) error

	// Rank returns the person's row with its current rank.
	// Returns ErrNotFound if the person has no result in the round.
	Rank(ctx context.Context, roundID, personID string) (Row, error)

	// TopN returns the first n rows of the round in ranking order.
	TopN(ctx context.Context, roundID string, n int) ([]Row, error)

	// Count returns the number of results stored for the round.
	Count(ctx context.Context, roundID string) int

	// Rounds returns the ids of rounds holding at least one result.
	Rounds(ctx context.Context) []string
}
