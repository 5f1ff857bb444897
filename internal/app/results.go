package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/wcalive/internal/adapters/repository"
	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/format"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/internal/domain/stats"
	"github.com/okian/wcalive/internal/domain/types"
)

// RoundResults returns the best limit results of a round in rank order.
func (s *Service) RoundResults(ctx context.Context, roundID string, limit int) ([]types.Row, error) {
	ctx, span := s.tracer.Start(ctx, "Service.RoundResults")
	defer span.End()
	span.SetAttributes(attribute.String("round_id", roundID), attribute.Int("limit", limit))

	c, err := s.running()
	if err != nil {
		return nil, err
	}
	rows, err := c.store.TopN(ctx, roundID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Row, len(rows))
	for i := range rows {
		out[i] = toRow(&rows[i])
	}
	return out, nil
}

// Rank returns one person's ranked result in a round.
func (s *Service) Rank(ctx context.Context, roundID, personID string) (types.Row, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Rank")
	defer span.End()
	span.SetAttributes(attribute.String("round_id", roundID), attribute.String("person_id", personID))

	c, err := s.running()
	if err != nil {
		return types.Row{}, err
	}
	row, err := c.store.Rank(ctx, roundID, personID)
	if err != nil {
		return types.Row{}, err
	}
	return toRow(&row), nil
}

// Rounds lists the rounds holding results, sorted by id.
func (s *Service) Rounds(ctx context.Context) ([]types.Round, error) {
	c, err := s.running()
	if err != nil {
		return nil, err
	}
	ids := c.store.Rounds(ctx)
	out := make([]types.Round, len(ids))
	for i, id := range ids {
		out[i] = types.Round{RoundID: id, Results: c.store.Count(ctx, id)}
	}
	return out, nil
}

func toRow(r *repository.Row) types.Row {
	return types.Row{
		Rank:      r.Rank,
		PersonID:  r.PersonID,
		EventID:   r.EventID,
		Attempts:  attempt.Ints(r.Attempts),
		Best:      int(r.Stats.Best),
		Average:   int(r.Stats.Average),
		Formatted: formatted(r.EventID, r.Format, r.Attempts, r.Stats),
	}
}

func toEvaluation(submissionID string, e model.Entry, ev model.Evaluated) types.Evaluation { //nolint:gocritic // hugeParam
	return types.Evaluation{
		SubmissionID: submissionID,
		Attempts:     attempt.Ints(ev.Attempts),
		Best:         int(ev.Stats.Best),
		Average:      int(ev.Stats.Average),
		MeetsCutoff:  ev.MeetsCutoff,
		Warning:      ev.Warning,
		WarningKind:  ev.WarningKind,
		Formatted:    formatted(e.EventID, e.Format, ev.Attempts, ev.Stats),
	}
}

func formatted(eventID string, f model.EventFormat, attempts []attempt.Result, st model.Stats) types.Formatted {
	out := types.Formatted{Attempts: make([]string, len(attempts))}
	for i, a := range attempts {
		out.Attempts[i] = format.AttemptResult(a, eventID, false)
	}
	for _, n := range stats.Ordered(st, eventID, f) {
		switch n.Name {
		case stats.NameBest:
			out.Best = format.AttemptResult(n.Value, eventID, false)
		case stats.NameAverage:
			out.Average = format.AttemptResult(n.Value, eventID, true)
		}
	}
	return out
}
