package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/wcalive/internal/adapters/mq/queue"
	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/internal/domain/stats"
	"github.com/okian/wcalive/internal/domain/types"
	"github.com/okian/wcalive/internal/domain/validation"
	"github.com/okian/wcalive/pkg/logger"
	"github.com/okian/wcalive/pkg/metrics"
)

const maxAttempts = 5

// Gating kinds as reported to metrics.
const (
	gatedTimeLimit = "time_limit"
	gatedCutoff    = "cutoff"
)

// Evaluate normalizes, gates and aggregates an entry. It is what workers
// run before storing a submission and is safe for concurrent use.
func (s *Service) Evaluate(_ context.Context, e model.Entry) (model.Evaluated, error) { //nolint:gocritic // hugeParam: matches worker.Evaluator
	ev, _, err := evaluate(e)
	return ev, err
}

// Preview evaluates an entry without storing it.
func (s *Service) Preview(ctx context.Context, e model.Entry) (types.Evaluation, error) { //nolint:gocritic // hugeParam: request value
	_, span := s.tracer.Start(ctx, "Service.Preview")
	defer span.End()
	span.SetAttributes(entryAttributes(e)...)

	metrics.RecordPreview()
	ev, gated, err := evaluate(e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Evaluation{}, err
	}
	observe(ev, gated)
	span.SetAttributes(attribute.String("warning_kind", ev.WarningKind))
	return toEvaluation("", e, ev), nil
}

// Submit evaluates a submission and queues it for storage.
//
// A missing SubmissionID is generated. An entry whose event or format
// differs from results already stored for its round returns
// ErrFormatMismatch. A replayed id returns ErrDuplicate, attempts carrying
// a warning return ErrConfirmationRequired unless confirmed and a full
// queue returns ErrBackpressure. The evaluation is
// returned alongside ErrDuplicate and ErrConfirmationRequired.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (types.Evaluation, error) { //nolint:gocritic // hugeParam: request value
	ctx, span := s.tracer.Start(ctx, "Service.Submit")
	defer span.End()

	c, err := s.running()
	if err != nil {
		return types.Evaluation{}, err
	}
	if sub.SubmissionID == "" {
		sub.SubmissionID = uuid.NewString()
	}
	span.SetAttributes(entryAttributes(sub.Entry)...)
	span.SetAttributes(attribute.String("submission_id", sub.SubmissionID))
	metrics.RecordSubmissionReceived()

	ev, gated, err := evaluate(sub.Entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Evaluation{}, err
	}
	out := toEvaluation(sub.SubmissionID, sub.Entry, ev)

	if err := c.store.CheckFormat(ctx, sub.Entry.RoundID, sub.Entry.EventID, sub.Entry.Format); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug(ctx, "round format mismatch",
			logger.String("submissionID", sub.SubmissionID),
			logger.String("round", sub.Entry.RoundID),
			logger.Error(err),
		)
		return out, fmt.Errorf("%w: %w", ErrFormatMismatch, err)
	}

	if c.deduper.SeenAndRecord(ctx, sub.SubmissionID) {
		metrics.RecordSubmissionDuplicate()
		s.logger.Debug(ctx, "duplicate submission", logger.String("submissionID", sub.SubmissionID))
		return out, ErrDuplicate
	}

	if ev.Warning != "" && !sub.Confirmed && s.requireConfirmation {
		c.deduper.Unrecord(ctx, sub.SubmissionID)
		metrics.RecordConfirmationRequired()
		metrics.RecordWarning(ev.WarningKind)
		return out, ErrConfirmationRequired
	}
	observe(ev, gated)

	if err := c.queue.Enqueue(ctx, sub); err != nil {
		c.deduper.Unrecord(ctx, sub.SubmissionID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, queue.ErrFull):
			s.logger.Warn(ctx, "submission queue full", logger.String("submissionID", sub.SubmissionID))
			return out, fmt.Errorf("%w: %w", ErrBackpressure, err)
		case errors.Is(err, queue.ErrClosed):
			return out, fmt.Errorf("%w: %w", ErrNotStarted, err)
		default:
			return out, fmt.Errorf("enqueue submission: %w", err)
		}
	}

	s.logger.Debug(ctx, "submission queued",
		logger.String("submissionID", sub.SubmissionID),
		logger.String("round", sub.Entry.RoundID),
		logger.String("person", sub.Entry.PersonID),
	)
	return out, nil
}

// evaluate runs the pure pipeline: normalize, gate, warn, aggregate.
func evaluate(e model.Entry) (model.Evaluated, validation.Gated, error) { //nolint:gocritic // hugeParam: request value
	start := time.Now()
	defer func() {
		metrics.RecordEvaluationLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := validateEntry(e); err != nil {
		return model.Evaluated{}, validation.Gated{}, err
	}

	limit := e.TimeLimit
	switch e.EventID {
	case model.EventMultiBlind, model.EventFewestMoves:
		// 333mbf has its per-cube limit in ValidateMbld; 333fm counts moves
		limit = nil
	}
	gated := validation.Gate(validation.Normalize(e.Attempts, e.EventID), e.Cutoff, limit)
	attempts := attempt.TrimTrailingSkipped(gated.Attempts)

	st, err := stats.Compute(attempts, e.EventID, e.Format)
	if err != nil {
		return model.Evaluated{}, gated, fmt.Errorf("compute stats: %w", err)
	}

	ev := model.Evaluated{
		Attempts:    attempts,
		Stats:       st,
		MeetsCutoff: validation.MeetsCutoff(attempts, e.Cutoff),
	}
	if issue, ok := validation.Check(attempts, e.EventID); ok {
		ev.Warning = issue.Message
		ev.WarningKind = string(issue.Kind)
	}
	return ev, gated, nil
}

func observe(ev model.Evaluated, gated validation.Gated) { //nolint:gocritic // hugeParam
	if ev.WarningKind != "" {
		metrics.RecordWarning(ev.WarningKind)
	}
	if gated.TimeLimited > 0 {
		metrics.RecordGatedAttempts(gatedTimeLimit, gated.TimeLimited)
	}
	if gated.CutOff > 0 {
		metrics.RecordGatedAttempts(gatedCutoff, gated.CutOff)
	}
}

func validateEntry(e model.Entry) error { //nolint:gocritic // hugeParam
	switch {
	case e.RoundID == "":
		return fmt.Errorf("%w: missing round id", ErrInvalidEntry)
	case e.PersonID == "":
		return fmt.Errorf("%w: missing person id", ErrInvalidEntry)
	case e.EventID == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidEntry)
	case e.Format.NumberOfAttempts < 1 || e.Format.NumberOfAttempts > maxAttempts:
		return fmt.Errorf("%w: number of attempts must be between 1 and %d", ErrInvalidEntry, maxAttempts)
	case len(e.Attempts) > e.Format.NumberOfAttempts:
		return fmt.Errorf("%w: %d attempts entered for a round of %d", ErrInvalidEntry, len(e.Attempts), e.Format.NumberOfAttempts)
	}

	switch e.Format.SortBy {
	case model.SortByBest:
	case model.SortByAverage:
		if !e.Format.HasAverage() {
			return fmt.Errorf("%w: format of %d attempts has no average", ErrInvalidEntry, e.Format.NumberOfAttempts)
		}
	default:
		return fmt.Errorf("%w: unknown sort_by %q", ErrInvalidEntry, e.Format.SortBy)
	}

	if c := e.Cutoff; c != nil {
		if c.NumberOfAttempts < 1 || c.NumberOfAttempts >= e.Format.NumberOfAttempts {
			return fmt.Errorf("%w: cutoff attempts must be below the round's attempts", ErrInvalidEntry)
		}
		if !c.AttemptResult.IsCompleted() {
			return fmt.Errorf("%w: cutoff result must be positive", ErrInvalidEntry)
		}
	}
	if t := e.TimeLimit; t != nil && (t.Centiseconds <= 0 || t.ElapsedCentiseconds < 0) {
		return fmt.Errorf("%w: time limit must be positive", ErrInvalidEntry)
	}
	return nil
}

func entryAttributes(e model.Entry) []attribute.KeyValue { //nolint:gocritic // hugeParam
	return []attribute.KeyValue{
		attribute.String("round_id", e.RoundID),
		attribute.String("person_id", e.PersonID),
		attribute.String("event_id", e.EventID),
		attribute.Int("attempts", len(e.Attempts)),
	}
}
