package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/pkg/logger"
)

const (
	pollInterval        = 100 * time.Millisecond
	directoryPermission = 0o750
)

// Evaluator computes the expected outcome of an entry locally.
type Evaluator interface {
	Evaluate(ctx context.Context, e model.Entry) (model.Evaluated, error)
}

// Report summarises a simulation run.
type Report struct {
	Rounds     int
	Generated  int
	Accepted   int64
	Duplicate  int64
	Failed     int64
	Replayed   int64
	Verified   int64
	Mismatches []Mismatch
	Duration   time.Duration
}

// planned is one entry and what happened to its submission.
type planned struct {
	id       string
	entry    model.Entry
	accepted atomic.Bool
}

// Run generates rounds, submits them, waits for the store to settle and
// checks every stored result against eval. A report is returned together
// with ErrMismatch when any check fails.
func Run(ctx context.Context, cfg *Config, eval Evaluator) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("simulate")
	start := time.Now()

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("competitors", cfg.Competitors),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rate", cfg.Rate),
		logger.Int64("seed", cfg.Seed))

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	rounds := Generate(cfg)
	plan := make([]*planned, 0, len(rounds)*cfg.Competitors)
	for i := range rounds {
		for _, e := range rounds[i].Entries {
			plan = append(plan, &planned{id: uuid.NewString(), entry: e})
		}
	}
	if cfg.OutputFile != "" {
		if err := saveRounds(cfg.OutputFile, rounds); err != nil {
			log.Warn(ctx, "failed to save rounds", logger.Error(err))
		}
	}

	report := &Report{Rounds: len(rounds), Generated: len(plan)}
	limiter := newLimiter(cfg)

	if err := submitAll(ctx, c, limiter, cfg.Workers, plan, report); err != nil {
		return report, err
	}
	log.Info(ctx, "submissions sent",
		logger.Int64("accepted", report.Accepted),
		logger.Int64("duplicate", report.Duplicate),
		logger.Int64("failed", report.Failed))

	if err := replay(ctx, c, limiter, cfg.Replays, plan, report); err != nil {
		return report, err
	}

	if err := waitForRounds(ctx, c, cfg.Settle, expectedCounts(plan)); err != nil {
		return report, err
	}

	mismatches, err := verify(ctx, c, limiter, cfg, eval, rounds, plan, report)
	if err != nil {
		return report, err
	}
	report.Mismatches = mismatches
	report.Duration = time.Since(start)

	log.Info(ctx, "simulation finished",
		logger.Int("generated", report.Generated),
		logger.Int64("accepted", report.Accepted),
		logger.Int64("failed", report.Failed),
		logger.Int64("replayed", report.Replayed),
		logger.Int64("verified", report.Verified),
		logger.Int("mismatches", len(report.Mismatches)),
		logger.Duration("duration", report.Duration))

	if len(report.Mismatches) > 0 {
		return report, fmt.Errorf("%w: %d results differ", ErrMismatch, len(report.Mismatches))
	}
	return report, nil
}

func newLimiter(cfg *Config) *rate.Limiter {
	if cfg.Rate == 0 {
		return rate.NewLimiter(rate.Inf, cfg.Workers)
	}
	return rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Workers)
}

// submitAll posts every planned entry. Failed submissions are counted, not fatal.
func submitAll(ctx context.Context, c *client, limiter *rate.Limiter, workers int, plan []*planned, report *Report) error {
	log := logger.Named("simulate")
	var accepted, duplicate, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range plan {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return fmt.Errorf("rate limit: %w", err)
			}
			ack, err := c.submit(gctx, newSubmission(p.id, p.entry))
			switch {
			case err != nil:
				failed.Add(1)
				log.Debug(gctx, "submission failed", logger.String("submissionID", p.id), logger.Error(err))
			case ack.Duplicate:
				duplicate.Add(1)
				p.accepted.Store(true)
			default:
				accepted.Add(1)
				p.accepted.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	report.Accepted = accepted.Load()
	report.Duplicate = duplicate.Load()
	report.Failed = failed.Load()
	return nil
}

// replay resends up to n accepted submissions; each must come back as a duplicate.
func replay(ctx context.Context, c *client, limiter *rate.Limiter, n int, plan []*planned, report *Report) error {
	for _, p := range plan {
		if n == 0 {
			break
		}
		if !p.accepted.Load() {
			continue
		}
		n--
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		ack, err := c.submit(ctx, newSubmission(p.id, p.entry))
		if err != nil {
			return fmt.Errorf("replay %s: %w", p.id, err)
		}
		if !ack.Duplicate {
			return fmt.Errorf("%w: replayed submission %s was accepted again", ErrMismatch, p.id)
		}
		report.Replayed++
	}
	return nil
}

func expectedCounts(plan []*planned) map[string]int {
	out := make(map[string]int)
	for _, p := range plan {
		if p.accepted.Load() {
			out[p.entry.RoundID]++
		}
	}
	return out
}

// waitForRounds polls /rounds until every round holds its accepted results.
func waitForRounds(ctx context.Context, c *client, settle time.Duration, want map[string]int) error {
	ctx, cancel := context.WithTimeout(ctx, settle)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rounds, err := c.rounds(ctx)
		if err == nil && settled(rounds, want) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s", ErrNotSettled, settle)
		case <-ticker.C:
		}
	}
}

func saveRounds(filename string, rounds []Round) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	file, err := os.Create(filename) //nolint:gosec // path supplied by the operator
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	type dump struct {
		Round
		Entries []submission `json:"entries"`
	}
	out := make([]dump, len(rounds))
	for i := range rounds {
		out[i].Round = rounds[i]
		for _, e := range rounds[i].Entries {
			out[i].Entries = append(out[i].Entries, newSubmission("", e))
		}
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode rounds: %w", err)
	}
	return nil
}
