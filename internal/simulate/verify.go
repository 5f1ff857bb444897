package simulate

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/types"
)

// Mismatch is one stored value that differs from the local computation.
type Mismatch struct {
	RoundID  string `json:"round_id"`
	PersonID string `json:"person_id,omitempty"`
	Field    string `json:"field"`
	Want     string `json:"want"`
	Got      string `json:"got"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s/%s %s: want %s, got %s", m.RoundID, m.PersonID, m.Field, m.Want, m.Got)
}

func settled(rounds []types.Round, want map[string]int) bool {
	have := make(map[string]int, len(rounds))
	for _, r := range rounds {
		have[r.RoundID] = r.Results
	}
	for id, n := range want {
		if have[id] < n {
			return false
		}
	}
	return true
}

// verify compares each accepted entry's stored row with eval's result and
// checks that every round's leading rows are in rank order.
func verify(ctx context.Context, c *client, limiter *rate.Limiter, cfg *Config, eval Evaluator,
	rounds []Round, plan []*planned, report *Report,
) ([]Mismatch, error) {
	var (
		mu  sync.Mutex
		out []Mismatch
	)
	add := func(m ...Mismatch) {
		mu.Lock()
		out = append(out, m...)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range plan {
		if !p.accepted.Load() {
			continue
		}
		g.Go(func() error {
			want, err := eval.Evaluate(gctx, p.entry)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", p.id, err)
			}
			if err := limiter.Wait(gctx); err != nil {
				return fmt.Errorf("rate limit: %w", err)
			}
			row, err := c.rank(gctx, p.entry.RoundID, p.entry.PersonID)
			if err != nil {
				return fmt.Errorf("rank %s: %w", p.entry.PersonID, err)
			}
			add(compareRow(p.entry.RoundID, p.entry.PersonID, row, attempt.Ints(want.Attempts), int(want.Stats.Best), int(want.Stats.Average))...)
			return nil
		})
	}
	for i := range rounds {
		roundID := rounds[i].ID
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return fmt.Errorf("rate limit: %w", err)
			}
			rows, err := c.roundResults(gctx, roundID, cfg.TopN)
			if err != nil {
				return fmt.Errorf("round %s: %w", roundID, err)
			}
			add(checkOrder(roundID, rows, cfg.TopN)...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	for _, p := range plan {
		if p.accepted.Load() {
			report.Verified++
		}
	}
	return out, nil
}

func compareRow(roundID, personID string, row types.Row, attempts []int, best, average int) []Mismatch { //nolint:gocritic // hugeParam
	var out []Mismatch
	if !slices.Equal(row.Attempts, attempts) {
		out = append(out, Mismatch{RoundID: roundID, PersonID: personID, Field: "attempts", Want: fmt.Sprint(attempts), Got: fmt.Sprint(row.Attempts)})
	}
	if row.Best != best {
		out = append(out, Mismatch{RoundID: roundID, PersonID: personID, Field: "best", Want: fmt.Sprint(best), Got: fmt.Sprint(row.Best)})
	}
	if row.Average != average {
		out = append(out, Mismatch{RoundID: roundID, PersonID: personID, Field: "average", Want: fmt.Sprint(average), Got: fmt.Sprint(row.Average)})
	}
	return out
}

// checkOrder checks a round's leading rows: at most limit of them, ranks
// starting at 1 and never decreasing.
func checkOrder(roundID string, rows []types.Row, limit int) []Mismatch {
	var out []Mismatch
	if len(rows) > limit {
		out = append(out, Mismatch{RoundID: roundID, Field: "rows", Want: fmt.Sprintf("<= %d", limit), Got: fmt.Sprint(len(rows))})
	}
	if len(rows) > 0 && rows[0].Rank != 1 {
		out = append(out, Mismatch{RoundID: roundID, PersonID: rows[0].PersonID, Field: "rank", Want: "1", Got: fmt.Sprint(rows[0].Rank)})
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Rank < rows[i-1].Rank {
			out = append(out, Mismatch{RoundID: roundID, PersonID: rows[i].PersonID, Field: "rank", Want: fmt.Sprintf(">= %d", rows[i-1].Rank), Got: fmt.Sprint(rows[i].Rank)})
		}
	}
	return out
}
