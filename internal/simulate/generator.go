package simulate

import (
	"math/rand"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

// Round is a generated round together with the entries of its competitors.
type Round struct {
	ID        string            `json:"round_id"`
	EventID   string            `json:"event_id"`
	Format    model.EventFormat `json:"format"`
	Cutoff    *model.Cutoff     `json:"cutoff,omitempty"`
	TimeLimit *model.TimeLimit  `json:"time_limit,omitempty"`
	Entries   []model.Entry     `json:"-"`
}

// eventProfile describes how an event is held and how fast its competitors are.
type eventProfile struct {
	id      string
	format  model.EventFormat
	minBase int // fastest typical result
	maxBase int // slowest typical result
	dnfRate float64
	limited bool // rounds carry a time limit
	cutoff  bool // rounds may carry a cutoff
}

var profiles = []eventProfile{
	{id: "333", format: model.EventFormat{NumberOfAttempts: 5, SortBy: model.SortByAverage}, minBase: 600, maxBase: 2500, dnfRate: 0.03, limited: true, cutoff: true},
	{id: "222", format: model.EventFormat{NumberOfAttempts: 5, SortBy: model.SortByAverage}, minBase: 200, maxBase: 900, dnfRate: 0.04, limited: true, cutoff: true},
	{id: "444", format: model.EventFormat{NumberOfAttempts: 5, SortBy: model.SortByAverage}, minBase: 2500, maxBase: 7500, dnfRate: 0.05, limited: true, cutoff: true},
	{id: "666", format: model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByAverage}, minBase: 8000, maxBase: 20000, dnfRate: 0.05, limited: true},
	{id: "333bf", format: model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByBest}, minBase: 2000, maxBase: 15000, dnfRate: 0.35, limited: true},
	{id: model.EventFewestMoves, format: model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByAverage}, minBase: 22, maxBase: 45, dnfRate: 0.05},
	{id: model.EventMultiBlind, format: model.EventFormat{NumberOfAttempts: 2, SortBy: model.SortByBest}, dnfRate: 0.1},
}

// Generation tuning.
const (
	dnsRate         = 0.01
	partialRate     = 0.1
	cutoffRate      = 0.5
	cumulativeRate  = 0.3
	spreadMin       = 0.85
	spreadRange     = 0.35
	limitHeadroom   = 1.3
	cutoffAttempts  = 2
	mbldMinCubes    = 2
	mbldMaxCubes    = 12
	mbldCubeSeconds = 600
	mbldOverRate    = 0.05
	fmMaxMoves      = 80
)

// Generate builds cfg.Rounds rounds cycling through the event profiles.
// The same seed always yields the same attempts; ids are random.
func Generate(cfg *Config) []Round {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // simulation data
	run := uuid.NewString()[:8]

	rounds := make([]Round, cfg.Rounds)
	for i := range rounds {
		p := profiles[i%len(profiles)]
		rounds[i] = generateRound(rng, p, run+"-"+p.id+"-r"+strconv.Itoa(i/len(profiles)+1), cfg.Competitors)
	}
	return rounds
}

func generateRound(rng *rand.Rand, p eventProfile, roundID string, competitors int) Round { //nolint:gocritic // hugeParam
	r := Round{ID: roundID, EventID: p.id, Format: p.format}

	if p.limited {
		r.TimeLimit = &model.TimeLimit{Centiseconds: int(float64(p.maxBase) * limitHeadroom)}
		if rng.Float64() < cumulativeRate {
			r.TimeLimit.Centiseconds *= p.format.NumberOfAttempts
			r.TimeLimit.CumulativeRoundIDs = []string{roundID}
		}
	}
	if p.cutoff && rng.Float64() < cutoffRate {
		r.Cutoff = &model.Cutoff{
			NumberOfAttempts: cutoffAttempts,
			AttemptResult:    attempt.Result((p.minBase + p.maxBase) / 2),
		}
	}

	r.Entries = make([]model.Entry, competitors)
	for i := range r.Entries {
		n := p.format.NumberOfAttempts
		if rng.Float64() < partialRate {
			n = 1 + rng.Intn(n)
		}
		r.Entries[i] = model.Entry{
			RoundID:   r.ID,
			PersonID:  uuid.NewString(),
			EventID:   p.id,
			Attempts:  generateAttempts(rng, p, n),
			Format:    r.Format,
			Cutoff:    r.Cutoff,
			TimeLimit: r.TimeLimit,
		}
	}
	return r
}

// generateAttempts returns n attempts for one competitor.
func generateAttempts(rng *rand.Rand, p eventProfile, n int) []attempt.Result { //nolint:gocritic // hugeParam
	base := p.minBase
	if p.maxBase > p.minBase {
		base += rng.Intn(p.maxBase - p.minBase)
	}

	out := make([]attempt.Result, n)
	for i := range out {
		switch x := rng.Float64(); {
		case x < dnsRate:
			out[i] = attempt.DNS
		case x < dnsRate+p.dnfRate:
			out[i] = attempt.DNF
		case p.id == model.EventMultiBlind:
			out[i] = generateMbld(rng)
		case p.id == model.EventFewestMoves:
			out[i] = attempt.Result(min(fmMaxMoves, base+rng.Intn(9)-4))
		default:
			out[i] = attempt.Result(max(1, int(float64(base)*(spreadMin+rng.Float64()*spreadRange))))
		}
	}
	return out
}

// generateMbld returns a packed multi-blind attempt. A few run over the
// per-cube time allowance so that validation has something to reject.
func generateMbld(rng *rand.Rand) attempt.Result {
	attempted := mbldMinCubes + rng.Intn(mbldMaxCubes-mbldMinCubes+1)
	solved := attempted/2 + rng.Intn(attempted-attempted/2+1)
	allowance := min(6, attempted) * mbldCubeSeconds
	seconds := allowance/3 + rng.Intn(allowance*2/3)
	if rng.Float64() < mbldOverRate {
		seconds = allowance + 1 + rng.Intn(mbldCubeSeconds)
	}
	return attempt.EncodeMbld(attempt.Mbld{Solved: solved, Attempted: attempted, Centiseconds: seconds * 100})
}
