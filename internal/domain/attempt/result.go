// Package attempt defines attempt results as they travel on the wire and the
// outcome variant the rest of the domain reasons about.
//
// The integer encoding (0 skipped, -1 DNF, -2 DNS, positive payload) is a
// compatibility contract with the system of record. Only this package knows
// the sentinel numbers; everything else switches on Kind.
package attempt

// Result is an attempt result in its wire representation.
//
// Positive values are centiseconds for timed events, move counts for 333fm
// singles, moves*100 for 333fm averages and a packed integer for 333mbf.
type Result int

// Wire sentinels.
const (
	Skipped Result = 0
	DNF     Result = -1
	DNS     Result = -2
)

// Kind tags an Outcome.
type Kind uint8

const (
	// KindSkipped marks an empty attempt slot.
	KindSkipped Kind = iota
	// KindDNF marks an attempt that did not finish.
	KindDNF
	// KindDNS marks an attempt that did not start.
	KindDNS
	// KindCompleted marks a finished attempt carrying a positive value.
	KindCompleted
)

// String returns the short label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindSkipped:
		return "skipped"
	case KindDNF:
		return "dnf"
	case KindDNS:
		return "dns"
	case KindCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome is the tagged form of a Result.
type Outcome struct {
	Kind  Kind
	Value int // only meaningful for KindCompleted
}

// Completed builds a completed outcome. Non-positive values are not a
// completed attempt and yield DNF.
func Completed(value int) Outcome {
	if value <= 0 {
		return Outcome{Kind: KindDNF}
	}
	return Outcome{Kind: KindCompleted, Value: value}
}

// Outcome converts the wire value to its tagged form. Negative values other
// than the known sentinels are treated as DNF.
func (r Result) Outcome() Outcome {
	switch {
	case r > 0:
		return Outcome{Kind: KindCompleted, Value: int(r)}
	case r == Skipped:
		return Outcome{Kind: KindSkipped}
	case r == DNS:
		return Outcome{Kind: KindDNS}
	default:
		return Outcome{Kind: KindDNF}
	}
}

// Result converts the outcome back to the wire value.
func (o Outcome) Result() Result {
	switch o.Kind {
	case KindCompleted:
		return Result(o.Value)
	case KindSkipped:
		return Skipped
	case KindDNS:
		return DNS
	default:
		return DNF
	}
}

// IsCompleted reports whether the outcome carries a finished value.
func (o Outcome) IsCompleted() bool { return o.Kind == KindCompleted }

// IsSkipped reports whether the outcome is an empty slot.
func (o Outcome) IsSkipped() bool { return o.Kind == KindSkipped }

// IsCompleted reports whether r is a finished attempt.
func (r Result) IsCompleted() bool { return r.Outcome().IsCompleted() }

// IsSkipped reports whether r is an empty slot.
func (r Result) IsSkipped() bool { return r.Outcome().IsSkipped() }

// Outcomes converts a wire slice to outcomes.
func Outcomes(results []Result) []Outcome {
	out := make([]Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome()
	}
	return out
}

// Results converts outcomes to a wire slice.
func Results(outcomes []Outcome) []Result {
	out := make([]Result, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Result()
	}
	return out
}

// FromInts adapts a plain integer slice, as decoded from JSON, to Results.
func FromInts(values []int) []Result {
	out := make([]Result, len(values))
	for i, v := range values {
		out[i] = Result(v)
	}
	return out
}

// Ints converts Results to plain integers for encoding.
func Ints(results []Result) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = int(r)
	}
	return out
}

// rank orders kinds for comparison: completed first, then DNF, DNS, skipped.
func (k Kind) rank() int {
	switch k {
	case KindCompleted:
		return 0
	case KindDNF:
		return 1
	case KindDNS:
		return 2
	default:
		return 3
	}
}

// Compare orders two results from best to worst. Completed values compare
// numerically (lower is better) and always beat non-completed ones.
// It returns -1, 0 or 1.
func Compare(a, b Result) int {
	oa, ob := a.Outcome(), b.Outcome()
	if oa.Kind != ob.Kind {
		if oa.Kind.rank() < ob.Kind.rank() {
			return -1
		}
		return 1
	}
	if oa.Kind != KindCompleted || oa.Value == ob.Value {
		return 0
	}
	if oa.Value < ob.Value {
		return -1
	}
	return 1
}

// TrimTrailingSkipped drops skipped slots from the end of results. The
// returned slice shares the backing array.
func TrimTrailingSkipped(results []Result) []Result {
	end := len(results)
	for end > 0 && results[end-1].IsSkipped() {
		end--
	}
	return results[:end]
}
