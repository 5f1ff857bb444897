package attempt

// MBLD packing: (99 - points) * 1e7 + seconds * 1e2 + missed.
const (
	// MaxMbldCubes is the largest number of cubes the packed format can carry.
	MaxMbldCubes = 99

	// UnknownMbldSeconds marks an attempt whose time was not recorded.
	UnknownMbldSeconds = 99999

	mbldPointsBase     = 99
	mbldPointsFactor   = 10_000_000
	mbldSecondsFactor  = 100
	mbldSecondsModulus = 100_000
	centisPerSecond    = 100
)

// Mbld holds the logical fields of a multi-blind attempt.
type Mbld struct {
	Solved    int `json:"solved"`
	Attempted int `json:"attempted"`
	// Centiseconds is the attempt time, or the attempt's sentinel value
	// (0, -1, -2) when Solved and Attempted are zero.
	Centiseconds int `json:"centiseconds"`
	// TimeUnknown is set when the attempt has no recorded time.
	TimeUnknown bool `json:"time_unknown,omitempty"`
}

// Missed returns the number of unsolved cubes.
func (m Mbld) Missed() int { return m.Attempted - m.Solved }

// Points returns solved minus missed.
func (m Mbld) Points() int { return m.Solved - m.Missed() }

// EncodeMbld packs m into its wire value. With no cubes and a non-positive
// time the time is a sentinel and is returned as is. Times are stored with
// one-second resolution, rounding half up.
func EncodeMbld(m Mbld) Result {
	if m.Attempted == 0 && m.Solved == 0 && !m.TimeUnknown && m.Centiseconds <= 0 {
		return Result(m.Centiseconds)
	}
	seconds := UnknownMbldSeconds
	if !m.TimeUnknown {
		seconds = (m.Centiseconds + centisPerSecond/2) / centisPerSecond
	}
	return Result((mbldPointsBase-m.Points())*mbldPointsFactor + seconds*mbldSecondsFactor + m.Missed())
}

// DecodeMbld unpacks a wire value. Non-positive values decode to
// {0, 0, value} so sentinels pass through unchanged.
func DecodeMbld(r Result) Mbld {
	v := int(r)
	if v <= 0 {
		return Mbld{Centiseconds: v}
	}
	missed := v % mbldSecondsFactor
	seconds := (v / mbldSecondsFactor) % mbldSecondsModulus
	points := mbldPointsBase - v/mbldPointsFactor
	solved := points + missed
	m := Mbld{
		Solved:    solved,
		Attempted: solved + missed,
	}
	if seconds == UnknownMbldSeconds {
		m.TimeUnknown = true
	} else {
		m.Centiseconds = seconds * centisPerSecond
	}
	return m
}
