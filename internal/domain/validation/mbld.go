// Package validation gates, repairs and sanity-checks attempts as they are
// entered. Nothing here returns an error: anomalies are normalized to DNF or
// Skipped, or reported as an advisory warning the caller may act on.
package validation

import "github.com/okian/wcalive/internal/domain/attempt"

// Multi-blind legality thresholds.
const (
	// 10 minutes per cube...
	mbldMaxCentisecondsPerCube = 10 * 60 * 100
	// ...capped at one hour.
	mbldMaxTimedCubes = 6
)

var mbldDNF = attempt.Mbld{Centiseconds: int(attempt.DNF)}

// ValidateMbld applies the multi-blind legality rules to a decoded attempt.
// An impossible over-solve is repaired by raising Attempted to Solved; too
// many misses, a single solved cube or an implausible duration yields DNF.
func ValidateMbld(m attempt.Mbld) attempt.Mbld {
	if m.Attempted == 0 || m.Solved > m.Attempted {
		m.Attempted = m.Solved
	}
	if m.Attempted > attempt.MaxMbldCubes {
		return mbldDNF
	}
	if 2*m.Solved < m.Attempted || m.Solved <= 1 {
		return mbldDNF
	}
	if !m.TimeUnknown && m.Centiseconds > mbldMaxCentisecondsPerCube*min(mbldMaxTimedCubes, m.Attempted) {
		return mbldDNF
	}
	return m
}
