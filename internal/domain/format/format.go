// Package format renders attempt results for display.
package format

import (
	"fmt"
	"strconv"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

const (
	centisPerSecond = 100
	centisPerMinute = 60 * centisPerSecond
	centisPerHour   = 60 * centisPerMinute
	fmAverageScale  = 100
)

// AttemptResult renders value for eventID. isAverage selects the 333fm
// average form (moves*100 shown with two decimals).
func AttemptResult(value attempt.Result, eventID string, isAverage bool) string {
	o := value.Outcome()
	switch o.Kind {
	case attempt.KindSkipped:
		return ""
	case attempt.KindDNF:
		return "DNF"
	case attempt.KindDNS:
		return "DNS"
	}

	switch eventID {
	case model.EventFewestMoves:
		if isAverage {
			return fmt.Sprintf("%.2f", float64(o.Value)/fmAverageScale)
		}
		return strconv.Itoa(o.Value)
	case model.EventMultiBlind:
		return mbld(attempt.DecodeMbld(value))
	default:
		return Clock(o.Value)
	}
}

func mbld(m attempt.Mbld) string {
	if m.TimeUnknown {
		return fmt.Sprintf("%d/%d", m.Solved, m.Attempted)
	}
	return fmt.Sprintf("%d/%d %s", m.Solved, m.Attempted, ClockSeconds(m.Centiseconds))
}

// Clock formats centiseconds as H:MM:SS.cc with leading zero components
// dropped, never shorter than S.cc.
func Clock(centiseconds int) string {
	return clock(centiseconds) + fmt.Sprintf(".%02d", centiseconds%centisPerSecond)
}

// ClockSeconds is Clock without the centiseconds, which are truncated.
func ClockSeconds(centiseconds int) string {
	return clock(centiseconds)
}

func clock(cs int) string {
	hours := cs / centisPerHour
	minutes := cs % centisPerHour / centisPerMinute
	seconds := cs % centisPerMinute / centisPerSecond
	switch {
	case hours > 0:
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%d:%02d", minutes, seconds)
	default:
		return strconv.Itoa(seconds)
	}
}
