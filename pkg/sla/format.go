package sla

import (
	"fmt"

	"sla-status-tracking/pkg/constants"
)

type durationUnit struct {
	seconds int64
	suffix  string
}

var durationUnits = []durationUnit{
	{seconds: constants.SecondsPerMonth, suffix: "mo"},
	{seconds: constants.SecondsPerDay, suffix: "d"},
	{seconds: constants.SecondsPerHour, suffix: "h"},
	{seconds: constants.SecondsPerMinute, suffix: "m"},
}

// FormatDuration renders a second count as at most two units, e.g. "1mo 1d" or "2h".
// Anything below a minute renders as "1m". Negative values use their magnitude.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < constants.SecondsPerMinute {
		return "1m"
	}

	for i, unit := range durationUnits {
		if seconds < unit.seconds {
			continue
		}

		count := seconds / unit.seconds
		remainder := seconds - count*unit.seconds

		if i+1 < len(durationUnits) {
			next := durationUnits[i+1]
			if nextCount := remainder / next.seconds; nextCount > 0 {
				return fmt.Sprintf("%d%s %d%s", count, unit.suffix, nextCount, next.suffix)
			}
		}
		return fmt.Sprintf("%d%s", count, unit.suffix)
	}

	// unreachable: minute is the smallest unit and seconds >= one minute here
	return "1m"
}
