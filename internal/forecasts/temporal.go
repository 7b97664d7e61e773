package forecasts

import (
	"fmt"
	"math"
	"time"

	"gfsfetch/internal/types"
)

// RunCadence is the spacing between GFS runs (00z, 06z, 12z, 18z).
const RunCadence = 6 * time.Hour

// Retention is how far back the data server keeps runs.
const Retention = 7 * 24 * time.Hour

// FloorToHour zeroes minutes, seconds and nanoseconds, moving to the next
// hour when minutes are 30 or more.
func FloorToHour(t time.Time) time.Time {
	h := t.Truncate(time.Hour)
	if t.Minute() >= 30 {
		h = h.Add(time.Hour)
	}
	return h
}

// Window is the span of valid times for run selection. Both ends are
// exclusive.
type Window struct {
	Earliest          time.Time
	Latest            time.Time
	LatestForecastRun time.Time
}

// Contains reports whether t lies strictly inside the window.
func (w Window) Contains(t time.Time) bool {
	return t.After(w.Earliest) && t.Before(w.Latest)
}

// AvailabilityWindow computes the run selection window at now. The latest
// run is the most recent 6-hourly cycle; it reaches tm.Extent() forward.
func AvailabilityWindow(now time.Time, tm types.TimeMeta) Window {
	now = now.UTC()
	cycle := now.Truncate(time.Hour).Add(-time.Duration(now.Hour()%6) * time.Hour)
	latest := cycle.Add(tm.Extent())
	return Window{
		Earliest:          FloorToHour(now).Add(-Retention),
		Latest:            latest,
		LatestForecastRun: latest.Add(-tm.Extent()),
	}
}

// ResolveRun maps requested onto the newest run at or before it and the
// step index within that run.
func ResolveRun(now time.Time, tm types.TimeMeta, requested time.Time) (types.RunSlot, error) {
	if tm.RunStepHours <= 0 || tm.RunCount <= 0 {
		return types.RunSlot{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("invalid time metadata: %d steps of %dh", tm.RunCount, tm.RunStepHours), nil)
	}

	requested = requested.UTC()
	w := AvailabilityWindow(now, tm)
	if !w.Contains(requested) {
		return types.RunSlot{}, types.NewAppErrorWithDetails(types.ErrCodeRangeTimeUnavailable,
			fmt.Sprintf("requested time %s is outside the available window (%s, %s); runs reach at most %dh ahead",
				requested.Format(time.RFC3339), w.Earliest.Format(time.RFC3339), w.Latest.Format(time.RFC3339),
				tm.RunCount*tm.RunStepHours),
			nil,
			map[string]any{
				"requested":         requested.Format(time.RFC3339),
				"earliest":          w.Earliest.Format(time.RFC3339),
				"latest":            w.Latest.Format(time.RFC3339),
				"max_forward_hours": tm.RunCount * tm.RunStepHours,
			})
	}

	run := w.LatestForecastRun
	for requested.Before(run) {
		run = run.Add(-RunCadence)
	}

	// Nearest step, ties to even. Not clamped: within half a step of Latest
	// the index equals RunCount.
	offset := requested.Sub(run)
	index := int(math.RoundToEven(float64(offset) / float64(tm.Step())))
	return types.RunSlot{Run: run, TimeIndex: index}, nil
}
