// Package horizon builds the ordered, wall-clock-aligned sequence of time
// slots the MILP is solved over: an optional high-resolution lead-in
// followed by coarser slots, truncated to the shortest available forecast
// coverage.
package horizon

import (
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
)

// Slot is one contiguous, strictly-positive-duration time interval of the
// horizon.
type Slot struct {
	Index int
	Start time.Time
	End   time.Time
}

// DurationH returns the slot's length in hours.
func (s Slot) DurationH() float64 {
	return s.End.Sub(s.Start).Hours()
}

// Horizon is the ordered set of slots the MILP is solved over.
type Horizon struct {
	Now   time.Time
	Start time.Time
	Slots []Slot
}

// N returns the number of slots.
func (h Horizon) N() int { return len(h.Slots) }

// DtHours returns slot t's duration in hours.
func (h Horizon) DtHours(t int) float64 { return h.Slots[t].DurationH() }

// TimeWindow returns slot t's [start,end) bounds.
func (h Horizon) TimeWindow(t int) (time.Time, time.Time) {
	s := h.Slots[t]
	return s.Start, s.End
}

// Config parametrizes horizon construction.
type Config struct {
	// TimestepMinutes is the base (coarse) slot length.
	TimestepMinutes int
	// HighResTimestepMinutes and HighResHorizonMinutes configure an optional
	// fine-grained lead-in; zero disables it.
	HighResTimestepMinutes int
	HighResHorizonMinutes  int
	// MinHorizonMinutes is the minimum total horizon length required.
	MinHorizonMinutes int
	// MaxCoverageMinutes is the shortest available forecast horizon; the
	// built horizon never exceeds it.
	MaxCoverageMinutes int
	// Location is the local timezone used for clock-boundary alignment. A
	// nil Location uses now's own location.
	Location *time.Location
}

func (c Config) hasHighRes() bool {
	return c.HighResTimestepMinutes > 0 && c.HighResHorizonMinutes > 0 &&
		c.HighResTimestepMinutes != c.TimestepMinutes
}

func (c Config) validate() error {
	if c.TimestepMinutes <= 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "timestep_minutes must be > 0")
	}
	if c.HighResTimestepMinutes < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "high_res_timestep_minutes must be >= 0")
	}
	if c.HighResHorizonMinutes < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "high_res_horizon_minutes must be >= 0")
	}
	if c.MinHorizonMinutes <= 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "min_horizon_minutes must be > 0")
	}
	return nil
}

// floorToBoundary returns the latest instant <= t that is a multiple of
// step minutes measured from local midnight.
func floorToBoundary(t time.Time, step int) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight).Minutes()
	floored := float64(int(elapsed)/step) * float64(step)
	return midnight.Add(time.Duration(floored * float64(time.Minute)))
}

// snapForwardBoundary returns the next multiple of step minutes strictly
// after t, measured from local midnight. Used for the high-res-to-coarse
// transition: the first coarse slot always starts at a fresh coarse
// boundary, even when the high-res lead-in already ended on one.
func snapForwardBoundary(t time.Time, step int) time.Time {
	floor := floorToBoundary(t, step)
	return floor.Add(time.Duration(step) * time.Minute)
}

// Build constructs the horizon for invocation time now under cfg. It fails
// with ForecastCoverageTooShort if the available forecast coverage is
// shorter than the configured minimum horizon.
func Build(now time.Time, cfg Config) (*Horizon, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxCoverageMinutes < cfg.MinHorizonMinutes {
		return nil, plannererrors.New(plannererrors.ForecastCoverageTooShort,
			"shortest forecast coverage %dmin is below min_horizon_minutes %dmin",
			cfg.MaxCoverageMinutes, cfg.MinHorizonMinutes)
	}
	loc := cfg.Location
	if loc == nil {
		loc = now.Location()
	}
	now = now.In(loc)

	totalMinutes := cfg.MaxCoverageMinutes
	if m := cfg.MinHorizonMinutes; m > totalMinutes {
		totalMinutes = m // unreachable given the check above; kept literal to spec's clamp formula
	}
	if totalMinutes > cfg.MaxCoverageMinutes {
		totalMinutes = cfg.MaxCoverageMinutes
	}
	targetLength := time.Duration(totalMinutes) * time.Minute

	tau0 := cfg.TimestepMinutes
	highRes := cfg.hasHighRes()
	if highRes {
		tau0 = cfg.HighResTimestepMinutes
	}

	start := floorToBoundary(now, tau0)
	horizonEnd := start.Add(targetLength)

	var slots []Slot
	cursor := start

	if highRes {
		leadEnd := start.Add(time.Duration(cfg.HighResHorizonMinutes) * time.Minute)
		step := time.Duration(tau0) * time.Minute
		for cursor.Add(step).Before(leadEnd) || cursor.Add(step).Equal(leadEnd) {
			slotEnd := cursor.Add(step)
			if !slotEnd.Before(horizonEnd) {
				slotEnd = horizonEnd
			}
			slots = append(slots, Slot{Index: len(slots), Start: cursor, End: slotEnd})
			cursor = slotEnd
			if !cursor.Before(horizonEnd) {
				break
			}
		}
		if cursor.Before(horizonEnd) {
			nextCoarseBoundary := snapForwardBoundary(cursor, cfg.TimestepMinutes)
			slotEnd := nextCoarseBoundary
			if !slotEnd.Before(horizonEnd) {
				slotEnd = horizonEnd
			}
			slots = append(slots, Slot{Index: len(slots), Start: cursor, End: slotEnd})
			cursor = slotEnd
		}
	}

	if cursor.Before(horizonEnd) {
		step := time.Duration(cfg.TimestepMinutes) * time.Minute
		for cursor.Before(horizonEnd) {
			slotEnd := cursor.Add(step)
			if slotEnd.After(horizonEnd) {
				slotEnd = horizonEnd
			}
			slots = append(slots, Slot{Index: len(slots), Start: cursor, End: slotEnd})
			cursor = slotEnd
		}
	}

	return &Horizon{Now: now, Start: start, Slots: slots}, nil
}
