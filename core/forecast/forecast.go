// Package forecast aligns interval-valued forecasts (price, power) onto a
// horizon's slots by time-weighted averaging, honoring the MPC slot-0
// realtime-override convention.
package forecast

import (
	"math"
	"sort"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/horizon"
)

// Interval is one contiguous forecast value (price in currency/kWh, or
// power in kW) valid over [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
	Value float64
}

// toleranceGap is the maximum single gap, between adjacent forecast
// intervals or at a slot's edges, still treated as covered.
const toleranceGap = 60 * time.Second

// Aligner produces an aligned per-slot series from a forecast interval
// list.
type Aligner struct{}

// Align projects intervals onto h's slots. firstSlotOverride, when
// non-nil, supplies slot 0's value whenever the forecast does not cover
// slot 0 (e.g. because slot 0 starts before now); it is ignored for any
// other slot and ignored for slot 0 when the forecast already covers it.
func (Aligner) Align(h *horizon.Horizon, intervals []Interval, firstSlotOverride *float64) ([]float64, error) {
	if len(intervals) == 0 {
		if firstSlotOverride != nil && h.N() > 0 {
			out := make([]float64, h.N())
			out[0] = *firstSlotOverride
			if h.N() > 1 {
				return nil, plannererrors.New(plannererrors.AlignmentCoverageError,
					"forecast series is empty and cannot cover slots 1..%d", h.N()-1)
			}
			return out, nil
		}
		return nil, plannererrors.New(plannererrors.AlignmentCoverageError, "forecast series is empty")
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for _, iv := range sorted {
		if math.IsInf(iv.Value, 0) {
			return nil, plannererrors.New(plannererrors.DataSourceError, "forecast interval [%v,%v) has infinite value", iv.Start, iv.End)
		}
	}

	out := make([]float64, h.N())
	for t, slot := range h.Slots {
		value, covered := alignSlot(sorted, slot)
		if !covered {
			if firstSlotOverride != nil && t == 0 {
				out[0] = *firstSlotOverride
				continue
			}
			return nil, plannererrors.New(plannererrors.AlignmentCoverageError,
				"forecast series does not cover slot %d [%v,%v)", t, slot.Start, slot.End)
		}
		out[t] = value
	}
	return out, nil
}

func alignSlot(sorted []Interval, slot horizon.Slot) (value float64, covered bool) {
	cursor := slot.Start
	weightedSum := 0.0
	any := false
	for _, iv := range sorted {
		if !iv.End.After(slot.Start) {
			continue
		}
		if !iv.Start.Before(slot.End) {
			break
		}
		overlapStart := maxTime(iv.Start, slot.Start)
		overlapEnd := minTime(iv.End, slot.End)
		if !overlapEnd.After(overlapStart) {
			continue
		}
		if gap := overlapStart.Sub(cursor); gap >= toleranceGap {
			return 0, false
		}
		weightedSum += iv.Value * overlapEnd.Sub(overlapStart).Seconds()
		any = true
		if overlapEnd.After(cursor) {
			cursor = overlapEnd
		}
	}
	if !any {
		return 0, false
	}
	if gap := slot.End.Sub(cursor); gap >= toleranceGap {
		return 0, false
	}
	slotSeconds := slot.End.Sub(slot.Start).Seconds()
	if slotSeconds <= 0 {
		return 0, false
	}
	return weightedSum / slotSeconds, true
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
