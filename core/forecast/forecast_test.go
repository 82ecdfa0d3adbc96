package forecast

import (
	"testing"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/horizon"
)

func buildTestHorizon(t *testing.T, now time.Time, timestepMin int, n int) *horizon.Horizon {
	t.Helper()
	h, err := horizon.Build(now, horizon.Config{
		TimestepMinutes:    timestepMin,
		MinHorizonMinutes:  timestepMin * n,
		MaxCoverageMinutes: timestepMin * n,
		Location:           time.UTC,
	})
	if err != nil {
		t.Fatalf("build horizon: %v", err)
	}
	return h
}

func TestAlignExactSingleInterval(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h := buildTestHorizon(t, now, 60, 1)
	intervals := []Interval{
		{Start: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), Value: 0.3},
	}
	out, err := Aligner{}.Align(h, intervals, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != 0.3 {
		t.Fatalf("expected [0.3], got %v", out)
	}
}

func TestAlignTimeWeightedMean(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h := buildTestHorizon(t, now, 60, 1)
	intervals := []Interval{
		{Start: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), Value: 0.1},
		{Start: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), Value: 0.3},
	}
	out, err := Aligner{}.Align(h, intervals, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 0.2 // (0.1*1800 + 0.3*1800) / 3600
	if diff := out[0] - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected %v, got %v", want, out[0])
	}
}

func TestAlignFailsOnGap(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h := buildTestHorizon(t, now, 60, 1)
	intervals := []Interval{
		{Start: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 10, 20, 0, 0, time.UTC), Value: 0.1},
		{Start: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), Value: 0.3},
	}
	_, err := Aligner{}.Align(h, intervals, nil)
	if err == nil {
		t.Fatal("expected coverage error for a 10-minute gap")
	}
	kind, ok := plannererrors.KindOf(err)
	if !ok || kind != plannererrors.AlignmentCoverageError {
		t.Fatalf("expected AlignmentCoverageError, got %v", kind)
	}
}

func TestAlignTreatsSubMinuteGapAsCovered(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h := buildTestHorizon(t, now, 60, 1)
	intervals := []Interval{
		{Start: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 10, 29, 45, 0, time.UTC), Value: 0.1},
		{Start: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), Value: 0.3},
	}
	if _, err := (Aligner{}).Align(h, intervals, nil); err != nil {
		t.Fatalf("expected sub-minute gap to be tolerated, got %v", err)
	}
}

func TestAlignUsesSlotZeroOverrideWhenUncovered(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h := buildTestHorizon(t, now, 60, 2)
	intervals := []Interval{
		{Start: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Value: 0.5},
	}
	override := 0.42
	out, err := Aligner{}.Align(h, intervals, &override)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 0.42 {
		t.Fatalf("expected override 0.42 on slot 0, got %v", out[0])
	}
	if out[1] != 0.5 {
		t.Fatalf("expected forecast value 0.5 on slot 1, got %v", out[1])
	}
}
