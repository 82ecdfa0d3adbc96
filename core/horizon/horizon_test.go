package horizon

import (
	"testing"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	return time.UTC
}

func TestBuildSingleResolutionFlatHorizon(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, loc)
	h, err := Build(now, Config{
		TimestepMinutes:    60,
		MinHorizonMinutes:  60,
		MaxCoverageMinutes: 60,
		Location:           loc,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.N() != 1 {
		t.Fatalf("expected 1 slot, got %d", h.N())
	}
	if h.Slots[0].DurationH() != 1.0 {
		t.Fatalf("expected 1h slot, got %v", h.Slots[0].DurationH())
	}
}

func TestBuildMultiResolutionScenario(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2024, 3, 1, 12, 3, 15, 0, loc)
	h, err := Build(now, Config{
		TimestepMinutes:        30,
		HighResTimestepMinutes: 5,
		HighResHorizonMinutes:  60,
		MinHorizonMinutes:      180,
		MaxCoverageMinutes:     180,
		Location:               loc,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, loc)
	if !h.Start.Equal(want) {
		t.Fatalf("expected start %v got %v", want, h.Start)
	}

	fiveMin := 0
	for _, s := range h.Slots {
		if s.Start.Before(time.Date(2024, 3, 1, 13, 0, 0, 0, loc)) {
			if s.DurationH()*60 != 5 {
				t.Fatalf("expected 5-min slot before 13:00, got %v at %v", s.DurationH()*60, s.Start)
			}
			fiveMin++
		}
	}
	if fiveMin != 12 {
		t.Fatalf("expected twelve 5-min slots, got %d", fiveMin)
	}

	// The slot bridging the transition must land exactly on the 13:00-13:30
	// boundary, snapped forward even though 13:00 is already 30-min aligned.
	found := false
	for _, s := range h.Slots {
		if s.Start.Equal(time.Date(2024, 3, 1, 13, 0, 0, 0, loc)) {
			found = true
			want := time.Date(2024, 3, 1, 13, 30, 0, 0, loc)
			if !s.End.Equal(want) {
				t.Fatalf("expected bridging slot to end at 13:30, got %v", s.End)
			}
		}
	}
	if !found {
		t.Fatal("expected a slot starting at 13:00")
	}

	last := h.Slots[len(h.Slots)-1]
	wantEnd := time.Date(2024, 3, 1, 15, 0, 0, 0, loc)
	if !last.End.Equal(wantEnd) {
		t.Fatalf("expected horizon to end at 15:00, got %v", last.End)
	}
}

func TestBuildSlotsAreContiguous(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2024, 3, 1, 12, 3, 15, 0, loc)
	h, err := Build(now, Config{
		TimestepMinutes:        30,
		HighResTimestepMinutes: 5,
		HighResHorizonMinutes:  60,
		MinHorizonMinutes:      180,
		MaxCoverageMinutes:     180,
		Location:               loc,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < len(h.Slots)-1; i++ {
		if !h.Slots[i].End.Equal(h.Slots[i+1].Start) {
			t.Fatalf("slots %d and %d are not contiguous: %v != %v", i, i+1, h.Slots[i].End, h.Slots[i+1].Start)
		}
		if h.Slots[i].Index != i {
			t.Fatalf("expected index %d, got %d", i, h.Slots[i].Index)
		}
		if !h.Slots[i].End.After(h.Slots[i].Start) {
			t.Fatalf("slot %d has non-positive duration", i)
		}
	}
}

func TestBuildFailsOnCoverageTooShort(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, loc)
	_, err := Build(now, Config{
		TimestepMinutes:    60,
		MinHorizonMinutes:  180,
		MaxCoverageMinutes: 90,
		Location:           loc,
	})
	if err == nil {
		t.Fatal("expected ForecastCoverageTooShort error")
	}
	kind, ok := plannererrors.KindOf(err)
	if !ok || kind != plannererrors.ForecastCoverageTooShort {
		t.Fatalf("expected ForecastCoverageTooShort, got %v (ok=%v)", kind, ok)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2024, 3, 1, 12, 3, 15, 0, loc)
	cfg := Config{
		TimestepMinutes:        30,
		HighResTimestepMinutes: 5,
		HighResHorizonMinutes:  60,
		MinHorizonMinutes:      180,
		MaxCoverageMinutes:     180,
		Location:               loc,
	}
	h1, err := Build(now, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := Build(now, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h1.Slots) != len(h2.Slots) {
		t.Fatalf("expected identical slot counts, got %d and %d", len(h1.Slots), len(h2.Slots))
	}
	for i := range h1.Slots {
		if h1.Slots[i] != h2.Slots[i] {
			t.Fatalf("slot %d differs between builds: %+v != %+v", i, h1.Slots[i], h2.Slots[i])
		}
	}
}
