package planner_test

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/kilianp07/emsplanner/core/ems"
	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/horizon"
	"github.com/kilianp07/emsplanner/core/milp/solver/bnb"
	"github.com/kilianp07/emsplanner/core/planner"
	"github.com/kilianp07/emsplanner/core/plant"
	"github.com/kilianp07/emsplanner/core/sourceresolver/fixture"
)

// fixtureDocument builds a fixture.Document covering [start,end) for the
// three forecast series the single-slot plant below references, by
// round-tripping through JSON since fixture.Document's inner interval type
// is unexported.
func fixtureDocument(t *testing.T, start, end time.Time) *fixture.Resolver {
	t.Helper()
	raw := fmt.Sprintf(`{
		"price_forecasts": {
			"price.import": [{"start": %q, "end": %q, "value": 0.30}],
			"price.export": [{"start": %q, "end": %q, "value": 0.10}]
		},
		"power_forecasts": {
			"load.base": [{"start": %q, "end": %q, "value": 1.0}]
		}
	}`, start.Format(time.RFC3339), end.Format(time.RFC3339),
		start.Format(time.RFC3339), end.Format(time.RFC3339),
		start.Format(time.RFC3339), end.Format(time.RFC3339))

	var doc fixture.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal fixture document: %v", err)
	}
	return fixture.New(doc)
}

func singleSlotPlant() plant.Plant {
	return plant.Plant{
		Grid: plant.Grid{
			ImportCapKW:            10,
			ExportCapKW:            10,
			ImportPriceForecastRef: "price.import",
			ExportPriceForecastRef: "price.export",
		},
		Load: plant.Load{BaseLoadForecastRef: "load.base"},
	}
}

func TestPlanEndToEndAgainstFixtureResolver(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	res := fixtureDocument(t, now, now.Add(time.Hour))

	cfg := planner.Config{
		Horizon: horizon.Config{TimestepMinutes: 60, MinHorizonMinutes: 60, Location: time.UTC},
		EMS:     ems.Config{Tunables: ems.DefaultTunables(), Location: time.UTC},
	}

	result, err := planner.Plan(context.Background(), cfg, now, res, singleSlotPlant(), bnb.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(result.Slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(result.Slots))
	}
	if diff := result.Slots[0].GridImportKW - 1.0; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("grid_import_kw = %v, want 1.0", result.Slots[0].GridImportKW)
	}
	if diff := result.Slots[0].SegmentCost - 0.30; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("segment_cost = %v, want 0.30", result.Slots[0].SegmentCost)
	}
}

func TestPlanIsIdempotentForTheSameInvocationInstant(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	res := fixtureDocument(t, now, now.Add(time.Hour))
	cfg := planner.Config{
		Horizon: horizon.Config{TimestepMinutes: 60, MinHorizonMinutes: 60, Location: time.UTC},
		EMS:     ems.Config{Tunables: ems.DefaultTunables(), Location: time.UTC},
	}

	first, err := planner.Plan(context.Background(), cfg, now, res, singleSlotPlant(), bnb.New())
	if err != nil {
		t.Fatalf("first Plan: %v", err)
	}
	second, err := planner.Plan(context.Background(), cfg, now, res, singleSlotPlant(), bnb.New())
	if err != nil {
		t.Fatalf("second Plan: %v", err)
	}
	if len(first.Slots) != len(second.Slots) {
		t.Fatalf("slot count differs between runs: %d vs %d", len(first.Slots), len(second.Slots))
	}
	for i := range first.Slots {
		if !reflect.DeepEqual(first.Slots[i], second.Slots[i]) {
			t.Fatalf("slot %d differs between identical runs:\n%+v\n%+v", i, first.Slots[i], second.Slots[i])
		}
	}
}

// A fixture whose forecast coverage is below min_horizon_minutes fails at
// the resolver boundary, surfaced as DataSourceError with the underlying
// ForecastCoverageTooShort as its cause; the horizon builder's own
// coverage check only ever fires if resolution itself were to produce a
// shorter aggregate than any individual series enforces, which cannot
// happen given the resolver contract.
func TestPlanFailsWithStructuredErrorOnCoverageTooShort(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	// Only 30 minutes of coverage, but min_horizon_minutes demands 60.
	res := fixtureDocument(t, now, now.Add(30*time.Minute))

	cfg := planner.Config{
		Horizon: horizon.Config{TimestepMinutes: 60, MinHorizonMinutes: 60, Location: time.UTC},
		EMS:     ems.Config{Tunables: ems.DefaultTunables(), Location: time.UTC},
	}

	_, err := planner.Plan(context.Background(), cfg, now, res, singleSlotPlant(), bnb.New())
	if err == nil {
		t.Fatal("expected an error")
	}
	pe, ok := err.(*plannererrors.PlannerError)
	if !ok {
		t.Fatalf("expected a *plannererrors.PlannerError, got %T: %v", err, err)
	}
	if pe.Kind != plannererrors.DataSourceError {
		t.Fatalf("expected DataSourceError, got %v", pe.Kind)
	}
	cause, ok := pe.Cause.(*plannererrors.PlannerError)
	if !ok {
		t.Fatalf("expected the cause to be a *plannererrors.PlannerError, got %T: %v", pe.Cause, pe.Cause)
	}
	if cause.Kind != plannererrors.ForecastCoverageTooShort {
		t.Fatalf("expected the wrapped cause to be ForecastCoverageTooShort, got %v", cause.Kind)
	}
}
