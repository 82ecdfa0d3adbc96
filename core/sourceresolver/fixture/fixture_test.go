package fixture

import (
	"context"
	"testing"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/sourceresolver"
)

func sampleDoc() Document {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return Document{
		Scalars: map[string]float64{"sensor.import_price": 0.31},
		PowerForecasts: map[string][]intervalDoc{
			"sensor.pv": {
				{Start: start, End: start.Add(time.Hour), Value: 2.0},
				{Start: start.Add(time.Hour), End: start.Add(2 * time.Hour), Value: 3.0},
			},
		},
	}
}

func TestResolveScalar(t *testing.T) {
	r := New(sampleDoc())
	v, err := r.ResolveScalar(context.Background(), "sensor.import_price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.31 {
		t.Fatalf("expected 0.31, got %v", v)
	}
}

func TestResolveScalarMissing(t *testing.T) {
	r := New(sampleDoc())
	if _, err := r.ResolveScalar(context.Background(), "sensor.missing"); err == nil {
		t.Fatal("expected error for missing scalar")
	}
}

func TestResolvePowerForecast(t *testing.T) {
	r := New(sampleDoc())
	intervals, err := r.ResolvePowerForecast(context.Background(), "sensor.pv", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
}

func TestResolvePowerForecastCoverageTooShort(t *testing.T) {
	r := New(sampleDoc())
	_, err := r.ResolvePowerForecast(context.Background(), "sensor.pv", 180)
	if err == nil {
		t.Fatal("expected coverage-too-short error")
	}
	kind, ok := plannererrors.KindOf(err)
	if !ok || kind != plannererrors.ForecastCoverageTooShort {
		t.Fatalf("expected ForecastCoverageTooShort, got %v", kind)
	}
}

func TestResolverSatisfiesInterface(t *testing.T) {
	var _ sourceresolver.Resolver = New(sampleDoc())
}
