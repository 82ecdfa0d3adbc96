// Package sourceresolver defines the abstract provider of realtime scalars
// and forecast interval sequences the planner consumes. Concrete
// implementations are injected by the caller; the core never depends on a
// specific backend. The only implementation in this module is the
// fixture-replay resolver in the fixture subpackage.
package sourceresolver

import (
	"context"

	"github.com/kilianp07/emsplanner/core/forecast"
)

// EntityRef identifies a value to resolve (e.g. a Home Assistant entity
// id). It is opaque to the core; only the Resolver implementation
// interprets it.
type EntityRef string

// Resolver abstracts realtime scalar lookups and forecast interval
// sequences. Power values are normalized to kW, prices to currency/kWh.
type Resolver interface {
	// ResolveScalar returns the current reading for ref.
	ResolveScalar(ctx context.Context, ref EntityRef) (float64, error)
	// ResolvePowerForecast returns a non-empty, contiguous sequence of power
	// intervals covering at least minHorizonMinutes, or a structured error.
	ResolvePowerForecast(ctx context.Context, ref EntityRef, minHorizonMinutes int) ([]forecast.Interval, error)
	// ResolvePriceForecast returns a non-empty, contiguous sequence of price
	// intervals covering at least minHorizonMinutes, or a structured error.
	ResolvePriceForecast(ctx context.Context, ref EntityRef, minHorizonMinutes int) ([]forecast.Interval, error)
	// ResolveHistoryProfile synthesizes a historical-average power forecast
	// from the last historyDays days of data, re-sliced at intervalMinutes
	// and covering horizonHours.
	ResolveHistoryProfile(ctx context.Context, ref EntityRef, historyDays int, intervalMinutes int, horizonHours float64) ([]forecast.Interval, error)
}
