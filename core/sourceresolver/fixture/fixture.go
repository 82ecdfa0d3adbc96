// Package fixture implements a sourceresolver.Resolver backed by a static,
// recorded JSON tree, used for tests, scenario replay, and the
// record-scenario/refresh-baseline CLI commands. It never performs network
// I/O.
package fixture

import (
	"context"
	"encoding/json"
	"os"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/forecast"
	"github.com/kilianp07/emsplanner/core/sourceresolver"
)

// intervalDoc is the on-disk shape of one forecast interval.
type intervalDoc struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value float64   `json:"value"`
}

func (d intervalDoc) toInterval() forecast.Interval {
	return forecast.Interval{Start: d.Start, End: d.End, Value: d.Value}
}

// Document is the fixture tree's JSON shape:
//
//	{
//	  "scalars": {"sensor.foo": 1.23},
//	  "power_forecasts": {"sensor.pv": [{"start": "...", "end": "...", "value": 1.2}]},
//	  "price_forecasts": {"sensor.import_price": [...]},
//	  "history_profiles": {"sensor.load": [...]}
//	}
type Document struct {
	Scalars         map[string]float64       `json:"scalars"`
	PowerForecasts  map[string][]intervalDoc `json:"power_forecasts"`
	PriceForecasts  map[string][]intervalDoc `json:"price_forecasts"`
	HistoryProfiles map[string][]intervalDoc `json:"history_profiles"`
}

// Resolver replays a Document as a sourceresolver.Resolver.
type Resolver struct {
	doc Document
}

var _ sourceresolver.Resolver = (*Resolver)(nil)

// New wraps an already-decoded Document.
func New(doc Document) *Resolver {
	return &Resolver{doc: doc}
}

// Load reads a fixture JSON file from path.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.DataSourceError, err, "read fixture %s", path)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, plannererrors.Wrap(plannererrors.DataSourceError, err, "parse fixture %s", path)
	}
	return New(doc), nil
}

func (r *Resolver) ResolveScalar(_ context.Context, ref sourceresolver.EntityRef) (float64, error) {
	v, ok := r.doc.Scalars[string(ref)]
	if !ok {
		return 0, plannererrors.New(plannererrors.DataSourceError, "fixture has no scalar for %q", ref)
	}
	return v, nil
}

func (r *Resolver) ResolvePowerForecast(_ context.Context, ref sourceresolver.EntityRef, minHorizonMinutes int) ([]forecast.Interval, error) {
	return r.resolveForecast(r.doc.PowerForecasts, ref, minHorizonMinutes)
}

func (r *Resolver) ResolvePriceForecast(_ context.Context, ref sourceresolver.EntityRef, minHorizonMinutes int) ([]forecast.Interval, error) {
	return r.resolveForecast(r.doc.PriceForecasts, ref, minHorizonMinutes)
}

func (r *Resolver) ResolveHistoryProfile(_ context.Context, ref sourceresolver.EntityRef, _ int, _ int, horizonHours float64) ([]forecast.Interval, error) {
	return r.resolveForecast(r.doc.HistoryProfiles, ref, int(horizonHours*60))
}

func (r *Resolver) resolveForecast(table map[string][]intervalDoc, ref sourceresolver.EntityRef, minHorizonMinutes int) ([]forecast.Interval, error) {
	docs, ok := table[string(ref)]
	if !ok || len(docs) == 0 {
		return nil, plannererrors.New(plannererrors.DataSourceError, "fixture has no forecast for %q", ref)
	}
	out := make([]forecast.Interval, len(docs))
	for i, d := range docs {
		out[i] = d.toInterval()
	}
	covered := out[len(out)-1].End.Sub(out[0].Start)
	if covered < time.Duration(minHorizonMinutes)*time.Minute {
		return nil, plannererrors.New(plannererrors.ForecastCoverageTooShort,
			"fixture forecast %q covers %s, below required %dmin", ref, covered, minHorizonMinutes)
	}
	return out, nil
}
