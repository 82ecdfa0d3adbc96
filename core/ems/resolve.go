package ems

import (
	"context"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/forecast"
	"github.com/kilianp07/emsplanner/core/plant"
	"github.com/kilianp07/emsplanner/core/sourceresolver"
)

// ResolvedInputs holds every forecast interval sequence the builder needs,
// fetched once per invocation up front so horizon construction can clamp
// to the shortest coverage.
type ResolvedInputs struct {
	ImportPrice []forecast.Interval
	ExportPrice []forecast.Interval
	Load        []forecast.Interval
	PV          map[string][]forecast.Interval // keyed by inverter ID

	// MaxCoverageMinutes is the shortest coverage among the series above.
	MaxCoverageMinutes int
}

// ResolveForecasts fetches every forecast referenced by p via resolver,
// enforcing each series covers at least minHorizonMinutes, and computes the
// shortest coverage across all of them for horizon.Config.MaxCoverageMinutes.
func ResolveForecasts(ctx context.Context, resolver sourceresolver.Resolver, p plant.Plant, minHorizonMinutes int) (*ResolvedInputs, error) {
	out := &ResolvedInputs{PV: make(map[string][]forecast.Interval, len(p.Inverters))}

	importPrice, err := resolver.ResolvePriceForecast(ctx, p.Grid.ImportPriceForecastRef, minHorizonMinutes)
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.DataSourceError, err, "resolve grid import price forecast")
	}
	out.ImportPrice = importPrice

	exportPrice, err := resolver.ResolvePriceForecast(ctx, p.Grid.ExportPriceForecastRef, minHorizonMinutes)
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.DataSourceError, err, "resolve grid export price forecast")
	}
	out.ExportPrice = exportPrice

	load, err := resolveBaseLoad(ctx, resolver, p.Load, minHorizonMinutes)
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.DataSourceError, err, "resolve base load forecast")
	}
	out.Load = load

	coverage := []int{
		coverageMinutes(importPrice),
		coverageMinutes(exportPrice),
		coverageMinutes(load),
	}
	for _, inv := range p.Inverters {
		pv, err := resolver.ResolvePowerForecast(ctx, inv.PVForecastRef, minHorizonMinutes)
		if err != nil {
			return nil, plannererrors.Wrap(plannererrors.DataSourceError, err, "resolve inverter %s pv forecast", inv.ID)
		}
		out.PV[inv.ID] = pv
		coverage = append(coverage, coverageMinutes(pv))
	}

	min := coverage[0]
	for _, c := range coverage[1:] {
		if c < min {
			min = c
		}
	}
	out.MaxCoverageMinutes = min
	return out, nil
}

const (
	// defaultHistoryDays is the averaging window used when a base-load
	// history profile is configured without an explicit history_days.
	defaultHistoryDays = 7
	// historyProfileIntervalMinutes is the re-slicing resolution for
	// synthesized history profiles.
	historyProfileIntervalMinutes = 30
)

// resolveBaseLoad fetches the base-load forecast, falling back to a
// historical-average profile when no forecast entity is configured.
func resolveBaseLoad(ctx context.Context, resolver sourceresolver.Resolver, l plant.Load, minHorizonMinutes int) ([]forecast.Interval, error) {
	if l.BaseLoadForecastRef != "" {
		return resolver.ResolvePowerForecast(ctx, l.BaseLoadForecastRef, minHorizonMinutes)
	}
	days := l.HistoryDays
	if days <= 0 {
		days = defaultHistoryDays
	}
	return resolver.ResolveHistoryProfile(ctx, l.HistoryProfileRef, days,
		historyProfileIntervalMinutes, float64(minHorizonMinutes)/60)
}

func coverageMinutes(intervals []forecast.Interval) int {
	if len(intervals) == 0 {
		return 0
	}
	first, last := intervals[0], intervals[0]
	for _, iv := range intervals {
		if iv.Start.Before(first.Start) {
			first = iv
		}
		if iv.End.After(last.End) {
			last = iv
		}
	}
	return int(last.End.Sub(first.Start).Minutes())
}
