// Package plantconfig holds the declarative, serializable description of a
// site's topology (grid, PV inverters, batteries, EV chargers) and resolves
// it into a core/plant.Plant snapshot once per planning cycle by reading
// each entity's current realtime scalar through a sourceresolver.Resolver.
//
// Source entity references are carried as plain sourceresolver.EntityRef
// strings rather than a tagged Home-Assistant-specific source type: HA
// fetching is out of scope, so the config layer only needs an opaque
// handle a Resolver implementation can interpret.
package plantconfig

import (
	"context"
	"strconv"
	"strings"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/plant"
	"github.com/kilianp07/emsplanner/core/sourceresolver"
)

type timeMonth = time.Month

// parseHHMM parses a "HH:MM" string into minutes since midnight.
func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, plannererrors.New(plannererrors.ConfigInvalid, "time window value %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, plannererrors.Wrap(plannererrors.ConfigInvalid, err, "time window hour %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, plannererrors.Wrap(plannererrors.ConfigInvalid, err, "time window minute %q", s)
	}
	return h*60 + m, nil
}

// TimeWindow mirrors plant.TimeWindow in a YAML-friendly "HH:MM" shape.
type TimeWindow struct {
	Start  string `json:"start" yaml:"start"`
	End    string `json:"end" yaml:"end"`
	Months []int  `json:"months,omitempty" yaml:"months,omitempty"`
}

func (w TimeWindow) resolve() (plant.TimeWindow, error) {
	startMin, err := parseHHMM(w.Start)
	if err != nil {
		return plant.TimeWindow{}, err
	}
	endMin, err := parseHHMM(w.End)
	if err != nil {
		return plant.TimeWindow{}, err
	}
	months := make([]timeMonth, 0, len(w.Months))
	for _, m := range w.Months {
		months = append(months, timeMonth(m))
	}
	return plant.TimeWindow{StartMinute: startMin, EndMinute: endMin, Months: months}, nil
}

// GridConfig describes the utility connection.
type GridConfig struct {
	MaxImportKW            float64                  `json:"max_import_kw" yaml:"max_import_kw"`
	MaxExportKW            float64                  `json:"max_export_kw" yaml:"max_export_kw"`
	RealtimePriceImport    sourceresolver.EntityRef `json:"realtime_price_import" yaml:"realtime_price_import"`
	RealtimePriceExport    sourceresolver.EntityRef `json:"realtime_price_export" yaml:"realtime_price_export"`
	PriceImportForecast    sourceresolver.EntityRef `json:"price_import_forecast" yaml:"price_import_forecast"`
	PriceExportForecast    sourceresolver.EntityRef `json:"price_export_forecast" yaml:"price_export_forecast"`
	ImportForbiddenPeriods []TimeWindow             `json:"import_forbidden_periods,omitempty" yaml:"import_forbidden_periods,omitempty"`
	PriceBiasPct           float64                  `json:"price_bias_pct,omitempty" yaml:"price_bias_pct,omitempty"`
}

func (g GridConfig) resolve(ctx context.Context, r sourceresolver.Resolver) (plant.Grid, error) {
	importPrice, err := r.ResolveScalar(ctx, g.RealtimePriceImport)
	if err != nil {
		return plant.Grid{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "grid realtime_price_import")
	}
	exportPrice, err := r.ResolveScalar(ctx, g.RealtimePriceExport)
	if err != nil {
		return plant.Grid{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "grid realtime_price_export")
	}
	windows := make([]plant.TimeWindow, 0, len(g.ImportForbiddenPeriods))
	for i, w := range g.ImportForbiddenPeriods {
		resolved, err := w.resolve()
		if err != nil {
			return plant.Grid{}, plannererrors.Wrap(plannererrors.ConfigInvalid, err, "grid import_forbidden_periods[%d]", i)
		}
		windows = append(windows, resolved)
	}
	return plant.Grid{
		ImportCapKW:            g.MaxImportKW,
		ExportCapKW:            g.MaxExportKW,
		RealtimeImportPrice:    importPrice,
		RealtimeExportPrice:    exportPrice,
		ImportPriceForecastRef: g.PriceImportForecast,
		ExportPriceForecastRef: g.PriceExportForecast,
		ImportForbiddenWindows: windows,
		PriceBiasPct:           g.PriceBiasPct,
	}, nil
}

// PlantLoadConfig describes the site's non-controllable base load.
type PlantLoadConfig struct {
	RealtimeLoadPower sourceresolver.EntityRef `json:"realtime_load_power" yaml:"realtime_load_power"`
	LoadForecast      sourceresolver.EntityRef `json:"load_forecast,omitempty" yaml:"load_forecast,omitempty"`
	// HistoryProfile names an entity whose historical average stands in for
	// the base-load forecast when load_forecast is not configured.
	HistoryProfile sourceresolver.EntityRef `json:"history_profile,omitempty" yaml:"history_profile,omitempty"`
	HistoryDays    int                      `json:"history_days,omitempty" yaml:"history_days,omitempty"`
}

func (l PlantLoadConfig) resolve(ctx context.Context, r sourceresolver.Resolver) (plant.Load, error) {
	kw, err := r.ResolveScalar(ctx, l.RealtimeLoadPower)
	if err != nil {
		return plant.Load{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "load realtime_load_power")
	}
	return plant.Load{
		BaseLoadForecastRef: l.LoadForecast,
		HistoryProfileRef:   l.HistoryProfile,
		HistoryDays:         l.HistoryDays,
		RealtimeLoadKW:      &kw,
	}, nil
}

// BatteryConfig describes a battery attached to an inverter.
type BatteryConfig struct {
	CapacityKWh          float64                  `json:"capacity_kwh" yaml:"capacity_kwh"`
	StorageEfficiencyPct *float64                 `json:"storage_efficiency_pct,omitempty" yaml:"storage_efficiency_pct,omitempty"`
	MinSoCPct            float64                  `json:"min_soc_pct" yaml:"min_soc_pct"`
	MaxSoCPct            float64                  `json:"max_soc_pct" yaml:"max_soc_pct"`
	ReserveSoCPct        float64                  `json:"reserve_soc_pct" yaml:"reserve_soc_pct"`
	MaxChargeKW          *float64                 `json:"max_charge_kw,omitempty" yaml:"max_charge_kw,omitempty"`
	MaxDischargeKW       *float64                 `json:"max_discharge_kw,omitempty" yaml:"max_discharge_kw,omitempty"`
	StateOfChargePct     sourceresolver.EntityRef `json:"state_of_charge_pct" yaml:"state_of_charge_pct"`
	RealtimePower        sourceresolver.EntityRef `json:"realtime_power" yaml:"realtime_power"`
	DCEfficiencyPct      *float64                 `json:"dc_efficiency_pct,omitempty" yaml:"dc_efficiency_pct,omitempty"`
	WearChargePerKWh     float64                  `json:"wear_charge_per_kwh,omitempty" yaml:"wear_charge_per_kwh,omitempty"`
	WearDischargePerKWh  float64                  `json:"wear_discharge_per_kwh,omitempty" yaml:"wear_discharge_per_kwh,omitempty"`
	TerminalValuePerKWh  *float64                 `json:"terminal_value_per_kwh,omitempty" yaml:"terminal_value_per_kwh,omitempty"`
	TerminalMode         string                   `json:"terminal_mode,omitempty" yaml:"terminal_mode,omitempty"`
}

func (b BatteryConfig) resolve(ctx context.Context, r sourceresolver.Resolver) (*plant.Battery, error) {
	soc, err := r.ResolveScalar(ctx, b.StateOfChargePct)
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.DataSourceError, err, "battery state_of_charge_pct")
	}
	mode := plant.TerminalSoCMode(b.TerminalMode)
	if mode == "" {
		mode = plant.TerminalSoCHard
	}
	return &plant.Battery{
		CapacityKWh:          b.CapacityKWh,
		StorageEfficiencyPct: efficiencyOrDefault(b.StorageEfficiencyPct),
		MinSoCPct:            b.MinSoCPct,
		MaxSoCPct:            b.MaxSoCPct,
		ReserveSoCPct:        b.ReserveSoCPct,
		MaxChargeKW:          b.MaxChargeKW,
		MaxDischargeKW:       b.MaxDischargeKW,
		WearCost: plant.BatteryWearCost{
			ChargePerKWh:    b.WearChargePerKWh,
			DischargePerKWh: b.WearDischargePerKWh,
		},
		TerminalValuePerKWh: b.TerminalValuePerKWh,
		RealtimeSoCPct:      soc,
		TerminalMode:        mode,
		DCEfficiencyPct:     b.DCEfficiencyPct,
	}, nil
}

// efficiencyOrDefault maps the optional configured round-trip storage
// efficiency onto plant.Battery.StorageEfficiencyPct, defaulting to a
// typical lithium cell's 92% when not configured.
func efficiencyOrDefault(pct *float64) float64 {
	if pct != nil && *pct > 0 {
		return *pct
	}
	return 92.0
}

// InverterConfig describes one PV inverter with its forecast source and
// optional battery.
type InverterConfig struct {
	Name            string                   `json:"name" yaml:"name"`
	PeakPowerKW     float64                  `json:"peak_power_kw" yaml:"peak_power_kw"`
	ACEfficiencyPct *float64                 `json:"ac_efficiency_pct,omitempty" yaml:"ac_efficiency_pct,omitempty"`
	CurtailmentMode string                   `json:"curtailment_mode,omitempty" yaml:"curtailment_mode,omitempty"`
	RealtimePower   sourceresolver.EntityRef `json:"realtime_power,omitempty" yaml:"realtime_power,omitempty"`
	Forecast        sourceresolver.EntityRef `json:"forecast,omitempty" yaml:"forecast,omitempty"`
	Battery         *BatteryConfig           `json:"battery,omitempty" yaml:"battery,omitempty"`
}

func (i InverterConfig) resolve(ctx context.Context, r sourceresolver.Resolver) (plant.Inverter, error) {
	mode := plant.CurtailmentMode(i.CurtailmentMode)
	if mode == "" {
		mode = plant.CurtailmentNone
	}
	out := plant.Inverter{
		ID:              i.Name,
		Name:            i.Name,
		PeakPowerKW:     i.PeakPowerKW,
		CurtailmentMode: mode,
		ACEfficiencyPct: i.ACEfficiencyPct,
		PVForecastRef:   i.Forecast,
	}
	if i.RealtimePower != "" {
		kw, err := r.ResolveScalar(ctx, i.RealtimePower)
		if err != nil {
			return plant.Inverter{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "inverter %s realtime_power", i.Name)
		}
		out.RealtimePVKW = &kw
	}
	if i.Battery != nil {
		bat, err := i.Battery.resolve(ctx, r)
		if err != nil {
			return plant.Inverter{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "inverter %s battery", i.Name)
		}
		out.Battery = bat
	}
	return out, nil
}

// SoCIncentiveConfig is one band of the EV charging incentive schedule.
type SoCIncentiveConfig struct {
	TargetSoCPct float64 `json:"target_soc_pct" yaml:"target_soc_pct"`
	Incentive    float64 `json:"incentive" yaml:"incentive"`
}

// ControlledEvLoadConfig describes one EV charger the planner may
// schedule; the discriminator field (load_type) is handled by the caller
// deciding which config slice to populate, not carried here.
type ControlledEvLoadConfig struct {
	Name                string                   `json:"name" yaml:"name"`
	MinPowerKW          float64                  `json:"min_power_kw" yaml:"min_power_kw"`
	MaxPowerKW          float64                  `json:"max_power_kw" yaml:"max_power_kw"`
	EnergyKWh           float64                  `json:"energy_kwh" yaml:"energy_kwh"`
	Connected           sourceresolver.EntityRef `json:"connected" yaml:"connected"`
	CanConnect          sourceresolver.EntityRef `json:"can_connect,omitempty" yaml:"can_connect,omitempty"`
	RealtimePower       sourceresolver.EntityRef `json:"realtime_power" yaml:"realtime_power"`
	StateOfChargePct    sourceresolver.EntityRef `json:"state_of_charge_pct" yaml:"state_of_charge_pct"`
	SoCIncentives       []SoCIncentiveConfig     `json:"soc_incentives,omitempty" yaml:"soc_incentives,omitempty"`
	AllowedConnectTimes []TimeWindow             `json:"allowed_connect_times,omitempty" yaml:"allowed_connect_times,omitempty"`
	ConnectGraceMinutes int                      `json:"connect_grace_minutes,omitempty" yaml:"connect_grace_minutes,omitempty"`
	SwitchPenalty       *float64                 `json:"switch_penalty,omitempty" yaml:"switch_penalty,omitempty"`
	DeadlineTarget      *float64                 `json:"deadline_target,omitempty" yaml:"deadline_target,omitempty"`
}

func (e ControlledEvLoadConfig) resolve(ctx context.Context, r sourceresolver.Resolver) (plant.ControlledEvLoad, error) {
	connectedVal, err := r.ResolveScalar(ctx, e.Connected)
	if err != nil {
		return plant.ControlledEvLoad{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "ev %s connected", e.Name)
	}
	// can_connect defaults to true when no entity is configured: an EV that
	// is not plugged in may still be plugged in later unless a sensor says
	// otherwise.
	canConnect := true
	if e.CanConnect != "" {
		v, err := r.ResolveScalar(ctx, e.CanConnect)
		if err != nil {
			return plant.ControlledEvLoad{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "ev %s can_connect", e.Name)
		}
		canConnect = v != 0
	}
	power, err := r.ResolveScalar(ctx, e.RealtimePower)
	if err != nil {
		return plant.ControlledEvLoad{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "ev %s realtime_power", e.Name)
	}
	soc, err := r.ResolveScalar(ctx, e.StateOfChargePct)
	if err != nil {
		return plant.ControlledEvLoad{}, plannererrors.Wrap(plannererrors.DataSourceError, err, "ev %s state_of_charge_pct", e.Name)
	}
	windows := make([]plant.TimeWindow, 0, len(e.AllowedConnectTimes))
	for i, w := range e.AllowedConnectTimes {
		resolved, err := w.resolve()
		if err != nil {
			return plant.ControlledEvLoad{}, plannererrors.Wrap(plannererrors.ConfigInvalid, err, "ev %s allowed_connect_times[%d]", e.Name, i)
		}
		windows = append(windows, resolved)
	}
	incentives := make([]plant.SoCIncentive, 0, len(e.SoCIncentives))
	for _, inc := range e.SoCIncentives {
		incentives = append(incentives, plant.SoCIncentive{TargetPct: inc.TargetSoCPct, RewardPerKWh: inc.Incentive})
	}
	return plant.ControlledEvLoad{
		ID:                  e.Name,
		MinPowerKW:          e.MinPowerKW,
		MaxPowerKW:          e.MaxPowerKW,
		CapacityKWh:         e.EnergyKWh,
		Connected:           connectedVal != 0,
		RealtimePowerKW:     power,
		RealtimeSoCPct:      soc,
		CanConnect:          canConnect,
		AllowedConnectTimes: windows,
		ConnectGraceMinutes: e.ConnectGraceMinutes,
		SoCIncentives:       incentives,
		SwitchPenalty:       e.SwitchPenalty,
		DeadlineTarget:      e.DeadlineTarget,
	}, nil
}

// PlantConfig is the declarative site topology plus the controlled_ev
// entries of the top-level "loads" key; non-variable loads carry no
// planner-visible state and are dropped during resolution.
type PlantConfig struct {
	Grid      GridConfig               `json:"grid" yaml:"grid"`
	Load      PlantLoadConfig          `json:"load" yaml:"load"`
	Inverters []InverterConfig         `json:"inverters" yaml:"inverters"`
	EvLoads   []ControlledEvLoadConfig `json:"-" yaml:"-"`
}

// Resolve reads every realtime entity through r and assembles a plant.Plant
// snapshot valid for the current instant. It is called once per planning
// cycle; the caller decides whether to cache the result across cycles.
func (c PlantConfig) Resolve(ctx context.Context, r sourceresolver.Resolver) (plant.Plant, error) {
	grid, err := c.Grid.resolve(ctx, r)
	if err != nil {
		return plant.Plant{}, err
	}
	load, err := c.Load.resolve(ctx, r)
	if err != nil {
		return plant.Plant{}, err
	}
	inverters := make([]plant.Inverter, 0, len(c.Inverters))
	for _, ic := range c.Inverters {
		inv, err := ic.resolve(ctx, r)
		if err != nil {
			return plant.Plant{}, err
		}
		inverters = append(inverters, inv)
	}
	evLoads := make([]plant.ControlledEvLoad, 0, len(c.EvLoads))
	for _, ec := range c.EvLoads {
		ev, err := ec.resolve(ctx, r)
		if err != nil {
			return plant.Plant{}, err
		}
		evLoads = append(evLoads, ev)
	}
	p := plant.Plant{Grid: grid, Inverters: inverters, EvLoads: evLoads, Load: load}
	if err := p.Validate(); err != nil {
		return plant.Plant{}, err
	}
	return p, nil
}
