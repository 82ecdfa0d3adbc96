// Package plant holds the typed, read-only representation of the site
// topology the planner reasons about: the grid connection, PV inverters,
// their optional batteries, and controllable EV loads.
package plant

import (
	"fmt"
	"math"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/sourceresolver"
)

// CurtailmentMode selects how an inverter's PV output may be reduced below
// its forecast.
type CurtailmentMode string

const (
	// CurtailmentNone disallows curtailment; PV output always matches the
	// forecast exactly.
	CurtailmentNone CurtailmentMode = "none"
	// CurtailmentBinary allows an all-or-nothing reduction to zero per slot.
	CurtailmentBinary CurtailmentMode = "binary"
	// CurtailmentLoadAware allows PV to follow load when curtailed, coupling
	// the reduction to blocking export for that slot.
	CurtailmentLoadAware CurtailmentMode = "load_aware"
)

// TerminalSoCMode selects how the battery's end-of-horizon energy is
// constrained.
type TerminalSoCMode string

const (
	// TerminalSoCHard requires E_b[N] >= E_b[0].
	TerminalSoCHard TerminalSoCMode = "hard"
	// TerminalSoCAdaptive relaxes the terminal target as the horizon
	// shrinks, penalizing shortfall in the objective instead.
	TerminalSoCAdaptive TerminalSoCMode = "adaptive"
)

// TimeWindow is a local-time-of-day window, optionally restricted to a set
// of months, used for import-forbidden periods and EV allowed-connect
// times. Windows may wrap past midnight (StartMinute > EndMinute).
type TimeWindow struct {
	// StartMinute and EndMinute are minutes since local midnight [0,1440).
	StartMinute int
	EndMinute   int
	// Months restricts the window to these months (1-12); empty means every
	// month.
	Months []time.Month
}

// Contains reports whether t (interpreted in the window's local zone) falls
// inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if len(w.Months) > 0 {
		found := false
		for _, m := range w.Months {
			if t.Month() == m {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	minute := t.Hour()*60 + t.Minute()
	if w.StartMinute <= w.EndMinute {
		return minute >= w.StartMinute && minute < w.EndMinute
	}
	// Wraps midnight.
	return minute >= w.StartMinute || minute < w.EndMinute
}

// Validate checks the window's fields are in range.
func (w TimeWindow) Validate() error {
	if w.StartMinute < 0 || w.StartMinute >= 1440 {
		return plannererrors.New(plannererrors.ConfigInvalid, "time window start_minute out of range: %d", w.StartMinute)
	}
	if w.EndMinute < 0 || w.EndMinute >= 1440 {
		return plannererrors.New(plannererrors.ConfigInvalid, "time window end_minute out of range: %d", w.EndMinute)
	}
	for _, m := range w.Months {
		if m < time.January || m > time.December {
			return plannererrors.New(plannererrors.ConfigInvalid, "time window month out of range: %d", m)
		}
	}
	return nil
}

// Grid describes the site's utility connection.
type Grid struct {
	ImportCapKW float64
	ExportCapKW float64

	RealtimeImportPrice float64
	RealtimeExportPrice float64

	// ImportPriceForecastRef and ExportPriceForecastRef are resolved via
	// sourceresolver.Resolver.ResolvePriceForecast; the realtime scalars
	// above override slot 0 per the slot-0 override convention.
	ImportPriceForecastRef sourceresolver.EntityRef
	ExportPriceForecastRef sourceresolver.EntityRef

	ImportForbiddenWindows []TimeWindow

	// PriceBiasPct discounts the effective export price and premiums the
	// effective import price used in the objective (informational pricing
	// preference, not a physical constraint).
	PriceBiasPct float64
}

// Validate checks the grid configuration for physical sanity.
func (g Grid) Validate() error {
	if g.ImportCapKW < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "grid import_cap_kw must be >= 0")
	}
	if g.ExportCapKW < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "grid export_cap_kw must be >= 0")
	}
	for i, w := range g.ImportForbiddenWindows {
		if err := w.Validate(); err != nil {
			return plannererrors.Wrap(plannererrors.ConfigInvalid, err, "grid import_forbidden_windows[%d]", i)
		}
	}
	return nil
}

// BatteryWearCost holds the per-kWh cost of cycling a battery.
type BatteryWearCost struct {
	ChargePerKWh    float64
	DischargePerKWh float64
}

// Battery describes a single battery attached to an inverter.
type Battery struct {
	CapacityKWh          float64
	StorageEfficiencyPct float64 // round-trip, (0,100]
	MinSoCPct            float64
	MaxSoCPct            float64
	ReserveSoCPct        float64
	MaxChargeKW          *float64
	MaxDischargeKW       *float64
	WearCost             BatteryWearCost
	TerminalValuePerKWh  *float64
	RealtimeSoCPct       float64
	TerminalMode         TerminalSoCMode
	// DCEfficiencyPct is informational only; it is never applied to the
	// power balance (AC/DC conversion modeling is out of scope).
	DCEfficiencyPct *float64
}

// Validate checks the battery configuration for physical sanity.
func (b Battery) Validate() error {
	if b.CapacityKWh <= 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery capacity_kwh must be > 0")
	}
	if b.StorageEfficiencyPct <= 0 || b.StorageEfficiencyPct > 100 {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery storage_efficiency_pct must be in (0,100]")
	}
	if b.MinSoCPct < 0 || b.MaxSoCPct > 100 || b.MinSoCPct > b.MaxSoCPct {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery min_soc_pct/max_soc_pct invalid: min=%v max=%v", b.MinSoCPct, b.MaxSoCPct)
	}
	if b.ReserveSoCPct < b.MinSoCPct || b.ReserveSoCPct > b.MaxSoCPct {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery reserve_soc_pct must be within [min_soc_pct,max_soc_pct]")
	}
	if b.RealtimeSoCPct < 0 || b.RealtimeSoCPct > 100 {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery realtime soc_pct out of range: %v", b.RealtimeSoCPct)
	}
	if b.MaxChargeKW != nil && *b.MaxChargeKW < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery max_charge_kw must be >= 0")
	}
	if b.MaxDischargeKW != nil && *b.MaxDischargeKW < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery max_discharge_kw must be >= 0")
	}
	if b.TerminalMode == "" {
		return plannererrors.New(plannererrors.ConfigInvalid, "battery terminal_mode must be set")
	}
	return nil
}

// Efficiency returns the one-way efficiency factor derived from the
// configured round-trip storage_efficiency_pct: the square root, so that
// applying it once on the charge leg and once on the discharge leg loses
// exactly 1 - storage_efficiency_pct/100 over a full cycle.
func (b Battery) Efficiency() float64 {
	return math.Sqrt(b.StorageEfficiencyPct / 100)
}

// EnergyKWh returns the battery's current stored energy given RealtimeSoCPct.
func (b Battery) EnergyKWh() float64 {
	return b.RealtimeSoCPct / 100 * b.CapacityKWh
}

// MinEnergyKWh and MaxEnergyKWh bound stored energy at any slot boundary.
func (b Battery) MinEnergyKWh() float64     { return b.MinSoCPct / 100 * b.CapacityKWh }
func (b Battery) MaxEnergyKWh() float64     { return b.MaxSoCPct / 100 * b.CapacityKWh }
func (b Battery) ReserveEnergyKWh() float64 { return b.ReserveSoCPct / 100 * b.CapacityKWh }

// Inverter describes a single PV inverter and its optional attached
// battery.
type Inverter struct {
	ID              string
	Name            string
	PeakPowerKW     float64
	CurtailmentMode CurtailmentMode
	Battery         *Battery
	// ACEfficiencyPct is informational only; neither the MILP nor the plan
	// document uses it.
	ACEfficiencyPct *float64

	// PVForecastRef is resolved via sourceresolver.Resolver.ResolvePowerForecast.
	PVForecastRef sourceresolver.EntityRef
	// RealtimePVKW overrides slot 0 when set, per the slot-0 override
	// convention; nil means no realtime reading is available and the
	// forecast is used even for slot 0.
	RealtimePVKW *float64
}

// HasBattery reports whether the inverter has an attached battery.
func (i Inverter) HasBattery() bool { return i.Battery != nil }

// Validate checks the inverter configuration for physical sanity.
func (i Inverter) Validate() error {
	if i.ID == "" {
		return plannererrors.New(plannererrors.ConfigInvalid, "inverter id must not be empty")
	}
	if i.PeakPowerKW < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "inverter %s peak_power_kw must be >= 0", i.ID)
	}
	switch i.CurtailmentMode {
	case CurtailmentNone, CurtailmentBinary, CurtailmentLoadAware:
	default:
		return plannererrors.New(plannererrors.ConfigInvalid, "inverter %s unknown curtailment mode %q", i.ID, i.CurtailmentMode)
	}
	if i.Battery != nil {
		if err := i.Battery.Validate(); err != nil {
			return plannererrors.Wrap(plannererrors.ConfigInvalid, err, "inverter %s battery", i.ID)
		}
	}
	return nil
}

// SoCIncentive is one band of a non-decreasing piecewise EV charging
// incentive schedule: reaching TargetPct earns RewardPerKWh for the energy
// delivered within that band.
type SoCIncentive struct {
	TargetPct    float64
	RewardPerKWh float64
}

// ControlledEvLoad describes one EV charger the planner may actively
// schedule (charge-only; EV discharge is out of scope).
type ControlledEvLoad struct {
	ID          string
	MinPowerKW  float64
	MaxPowerKW  float64
	CapacityKWh float64

	Connected       bool
	RealtimePowerKW float64
	RealtimeSoCPct  float64

	CanConnect          bool
	AllowedConnectTimes []TimeWindow
	ConnectGraceMinutes int

	// SoCIncentives must be ordered non-decreasing by TargetPct.
	SoCIncentives []SoCIncentive

	SwitchPenalty  *float64
	DeadlineTarget *float64
}

// Validate checks the EV load configuration for physical sanity.
func (e ControlledEvLoad) Validate() error {
	if e.ID == "" {
		return plannererrors.New(plannererrors.ConfigInvalid, "ev load id must not be empty")
	}
	if e.MinPowerKW < 0 || e.MaxPowerKW < 0 || e.MinPowerKW > e.MaxPowerKW {
		return plannererrors.New(plannererrors.ConfigInvalid, "ev %s min/max power invalid: min=%v max=%v", e.ID, e.MinPowerKW, e.MaxPowerKW)
	}
	if e.CapacityKWh <= 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "ev %s capacity_kwh must be > 0", e.ID)
	}
	if e.RealtimeSoCPct < 0 || e.RealtimeSoCPct > 100 {
		return plannererrors.New(plannererrors.ConfigInvalid, "ev %s realtime soc_pct out of range: %v", e.ID, e.RealtimeSoCPct)
	}
	for i, w := range e.AllowedConnectTimes {
		if err := w.Validate(); err != nil {
			return plannererrors.Wrap(plannererrors.ConfigInvalid, err, "ev %s allowed_connect_times[%d]", e.ID, i)
		}
	}
	if e.ConnectGraceMinutes < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "ev %s connect_grace_minutes must be >= 0", e.ID)
	}
	last := -1.0
	for i, inc := range e.SoCIncentives {
		if inc.TargetPct < 0 || inc.TargetPct > 100 {
			return plannererrors.New(plannererrors.ConfigInvalid, "ev %s soc_incentives[%d] target_pct out of range: %v", e.ID, i, inc.TargetPct)
		}
		if inc.TargetPct < last {
			return plannererrors.New(plannererrors.ConfigInvalid, "ev %s soc_incentives must be non-decreasing by target_pct", e.ID)
		}
		last = inc.TargetPct
	}
	return nil
}

// EnergyKWh returns the EV's current stored energy given RealtimeSoCPct.
func (e ControlledEvLoad) EnergyKWh() float64 {
	return e.RealtimeSoCPct / 100 * e.CapacityKWh
}

// Load describes the site's non-controllable base load (everything besides
// the controlled EV chargers).
type Load struct {
	// BaseLoadForecastRef is resolved via
	// sourceresolver.Resolver.ResolvePowerForecast.
	BaseLoadForecastRef sourceresolver.EntityRef
	// HistoryProfileRef synthesizes the base-load forecast from a
	// historical-average profile when BaseLoadForecastRef is empty.
	HistoryProfileRef sourceresolver.EntityRef
	// HistoryDays is the averaging window for HistoryProfileRef; zero
	// selects a one-week default.
	HistoryDays int
	// RealtimeLoadKW overrides slot 0 when set, per the slot-0 override
	// convention.
	RealtimeLoadKW *float64
}

// Validate checks the load configuration for physical sanity.
func (l Load) Validate() error {
	if l.RealtimeLoadKW != nil && *l.RealtimeLoadKW < 0 {
		return plannererrors.New(plannererrors.ConfigInvalid, "load realtime_load_kw must be >= 0")
	}
	return nil
}

// Plant is the read-only site topology passed into a planner invocation.
type Plant struct {
	Grid      Grid
	Inverters []Inverter
	EvLoads   []ControlledEvLoad
	Load      Load
}

// Validate checks every entity in the plant and reports the first failure.
func (p Plant) Validate() error {
	if err := p.Grid.Validate(); err != nil {
		return err
	}
	if err := p.Load.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(p.Inverters))
	for _, inv := range p.Inverters {
		if err := inv.Validate(); err != nil {
			return err
		}
		if _, dup := seen[inv.ID]; dup {
			return plannererrors.New(plannererrors.ConfigInvalid, "duplicate inverter id %q", inv.ID)
		}
		seen[inv.ID] = struct{}{}
	}
	seenEv := make(map[string]struct{}, len(p.EvLoads))
	for _, ev := range p.EvLoads {
		if err := ev.Validate(); err != nil {
			return err
		}
		if _, dup := seenEv[ev.ID]; dup {
			return plannererrors.New(plannererrors.ConfigInvalid, "duplicate ev load id %q", ev.ID)
		}
		seenEv[ev.ID] = struct{}{}
	}
	return nil
}

// Batteries returns the inverters that have an attached battery, preserving
// order.
func (p Plant) Batteries() []Inverter {
	out := make([]Inverter, 0, len(p.Inverters))
	for _, inv := range p.Inverters {
		if inv.HasBattery() {
			out = append(out, inv)
		}
	}
	return out
}

// String renders a compact human-readable summary, used in log lines.
func (p Plant) String() string {
	return fmt.Sprintf("plant(inverters=%d evs=%d)", len(p.Inverters), len(p.EvLoads))
}
