// Package ems builds the mixed-integer linear program that encodes one
// planning cycle: grid exclusivity and import-forbidden slack, per-inverter
// PV/curtailment/battery physics, the system AC balance, and controlled EV
// charging, plus the cost-and-preference objective. It targets
// core/milp.Problem and never depends on a specific solver.
package ems

import "time"

// Tunables collects the small objective-weighting constants the reference
// implementation hard-codes; keeping them in one place lets them be tuned
// without touching the builder's structure.
type Tunables struct {
	// ViolationCostPerKWh weights the forbidden-import slack V_imp.
	ViolationCostPerKWh float64
	// ExportPreference is a tiny per-kW credit applied when the export
	// price is exactly zero, so the solver prefers exporting surplus PV
	// over curtailing it.
	ExportPreference float64
	// EarlyFlowTieBreaker nudges the solver toward moving energy earlier in
	// the horizon when economically indifferent.
	EarlyFlowTieBreaker float64
	// BatteryTimingTieBreaker nudges battery cycling earlier in the horizon
	// when economically indifferent (the weight grows with the slot index).
	BatteryTimingTieBreaker float64
	// EVRampCost weights slot-to-slot EV charging power changes.
	EVRampCost float64
	// EVAnchorCost weights slot-0 deviation from the EV's realtime power.
	EVAnchorCost float64
	// EVAnchorActiveThresholdKW: below this realtime power the anchor term
	// is dropped (an EV reading near 0 kW is usually "not really charging").
	EVAnchorActiveThresholdKW float64
	// TerminalShortfallPenaltyPerKWh weights the adaptive terminal-SoC
	// shortfall slack, applied only to batteries in TerminalSoCAdaptive
	// mode. Zero means "use the median import price of the horizon".
	TerminalShortfallPenaltyPerKWh float64
}

// DefaultTunables returns the stock objective weights. They are sized so
// tie-breakers never reverse a strictly economic decision.
func DefaultTunables() Tunables {
	return Tunables{
		ViolationCostPerKWh:       1e3,
		ExportPreference:          1e-4,
		EarlyFlowTieBreaker:       1e-5,
		BatteryTimingTieBreaker:   1e-6,
		EVRampCost:                1e-4,
		EVAnchorCost:              0.05,
		EVAnchorActiveThresholdKW: 0.1,
	}
}

// terminalSoCReferenceMinutes is the fixed 24h reference the adaptive
// terminal-SoC target ratio scales against.
const terminalSoCReferenceMinutes = 1440.0

// negativeExportPriceThreshold zeroes export capacity when the effective
// export price falls below it: a solver that is indifferent to tiny
// negative prices should not export into a penalty.
const negativeExportPriceThreshold = -1e-9

// Config parametrizes one MILP build, independent of horizon construction
// (core/horizon.Config) which the caller builds separately.
type Config struct {
	Tunables Tunables
	// Location is the local timezone used to evaluate import-forbidden and
	// EV allowed-connect time windows.
	Location *time.Location
	// Now is the invocation instant, used for the EV connect-grace check.
	Now time.Time
}
