package ems

import (
	"math"
	"sort"
	"time"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/forecast"
	"github.com/kilianp07/emsplanner/core/horizon"
	"github.com/kilianp07/emsplanner/core/milp"
	"github.com/kilianp07/emsplanner/core/plant"
)

// Build constructs the MILP for horizon h over plant p, given forecasts
// already resolved and aligned by the caller (core/planner). It returns the
// solver-agnostic Problem plus the variable-index bookkeeping the plan
// extractor (core/plan) needs to read a Solution back into a typed Plan.
func Build(h *horizon.Horizon, p plant.Plant, resolved *ResolvedInputs, cfg Config) (*milp.Problem, *VarIndex, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	n := h.N()
	prob := &milp.Problem{}
	idx := newVarIndex(n)
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	aligner := forecast.Aligner{}

	importPrice, err := aligner.Align(h, resolved.ImportPrice, floatPtr(p.Grid.RealtimeImportPrice))
	if err != nil {
		return nil, nil, err
	}
	exportPrice, err := aligner.Align(h, resolved.ExportPrice, floatPtr(p.Grid.RealtimeExportPrice))
	if err != nil {
		return nil, nil, err
	}
	load, err := aligner.Align(h, resolved.Load, p.Load.RealtimeLoadKW)
	if err != nil {
		return nil, nil, err
	}

	bias := p.Grid.PriceBiasPct / 100
	effImportPrice := make([]float64, n)
	effExportPrice := make([]float64, n)
	for t := 0; t < n; t++ {
		effImportPrice[t] = importPrice[t] * (1 + bias)
		effExportPrice[t] = exportPrice[t] * (1 - bias)
	}
	idx.AlignedImportPrice = importPrice
	idx.AlignedExportPrice = exportPrice
	idx.AlignedLoad = load

	allowImp := make([]bool, n)
	for t, slot := range h.Slots {
		allowImp[t] = !inAnyForbiddenWindow(p.Grid.ImportForbiddenWindows, slot.Start.In(loc))
	}
	idx.AllowImp = allowImp

	buildGrid(prob, idx, p, h, allowImp, effExportPrice)

	for _, inv := range p.Inverters {
		pv, err := aligner.Align(h, resolved.PV[inv.ID], inv.RealtimePVKW)
		if err != nil {
			return nil, nil, plannererrors.Wrap(plannererrors.AlignmentCoverageError, err, "inverter %s pv forecast", inv.ID)
		}
		buildInverter(prob, idx, inv, p.Grid, h, pv)
	}

	for _, ev := range p.EvLoads {
		buildEV(prob, idx, ev, h, cfg)
	}

	buildSystemBalance(prob, idx, p, load)

	buildObjective(prob, idx, p, h, effImportPrice, effExportPrice, bias, cfg)

	return prob, idx, nil
}

func floatPtr(v float64) *float64 { return &v }

func inAnyForbiddenWindow(windows []plant.TimeWindow, t time.Time) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// buildGrid creates the import/export/exclusivity/forbidden-window
// variables and constraints shared across the whole horizon.
func buildGrid(prob *milp.Problem, idx *VarIndex, p plant.Plant, h *horizon.Horizon, allowImp []bool, effExportPrice []float64) {
	n := h.N()
	idx.PImp = make([]int, n)
	idx.PExp = make([]int, n)
	idx.OnImp = make([]int, n)
	idx.VImp = make([]int, n)

	exportCap := p.Grid.ExportCapKW
	for t := 0; t < n; t++ {
		// Exporting into a negative price costs money; block it outright
		// instead of trusting tie-breaker weights to avoid it.
		cap := exportCap
		if effExportPrice[t] < negativeExportPriceThreshold {
			cap = 0
		}
		idx.PImp[t] = prob.AddVariable(milp.Variable{Name: "p_imp", UpperBound: p.Grid.ImportCapKW})
		idx.PExp[t] = prob.AddVariable(milp.Variable{Name: "p_exp", UpperBound: cap})
		idx.OnImp[t] = prob.AddVariable(milp.Variable{Name: "on_imp", Kind: milp.Binary})
		idx.VImp[t] = prob.AddVariable(milp.Variable{Name: "v_imp", UpperBound: p.Grid.ImportCapKW})

		prob.AddConstraint(milp.Constraint{
			Name:  "grid_import_exclusivity",
			Terms: []milp.Term{{Var: idx.PImp[t], Coef: 1}, {Var: idx.OnImp[t], Coef: -p.Grid.ImportCapKW}},
			Sense: milp.LE, RHS: 0,
		})
		prob.AddConstraint(milp.Constraint{
			Name:  "grid_export_exclusivity",
			Terms: []milp.Term{{Var: idx.PExp[t], Coef: 1}, {Var: idx.OnImp[t], Coef: cap}},
			Sense: milp.LE, RHS: cap,
		})

		allowCoef := 0.0
		if allowImp[t] {
			allowCoef = p.Grid.ImportCapKW
		}
		prob.AddConstraint(milp.Constraint{
			Name:  "grid_import_forbidden",
			Terms: []milp.Term{{Var: idx.PImp[t], Coef: 1}, {Var: idx.VImp[t], Coef: -1}},
			Sense: milp.LE, RHS: allowCoef,
		})
	}
}

// buildInverter creates PV, curtailment, and (if present) battery variables
// and constraints for one inverter.
func buildInverter(prob *milp.Problem, idx *VarIndex, inv plant.Inverter, grid plant.Grid, h *horizon.Horizon, pv []float64) {
	n := h.N()
	ppv := make([]int, n)
	pacnet := make([]int, n)
	var curt []int
	if inv.CurtailmentMode != plant.CurtailmentNone {
		curt = make([]int, n)
	}

	for t := 0; t < n; t++ {
		ppv[t] = prob.AddVariable(milp.Variable{Name: "p_pv", UpperBound: math.Max(pv[t], 0)})
		pacnet[t] = prob.AddVariable(milp.Variable{Name: "p_acnet", LowerBound: math.Inf(-1), UpperBound: math.Inf(1)})

		switch inv.CurtailmentMode {
		case plant.CurtailmentNone:
			prob.AddConstraint(milp.Constraint{Terms: []milp.Term{{Var: ppv[t], Coef: 1}}, Sense: milp.EQ, RHS: pv[t]})
		case plant.CurtailmentBinary:
			curt[t] = prob.AddVariable(milp.Variable{Name: "curt", Kind: milp.Binary})
			// P_pv[t] = F_pv[t]*(1-Curt[t])  <=>  P_pv[t] + F_pv[t]*Curt[t] = F_pv[t]
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: ppv[t], Coef: 1}, {Var: curt[t], Coef: pv[t]}},
				Sense: milp.EQ, RHS: pv[t],
			})
		case plant.CurtailmentLoadAware:
			curt[t] = prob.AddVariable(milp.Variable{Name: "curt", Kind: milp.Binary})
			prob.AddConstraint(milp.Constraint{Terms: []milp.Term{{Var: ppv[t], Coef: 1}}, Sense: milp.LE, RHS: pv[t]})
			// P_pv[t] >= F_pv[t]*(1-Curt[t])  <=>  P_pv[t] + F_pv[t]*Curt[t] >= F_pv[t]
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: ppv[t], Coef: 1}, {Var: curt[t], Coef: pv[t]}},
				Sense: milp.GE, RHS: pv[t],
			})
		}
	}

	var pbc, pbd, eb, mb, exportOk []int
	if inv.HasBattery() {
		bat := inv.Battery
		pbc = make([]int, n)
		pbd = make([]int, n)
		eb = make([]int, n+1)
		mb = make([]int, n)
		exportOk = make([]int, n)

		maxC := inv.PeakPowerKW
		if bat.MaxChargeKW != nil {
			maxC = *bat.MaxChargeKW
		}
		maxD := inv.PeakPowerKW
		if bat.MaxDischargeKW != nil {
			maxD = math.Min(*bat.MaxDischargeKW, inv.PeakPowerKW)
		}
		eta := bat.Efficiency()
		// Big-M for the reserve/export gate: the SoC range is the widest the
		// gated energy expression can move, so it is the tightest valid M.
		socRangeM := bat.MaxEnergyKWh() - bat.MinEnergyKWh()

		eb[0] = prob.AddVariable(milp.Variable{Name: "e_b", LowerBound: bat.EnergyKWh(), UpperBound: bat.EnergyKWh()})
		for t := 0; t < n; t++ {
			pbc[t] = prob.AddVariable(milp.Variable{Name: "p_bc", UpperBound: maxC})
			pbd[t] = prob.AddVariable(milp.Variable{Name: "p_bd", UpperBound: maxD})
			mb[t] = prob.AddVariable(milp.Variable{Name: "m_b", Kind: milp.Binary})
			exportOk[t] = prob.AddVariable(milp.Variable{Name: "export_ok", Kind: milp.Binary})
			eb[t+1] = prob.AddVariable(milp.Variable{Name: "e_b", LowerBound: bat.MinEnergyKWh(), UpperBound: bat.MaxEnergyKWh()})

			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: pbc[t], Coef: 1}, {Var: mb[t], Coef: -maxC}},
				Sense: milp.LE, RHS: 0,
			})
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: pbd[t], Coef: 1}, {Var: mb[t], Coef: maxD}},
				Sense: milp.LE, RHS: maxD,
			})

			// Symmetric round-trip split: eta is the square root of the
			// configured storage efficiency, applied on both legs, so a full
			// charge/discharge cycle loses exactly 1-storage_efficiency_pct/100.
			dt := h.DtHours(t)
			prob.AddConstraint(milp.Constraint{
				Name:  "battery_soc_dynamics",
				Terms: []milp.Term{{Var: eb[t+1], Coef: 1}, {Var: eb[t], Coef: -1}, {Var: pbc[t], Coef: -eta * dt}, {Var: pbd[t], Coef: dt / eta}},
				Sense: milp.EQ, RHS: 0,
			})

			// Reserve/export gate: export_ok[t]=1 requires the battery to sit
			// at or above reserve across the whole slot (both boundaries);
			// export_ok[t]=0 relaxes both rows by the full SoC range.
			prob.AddConstraint(milp.Constraint{
				Name:  "battery_export_reserve_start",
				Terms: []milp.Term{{Var: eb[t], Coef: 1}, {Var: exportOk[t], Coef: -socRangeM}},
				Sense: milp.GE, RHS: bat.ReserveEnergyKWh() - socRangeM,
			})
			prob.AddConstraint(milp.Constraint{
				Name:  "battery_export_reserve_end",
				Terms: []milp.Term{{Var: eb[t+1], Coef: 1}, {Var: exportOk[t], Coef: -socRangeM}},
				Sense: milp.GE, RHS: bat.ReserveEnergyKWh() - socRangeM,
			})
			prob.AddConstraint(milp.Constraint{
				Name:  "grid_export_reserve",
				Terms: []milp.Term{{Var: idx.PExp[t], Coef: 1}, {Var: exportOk[t], Coef: -grid.ExportCapKW}},
				Sense: milp.LE, RHS: 0,
			})
		}

		switch bat.TerminalMode {
		case plant.TerminalSoCHard:
			prob.AddConstraint(milp.Constraint{
				Name:  "battery_terminal_hard",
				Terms: []milp.Term{{Var: eb[n], Coef: 1}, {Var: eb[0], Coef: -1}},
				Sense: milp.GE, RHS: 0,
			})
		case plant.TerminalSoCAdaptive:
			ratio := terminalSoCRatio(horizonMinutes(h))
			// The target relaxes from the initial SoC toward min(initial,
			// reserve) as the horizon diverges from the 24h reference.
			floor := math.Min(bat.EnergyKWh(), bat.ReserveEnergyKWh())
			target := floor + ratio*(bat.EnergyKWh()-floor)
			slack := prob.AddVariable(milp.Variable{Name: "terminal_shortfall", UpperBound: bat.MaxEnergyKWh()})
			prob.AddConstraint(milp.Constraint{
				Name:  "battery_terminal_adaptive",
				Terms: []milp.Term{{Var: eb[n], Coef: 1}, {Var: slack, Coef: 1}},
				Sense: milp.GE, RHS: target,
			})
			idx.TerminalShortfall[inv.ID] = slack
		}

		if bat.TerminalValuePerKWh != nil && *bat.TerminalValuePerKWh > 0 {
			prob.AddObjectiveTerm(eb[n], -*bat.TerminalValuePerKWh)
		}

		idx.PBc[inv.ID] = pbc
		idx.PBd[inv.ID] = pbd
		idx.EB[inv.ID] = eb
		idx.MB[inv.ID] = mb
		idx.ExportOk[inv.ID] = exportOk
	}

	for t := 0; t < n; t++ {
		terms := []milp.Term{{Var: pacnet[t], Coef: 1}, {Var: ppv[t], Coef: -1}}
		if inv.HasBattery() {
			terms = append(terms, milp.Term{Var: pbd[t], Coef: -1}, milp.Term{Var: pbc[t], Coef: 1})
		}
		prob.AddConstraint(milp.Constraint{Name: "inverter_ac_net", Terms: terms, Sense: milp.EQ, RHS: 0})

		if inv.CurtailmentMode == plant.CurtailmentLoadAware {
			prob.AddConstraint(milp.Constraint{
				Name:  "load_aware_export_block",
				Terms: []milp.Term{{Var: idx.PExp[t], Coef: 1}, {Var: curt[t], Coef: grid.ExportCapKW}},
				Sense: milp.LE, RHS: grid.ExportCapKW,
			})
		}
	}

	idx.PPv[inv.ID] = ppv
	idx.PAcNet[inv.ID] = pacnet
	if curt != nil {
		idx.Curt[inv.ID] = curt
	}
}

// terminalSoCRatio implements the adaptive-mode scaling resolved in
// DESIGN.md: min(H,1440)/max(H,1440) against the fixed 24h reference, so a
// 24h horizon keeps full strength and both shorter and longer horizons
// relax toward the reserve floor.
func terminalSoCRatio(minutes float64) float64 {
	ref := terminalSoCReferenceMinutes
	if minutes <= 0 {
		return 1
	}
	return math.Min(minutes, ref) / math.Max(minutes, ref)
}

// horizonMinutes returns the total horizon span in minutes.
func horizonMinutes(h *horizon.Horizon) float64 {
	if len(h.Slots) == 0 {
		return 0
	}
	return h.Slots[len(h.Slots)-1].End.Sub(h.Slots[0].Start).Minutes()
}

// buildEV creates the variables and constraints for one controlled EV load.
func buildEV(prob *milp.Problem, idx *VarIndex, ev plant.ControlledEvLoad, h *horizon.Horizon, cfg Config) {
	n := h.N()
	pEv := make([]int, n)
	rEv := make([]int, n)
	eEv := make([]int, n+1)
	var onEv []int
	if ev.MinPowerKW > 0 {
		onEv = make([]int, n)
	}

	allowed := make([]bool, n)
	for t, slot := range h.Slots {
		allowed[t] = evConnectionAllowed(ev, slot.Start, cfg.Now)
	}

	initial := math.Max(0, math.Min(ev.CapacityKWh, ev.EnergyKWh()))
	eEv[0] = prob.AddVariable(milp.Variable{Name: "e_ev", LowerBound: initial, UpperBound: initial})
	for t := 0; t < n; t++ {
		ub := ev.MaxPowerKW
		if !allowed[t] {
			ub = 0
		}
		pEv[t] = prob.AddVariable(milp.Variable{Name: "p_ev", UpperBound: ub})
		rEv[t] = prob.AddVariable(milp.Variable{Name: "r_ev", UpperBound: ev.MaxPowerKW})
		eEv[t+1] = prob.AddVariable(milp.Variable{Name: "e_ev", UpperBound: ev.CapacityKWh})

		if ev.MinPowerKW > 0 {
			onEv[t] = prob.AddVariable(milp.Variable{Name: "on_ev", Kind: milp.Binary})
			if !allowed[t] {
				prob.AddConstraint(milp.Constraint{Terms: []milp.Term{{Var: onEv[t], Coef: 1}}, Sense: milp.EQ, RHS: 0})
			}
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: pEv[t], Coef: 1}, {Var: onEv[t], Coef: -ev.MinPowerKW}},
				Sense: milp.GE, RHS: 0,
			})
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: pEv[t], Coef: 1}, {Var: onEv[t], Coef: -ev.MaxPowerKW}},
				Sense: milp.LE, RHS: 0,
			})
		}

		dt := h.DtHours(t)
		prob.AddConstraint(milp.Constraint{
			Name:  "ev_soc_dynamics",
			Terms: []milp.Term{{Var: eEv[t+1], Coef: 1}, {Var: eEv[t], Coef: -1}, {Var: pEv[t], Coef: -dt}},
			Sense: milp.EQ, RHS: 0,
		})

		if t == 0 {
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: rEv[0], Coef: 1}},
				Sense: milp.EQ, RHS: 0,
			})
		} else {
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: rEv[t], Coef: 1}, {Var: pEv[t], Coef: -1}, {Var: pEv[t-1], Coef: 1}},
				Sense: milp.GE, RHS: 0,
			})
			prob.AddConstraint(milp.Constraint{
				Terms: []milp.Term{{Var: rEv[t], Coef: 1}, {Var: pEv[t], Coef: 1}, {Var: pEv[t-1], Coef: -1}},
				Sense: milp.GE, RHS: 0,
			})
		}
	}

	// The anchor term only enters the objective when the charger is actually
	// running; a reading near 0 kW is "not really charging".
	if math.Abs(ev.RealtimePowerKW) >= cfg.Tunables.EVAnchorActiveThresholdKW {
		aEv := prob.AddVariable(milp.Variable{Name: "a_ev", UpperBound: math.Inf(1)})
		prob.AddConstraint(milp.Constraint{
			Terms: []milp.Term{{Var: aEv, Coef: 1}, {Var: pEv[0], Coef: -1}},
			Sense: milp.GE, RHS: -ev.RealtimePowerKW,
		})
		prob.AddConstraint(milp.Constraint{
			Terms: []milp.Term{{Var: aEv, Coef: 1}, {Var: pEv[0], Coef: 1}},
			Sense: milp.GE, RHS: ev.RealtimePowerKW,
		})
		idx.AEv[ev.ID] = aEv
	}

	segVars := buildEVIncentiveSegments(prob, ev, eEv, n)

	if ev.DeadlineTarget != nil {
		prob.AddConstraint(milp.Constraint{
			Name:  "ev_deadline_target",
			Terms: []milp.Term{{Var: eEv[n], Coef: 1}},
			Sense: milp.GE, RHS: *ev.DeadlineTarget / 100 * ev.CapacityKWh,
		})
	}

	idx.PEv[ev.ID] = pEv
	idx.EEv[ev.ID] = eEv
	idx.REv[ev.ID] = rEv
	if onEv != nil {
		idx.OnEv[ev.ID] = onEv
	}
	idx.SegVars[ev.ID] = segVars
}

// buildEVIncentiveSegments creates one bounded segment variable per
// SoCIncentive band (plus a trailing zero-reward band absorbing capacity
// above the last target) and ties their sum to the EV's absolute terminal
// SoC. Anchoring segments to absolute SoC rather than charged delta means
// the initial charge fills the lowest bands for free and only energy above
// the already-reached level earns the marginal band's reward.
func buildEVIncentiveSegments(prob *milp.Problem, ev plant.ControlledEvLoad, eEv []int, n int) []int {
	if len(ev.SoCIncentives) == 0 {
		return nil
	}
	segVars := make([]int, 0, len(ev.SoCIncentives)+1)
	prevTarget := 0.0
	for _, inc := range ev.SoCIncentives {
		width := (inc.TargetPct - prevTarget) / 100 * ev.CapacityKWh
		if width < 0 {
			width = 0
		}
		seg := prob.AddVariable(milp.Variable{Name: "ev_incentive_segment", UpperBound: width})
		segVars = append(segVars, seg)
		prevTarget = inc.TargetPct
	}
	if trailingWidth := (100 - prevTarget) / 100 * ev.CapacityKWh; trailingWidth > 0 {
		trailing := prob.AddVariable(milp.Variable{Name: "ev_incentive_segment_trailing", UpperBound: trailingWidth})
		segVars = append(segVars, trailing)
	}

	terms := []milp.Term{{Var: eEv[n], Coef: -1}}
	for _, seg := range segVars {
		terms = append(terms, milp.Term{Var: seg, Coef: 1})
	}
	prob.AddConstraint(milp.Constraint{Name: "ev_incentive_total", Terms: terms, Sense: milp.EQ, RHS: 0})
	return segVars
}

// evConnectionAllowed implements the EV connection gating: the
// EV stays connected for the whole horizon once Connected is true (no
// mid-horizon disconnection is modeled); otherwise it may only connect once
// CanConnect, the grace period has elapsed, and (if configured) the slot
// falls inside an allowed-connect window.
func evConnectionAllowed(ev plant.ControlledEvLoad, slotStart, now time.Time) bool {
	if ev.Connected {
		return true
	}
	if !ev.CanConnect {
		return false
	}
	grace := now.Add(time.Duration(ev.ConnectGraceMinutes) * time.Minute)
	if slotStart.Before(grace) {
		return false
	}
	if len(ev.AllowedConnectTimes) == 0 {
		return true
	}
	for _, w := range ev.AllowedConnectTimes {
		if w.Contains(slotStart) {
			return true
		}
	}
	return false
}

// buildSystemBalance adds the per-slot AC power balance constraint:
// P_imp[t] + Σ_k P_acnet[k,t] = L[t] + Σ_e P_ev[e,t] + P_exp[t].
func buildSystemBalance(prob *milp.Problem, idx *VarIndex, p plant.Plant, load []float64) {
	n := len(load)
	for t := 0; t < n; t++ {
		terms := []milp.Term{{Var: idx.PImp[t], Coef: 1}, {Var: idx.PExp[t], Coef: -1}}
		for _, inv := range p.Inverters {
			terms = append(terms, milp.Term{Var: idx.PAcNet[inv.ID][t], Coef: 1})
		}
		for _, ev := range p.EvLoads {
			terms = append(terms, milp.Term{Var: idx.PEv[ev.ID][t], Coef: -1})
		}
		prob.AddConstraint(milp.Constraint{Name: "system_ac_balance", Terms: terms, Sense: milp.EQ, RHS: load[t]})
	}
}

// buildObjective assembles the cost-and-preference objective:
// energy cost, forbidden-import penalty, early-flow
// tie-breaker, battery wear and timing, terminal SoC shortfall, and the EV
// incentive/ramp/anchor preference terms.
func buildObjective(prob *milp.Problem, idx *VarIndex, p plant.Plant, h *horizon.Horizon, importPrice, exportPrice []float64, bias float64, cfg Config) {
	n := h.N()
	tun := cfg.Tunables

	for t := 0; t < n; t++ {
		dt := h.DtHours(t)
		prob.AddObjectiveTerm(idx.PImp[t], importPrice[t]*dt)
		if math.Abs(idx.AlignedExportPrice[t]) <= 1e-9 {
			// A zero export tariff still beats curtailing surplus PV.
			prob.AddObjectiveTerm(idx.PExp[t], -tun.ExportPreference*dt)
		} else {
			prob.AddObjectiveTerm(idx.PExp[t], -exportPrice[t]*dt)
		}

		prob.AddObjectiveTerm(idx.VImp[t], tun.ViolationCostPerKWh*dt)

		tie := -tun.EarlyFlowTieBreaker / float64(t+1)
		prob.AddObjectiveTerm(idx.PImp[t], tie)
		prob.AddObjectiveTerm(idx.PExp[t], tie)
	}

	for _, inv := range p.Inverters {
		if !inv.HasBattery() {
			continue
		}
		bat := inv.Battery
		pbc, pbd := idx.PBc[inv.ID], idx.PBd[inv.ID]
		for t := 0; t < n; t++ {
			dt := h.DtHours(t)
			if bat.WearCost.ChargePerKWh > 0 {
				prob.AddObjectiveTerm(pbc[t], bat.WearCost.ChargePerKWh*dt)
			}
			if bat.WearCost.DischargePerKWh > 0 {
				prob.AddObjectiveTerm(pbd[t], bat.WearCost.DischargePerKWh*dt)
			}
			prob.AddObjectiveTerm(pbc[t], tun.BatteryTimingTieBreaker*float64(t+1)*dt)
			prob.AddObjectiveTerm(pbd[t], tun.BatteryTimingTieBreaker*float64(t+1)*dt)
		}
	}

	if len(idx.TerminalShortfall) > 0 {
		penalty := tun.TerminalShortfallPenaltyPerKWh
		if penalty <= 0 {
			penalty = medianPrice(idx.AlignedImportPrice)
		}
		penalty = math.Max(0, penalty) * terminalSoCRatio(horizonMinutes(h))
		for _, slack := range idx.TerminalShortfall {
			prob.AddObjectiveTerm(slack, penalty)
		}
	}

	for _, ev := range p.EvLoads {
		rampCost := tun.EVRampCost
		if ev.SwitchPenalty != nil {
			rampCost = *ev.SwitchPenalty
		}
		rEv := idx.REv[ev.ID]
		for t := 1; t < n; t++ {
			prob.AddObjectiveTerm(rEv[t], rampCost)
		}
		if aEv, ok := idx.AEv[ev.ID]; ok {
			prob.AddObjectiveTerm(aEv, tun.EVAnchorCost*h.DtHours(0))
		}
		// Incentives carry the same bias as export revenue so an 8c reward
		// still ties with an 8c export tariff after both are biased.
		segs := idx.SegVars[ev.ID]
		for i, inc := range ev.SoCIncentives {
			if math.Abs(inc.RewardPerKWh) <= 1e-12 {
				continue
			}
			prob.AddObjectiveTerm(segs[i], -inc.RewardPerKWh*(1-bias))
		}
	}
}

// medianPrice returns the median of prices, the default per-kWh weight for
// the adaptive terminal-SoC shortfall slack.
func medianPrice(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
