package plan

import (
	"time"

	"github.com/kilianp07/emsplanner/core/ems"
	"github.com/kilianp07/emsplanner/core/horizon"
	"github.com/kilianp07/emsplanner/core/milp"
	"github.com/kilianp07/emsplanner/core/plant"
)

// Extract reads sol back into a typed Plan, using idx to locate each
// variable and h/p for timing and topology metadata. generatedAt stamps the
// plan's generated_at field.
func Extract(sol *milp.Solution, h *horizon.Horizon, idx *ems.VarIndex, p plant.Plant, generatedAt time.Time) (*Plan, error) {
	out := &Plan{
		GeneratedAt:          generatedAt,
		Status:               string(sol.Status),
		Objective:            round3(sol.Objective),
		BatteryCapacitiesKWh: map[string]float64{},
		EVCapacitiesKWh:      map[string]float64{},
	}
	if sol.Status != milp.StatusOptimal {
		return out, nil
	}

	for _, inv := range p.Inverters {
		if inv.HasBattery() {
			out.BatteryCapacitiesKWh[inv.ID] = round3(inv.Battery.CapacityKWh)
		}
	}
	for _, ev := range p.EvLoads {
		out.EVCapacitiesKWh[ev.ID] = round3(ev.CapacityKWh)
	}

	n := h.N()
	out.Slots = make([]SlotPlan, n)
	cumulativeCost := 0.0

	for t := 0; t < n; t++ {
		slot := h.Slots[t]
		dt := slot.DurationH()

		gridImport := sol.Value(idx.PImp[t])
		gridExport := sol.Value(idx.PExp[t])
		gridViolation := sol.Value(idx.VImp[t])

		sp := SlotPlan{
			Index:                 t,
			Start:                 slot.Start,
			End:                   slot.End,
			DurationS:             round3(slot.End.Sub(slot.Start).Seconds()),
			GridImportKW:          round3(gridImport),
			GridExportKW:          round3(gridExport),
			GridImportViolationKW: round3(gridViolation),
			GridKW:                round3(gridImport - gridExport),
			LoadKW:                round3(idx.AlignedLoad[t]),
			PriceImport:           round3(idx.AlignedImportPrice[t]),
			PriceExport:           round3(idx.AlignedExportPrice[t]),
			PVInverters:           map[string]float64{},
			CurtailInverters:      map[string]int{},
			ImportAllowed:         idx.AllowImp[t],
		}

		pvTotal, acNetTotal := 0.0, 0.0
		for _, inv := range p.Inverters {
			pv := sol.Value(idx.PPv[inv.ID][t])
			pvTotal += pv
			sp.PVInverters[inv.ID] = round3(pv)

			acNetTotal += sol.Value(idx.PAcNet[inv.ID][t])

			curtailed := 0
			if curt, ok := idx.Curt[inv.ID]; ok {
				if sol.Value(curt[t]) > 0.5 {
					curtailed = 1
					sp.CurtailAny = true
				}
			}
			sp.CurtailInverters[inv.ID] = curtailed

			if inv.HasBattery() {
				sp.BatteryChargeKW += sol.Value(idx.PBc[inv.ID][t])
				sp.BatteryDischargeKW += sol.Value(idx.PBd[inv.ID][t])
				sp.BatterySoCKWh += sol.Value(idx.EB[inv.ID][t])
			}
		}
		sp.PVKW = round3(pvTotal)
		sp.InverterAcNetKW = round3(acNetTotal)
		sp.BatteryChargeKW = round3(sp.BatteryChargeKW)
		sp.BatteryDischargeKW = round3(sp.BatteryDischargeKW)
		sp.BatterySoCKWh = round3(sp.BatterySoCKWh)

		evTotal, evSoCTotal := 0.0, 0.0
		for _, ev := range p.EvLoads {
			evTotal += sol.Value(idx.PEv[ev.ID][t])
			evSoCTotal += sol.Value(idx.EEv[ev.ID][t])
		}
		sp.EVChargeKW = round3(evTotal)
		sp.EVSoCKWh = round3(evSoCTotal)
		sp.LoadTotalKW = round3(idx.AlignedLoad[t] + evTotal)

		segmentCost := sp.PriceImport*gridImport*dt - sp.PriceExport*gridExport*dt
		cumulativeCost += segmentCost
		sp.SegmentCost = round3(segmentCost)
		sp.CumulativeCost = round3(cumulativeCost)

		out.Slots[t] = sp
	}

	return out, nil
}
