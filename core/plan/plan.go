// Package plan defines the stable, JSON-serializable output document the
// planner produces: a solve-level summary plus one entry per horizon slot,
// matching the plan extractor's field list.
package plan

import "time"

// Plan is one receding-horizon solve's complete result.
type Plan struct {
	GeneratedAt time.Time `json:"generated_at"`
	Status      string    `json:"status"`
	Objective   float64   `json:"objective"`

	// BatteryCapacitiesKWh and EVCapacitiesKWh echo each entity's configured
	// capacity, keyed by Inverter.ID / ControlledEvLoad.ID, so a consumer
	// doesn't need the plant topology to interpret *_soc_kwh fields.
	BatteryCapacitiesKWh map[string]float64 `json:"battery_capacities_kwh,omitempty"`
	EVCapacitiesKWh      map[string]float64 `json:"ev_capacities_kwh,omitempty"`

	Slots []SlotPlan `json:"slots"`
}

// SlotPlan is one horizon slot's extracted solution.
type SlotPlan struct {
	Index     int       `json:"index"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	DurationS float64   `json:"duration_s"`

	GridImportKW          float64 `json:"grid_import_kw"`
	GridExportKW          float64 `json:"grid_export_kw"`
	GridImportViolationKW float64 `json:"grid_import_violation_kw"`
	GridKW                float64 `json:"grid_kw"`

	LoadKW      float64 `json:"load_kw"`
	LoadTotalKW float64 `json:"load_total_kw"`

	PriceImport float64 `json:"price_import"`
	PriceExport float64 `json:"price_export"`

	SegmentCost    float64 `json:"segment_cost"`
	CumulativeCost float64 `json:"cumulative_cost"`

	PVKW        float64            `json:"pv_kw"`
	PVInverters map[string]float64 `json:"pv_inverters"`

	BatteryChargeKW    float64 `json:"battery_charge_kw"`
	BatteryDischargeKW float64 `json:"battery_discharge_kw"`
	BatterySoCKWh      float64 `json:"battery_soc_kwh"`

	EVChargeKW float64 `json:"ev_charge_kw"`
	EVSoCKWh   float64 `json:"ev_soc_kwh"`

	InverterAcNetKW  float64        `json:"inverter_ac_net_kw"`
	CurtailInverters map[string]int `json:"curtail_inverters"`
	CurtailAny       bool           `json:"curtail_any"`

	ImportAllowed bool `json:"import_allowed"`
}

// round3 rounds v to 3 decimal places, the fixed precision of every
// numeric plan field.
func round3(v float64) float64 {
	const scale = 1000.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
