package metrics

import "time"

// PlanResult captures the outcome of one planning cycle to be recorded.
type PlanResult struct {
	GeneratedAt   time.Time
	Status        string
	Horizon       int
	Objective     float64
	SolveDuration time.Duration
}

// MetricsSink records planning cycle results for observability purposes.
type MetricsSink interface {
	RecordPlan(result PlanResult) error
}

// SlotEconomics is one horizon slot's realized economics, used to roll up
// daily cost and CO2 figures after a plan is produced.
type SlotEconomics struct {
	Start          time.Time
	DurationS      float64
	GridImportKW   float64
	GridExportKW   float64
	SegmentCostEUR float64
}

// EcoRecorder records per-slot economics for cost/CO2 KPI rollups.
type EcoRecorder interface {
	RecordEco(slots []SlotEconomics) error
}

// InfeasibleEvent records a planning cycle that failed to produce a plan.
type InfeasibleEvent struct {
	GeneratedAt time.Time
	Reason      string
}

// InfeasibleRecorder records failed planning cycles.
type InfeasibleRecorder interface {
	RecordInfeasible(ev InfeasibleEvent) error
}

// NopSink implements MetricsSink and the optional recorder interfaces with
// no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanResult) error            { return nil }
func (NopSink) RecordEco([]SlotEconomics) error        { return nil }
func (NopSink) RecordInfeasible(InfeasibleEvent) error { return nil }
