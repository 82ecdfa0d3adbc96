package metrics

import (
	"time"

	core "github.com/kilianp07/emsplanner/core/metrics"
	eco "github.com/kilianp07/emsplanner/core/metrics/eco"
	"github.com/prometheus/client_golang/prometheus"
)

// EcoSink aggregates per-slot grid economics into daily ecological KPIs.
type EcoSink struct {
	store    eco.Store
	factor   float64
	imported *prometheus.GaugeVec
	ratio    *prometheus.GaugeVec
	co2      *prometheus.GaugeVec
}

// NewEcoSink creates a sink with Prometheus gauges registered on reg.
func NewEcoSink(store eco.Store, factor float64, reg prometheus.Registerer) *EcoSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	imp := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ems_daily_imported_energy_kwh",
		Help: "Daily imported energy from the grid",
	}, []string{"day"})
	ratio := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ems_daily_self_consumption_ratio",
		Help: "Daily ratio of exported to imported energy",
	}, []string{"day"})
	co2 := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ems_daily_co2_avoided_grams",
		Help: "Daily CO2 avoided by exported energy",
	}, []string{"day"})
	reg.MustRegister(imp, ratio, co2)
	return &EcoSink{store: store, factor: factor, imported: imp, ratio: ratio, co2: co2}
}

// RecordPlan satisfies core/metrics.MetricsSink; the eco sink only cares
// about per-slot economics.
func (s *EcoSink) RecordPlan(core.PlanResult) error { return nil }

// RecordEco aggregates each slot's realized import/export/cost into the
// record for its day and updates the daily gauges.
func (s *EcoSink) RecordEco(slots []core.SlotEconomics) error {
	touched := map[time.Time]struct{}{}
	for _, sl := range slots {
		dt := sl.DurationS / 3600
		rec := eco.Record{
			Date:        sl.Start,
			ImportedKWh: sl.GridImportKW * dt,
			ExportedKWh: sl.GridExportKW * dt,
			CostEUR:     sl.SegmentCostEUR,
		}
		if err := s.store.Add(rec); err != nil {
			return err
		}
		touched[eco.Day(sl.Start)] = struct{}{}
	}
	for day := range touched {
		records, err := s.store.Query(day, day)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}
		rr := records[0]
		dayStr := day.Format("2006-01-02")
		s.imported.WithLabelValues(dayStr).Set(rr.ImportedKWh)
		s.ratio.WithLabelValues(dayStr).Set(rr.SelfConsumptionRatio())
		s.co2.WithLabelValues(dayStr).Set(rr.CO2Avoided(s.factor))
	}
	return nil
}
