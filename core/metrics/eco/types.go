package eco

import "time"

// Record aggregates ecological and cost metrics for a single day.
type Record struct {
	Date        time.Time
	ImportedKWh float64
	ExportedKWh float64
	CostEUR     float64
}

// CO2Avoided returns the grams of CO2 avoided by exported energy using the
// emission factor.
func (r Record) CO2Avoided(factor float64) float64 {
	return r.ExportedKWh * factor
}

// SelfConsumptionRatio returns the ratio of exported to imported energy.
func (r Record) SelfConsumptionRatio() float64 {
	if r.ImportedKWh == 0 {
		if r.ExportedKWh == 0 {
			return 0
		}
		return r.ExportedKWh
	}
	return r.ExportedKWh / r.ImportedKWh
}
