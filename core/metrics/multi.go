package metrics

// MultiSink fans out planning-cycle results to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the result to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlan(result PlanResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(result); err != nil {
			return err
		}
	}
	return nil
}

// RecordEco forwards per-slot economics to sinks that support it.
func (m *MultiSink) RecordEco(slots []SlotEconomics) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(EcoRecorder); ok {
			if err := rec.RecordEco(slots); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordInfeasible forwards infeasible-cycle events to sinks that support it.
func (m *MultiSink) RecordInfeasible(ev InfeasibleEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(InfeasibleRecorder); ok {
			if err := rec.RecordInfeasible(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
