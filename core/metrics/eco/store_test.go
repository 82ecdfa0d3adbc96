package eco

import (
	"testing"
	"time"
)

func TestMemoryStoreAggregation(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Now())
	if err := s.Add(Record{Date: d, ImportedKWh: 2, ExportedKWh: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Record{Date: d.Add(2 * time.Hour), ImportedKWh: 1, ExportedKWh: 0.5}); err != nil {
		t.Fatalf("add2: %v", err)
	}
	recs, err := s.Query(d, d)
	if err != nil || len(recs) != 1 {
		t.Fatalf("query: %v len=%d", err, len(recs))
	}
	if recs[0].ImportedKWh != 3 {
		t.Fatalf("expected imported=3 got %f", recs[0].ImportedKWh)
	}
	if recs[0].ExportedKWh != 1.5 {
		t.Fatalf("expected exported=1.5 got %f", recs[0].ExportedKWh)
	}
}

func TestMemoryStoreQueryExcludesOutsideRange(t *testing.T) {
	s := NewMemoryStore()
	today := Day(time.Now())
	yesterday := today.Add(-24 * time.Hour)
	if err := s.Add(Record{Date: today, ImportedKWh: 1}); err != nil {
		t.Fatalf("add today: %v", err)
	}
	if err := s.Add(Record{Date: yesterday, ImportedKWh: 5}); err != nil {
		t.Fatalf("add yesterday: %v", err)
	}
	recs, err := s.Query(today, today)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 1 || recs[0].ImportedKWh != 1 {
		t.Fatalf("expected only today's record, got %+v", recs)
	}
}

func TestRecordCalculations(t *testing.T) {
	r := Record{ImportedKWh: 4, ExportedKWh: 2}
	if got := r.SelfConsumptionRatio(); got != 0.5 {
		t.Fatalf("self_consumption_ratio = %v, want 0.5", got)
	}
	if got := r.CO2Avoided(10); got != 20 {
		t.Fatalf("co2_avoided = %v, want 20", got)
	}
}

func TestRecordSelfConsumptionRatioZeroImport(t *testing.T) {
	if got := (Record{ExportedKWh: 3}).SelfConsumptionRatio(); got != 3 {
		t.Fatalf("expected 3 when imported is zero, got %v", got)
	}
	if got := (Record{}).SelfConsumptionRatio(); got != 0 {
		t.Fatalf("expected 0 when both are zero, got %v", got)
	}
}
