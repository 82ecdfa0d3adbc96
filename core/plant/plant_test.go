package plant

import (
	"testing"
	"time"
)

func TestTimeWindowContains(t *testing.T) {
	w := TimeWindow{StartMinute: 17 * 60, EndMinute: 20 * 60}
	in := time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)
	out := time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC)
	if !w.Contains(in) {
		t.Fatalf("expected %v to be inside window", in)
	}
	if w.Contains(out) {
		t.Fatalf("expected %v to be outside window", out)
	}
}

func TestTimeWindowWrapsMidnight(t *testing.T) {
	w := TimeWindow{StartMinute: 22 * 60, EndMinute: 6 * 60}
	late := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	early := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	noon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !w.Contains(late) || !w.Contains(early) {
		t.Fatalf("expected wrap-around window to contain %v and %v", late, early)
	}
	if w.Contains(noon) {
		t.Fatalf("expected noon to be outside wrap-around window")
	}
}

func TestBatteryValidate(t *testing.T) {
	valid := Battery{
		CapacityKWh: 10, StorageEfficiencyPct: 95,
		MinSoCPct: 10, MaxSoCPct: 100, ReserveSoCPct: 20,
		RealtimeSoCPct: 50, TerminalMode: TerminalSoCHard,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid battery, got %v", err)
	}

	invalid := valid
	invalid.ReserveSoCPct = 5 // below min_soc
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected reserve below min_soc to be rejected")
	}

	noCapacity := valid
	noCapacity.CapacityKWh = 0
	if err := noCapacity.Validate(); err == nil {
		t.Fatal("expected zero capacity to be rejected")
	}
}

func TestBatteryEnergyHelpers(t *testing.T) {
	b := Battery{CapacityKWh: 10, MinSoCPct: 10, MaxSoCPct: 90, ReserveSoCPct: 20, RealtimeSoCPct: 50}
	if got := b.EnergyKWh(); got != 5 {
		t.Fatalf("expected 5 got %v", got)
	}
	if got := b.MinEnergyKWh(); got != 1 {
		t.Fatalf("expected 1 got %v", got)
	}
	if got := b.MaxEnergyKWh(); got != 9 {
		t.Fatalf("expected 9 got %v", got)
	}
	if got := b.ReserveEnergyKWh(); got != 2 {
		t.Fatalf("expected 2 got %v", got)
	}
}

func TestInverterValidateRejectsUnknownCurtailmentMode(t *testing.T) {
	inv := Inverter{ID: "inv1", CurtailmentMode: "bogus"}
	if err := inv.Validate(); err == nil {
		t.Fatal("expected unknown curtailment mode to be rejected")
	}
}

func TestEvLoadValidateRejectsNonMonotonicIncentives(t *testing.T) {
	ev := ControlledEvLoad{
		ID: "ev1", MaxPowerKW: 7, CapacityKWh: 50,
		SoCIncentives: []SoCIncentive{{TargetPct: 80, RewardPerKWh: 0.05}, {TargetPct: 50, RewardPerKWh: 0.2}},
	}
	if err := ev.Validate(); err == nil {
		t.Fatal("expected non-decreasing incentive violation to be rejected")
	}
}

func TestPlantValidateRejectsDuplicateInverterIDs(t *testing.T) {
	p := Plant{
		Grid: Grid{ImportCapKW: 10, ExportCapKW: 10},
		Inverters: []Inverter{
			{ID: "inv1", CurtailmentMode: CurtailmentNone},
			{ID: "inv1", CurtailmentMode: CurtailmentNone},
		},
	}
	if err := p.Validate(); err == nil {
		t.Fatal("expected duplicate inverter id to be rejected")
	}
}

func TestPlantBatteriesFiltersInvertersWithoutBattery(t *testing.T) {
	p := Plant{
		Inverters: []Inverter{
			{ID: "inv1"},
			{ID: "inv2", Battery: &Battery{CapacityKWh: 5, StorageEfficiencyPct: 90, MaxSoCPct: 100, TerminalMode: TerminalSoCHard}},
		},
	}
	got := p.Batteries()
	if len(got) != 1 || got[0].ID != "inv2" {
		t.Fatalf("expected only inv2, got %+v", got)
	}
}
