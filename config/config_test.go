package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `server:
  data_dir: "/tmp/ems-data"
ems:
  interval_duration: 5
  num_intervals: 24
  high_res_timestep_minutes: 5
  high_res_horizon_minutes: 60
  time_zone: "Europe/Paris"
plant:
  grid:
    max_import_kw: 10
    max_export_kw: 6
    realtime_price_import: "sensor.price_import"
    realtime_price_export: "sensor.price_export"
    price_import_forecast: "sensor.price_import_forecast"
    price_export_forecast: "sensor.price_export_forecast"
    import_forbidden_periods:
      - start: "17:00"
        end: "20:00"
  load:
    realtime_load_power: "sensor.load_power"
    load_forecast: "sensor.load_forecast"
  inverters:
    - name: "roof"
      peak_power_kw: 5
      curtailment_mode: "load_aware"
      forecast: "sensor.pv_forecast"
      battery:
        capacity_kwh: 10
        min_soc_pct: 10
        max_soc_pct: 95
        reserve_soc_pct: 20
        state_of_charge_pct: "sensor.battery_soc"
        realtime_power: "sensor.battery_power"
loads:
  - load_type: "controlled_ev"
    ev:
      name: "car"
      min_power_kw: 0
      max_power_kw: 7.4
      energy_kwh: 50
      connected: "sensor.ev_connected"
      realtime_power: "sensor.ev_power"
      state_of_charge_pct: "sensor.ev_soc"
      soc_incentives:
        - target_soc_pct: 50
          incentive: 0.2
        - target_soc_pct: 80
          incentive: 0.05
metrics:
  sinks:
    - type: "nop"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.data_dir", cfg.Server.DataDir, "/tmp/ems-data"},
		{"ems.interval_duration", cfg.EMS.IntervalDurationMinutes, 5},
		{"ems.num_intervals", cfg.EMS.NumIntervals, 24},
		{"ems.high_res_timestep_minutes", cfg.EMS.HighResTimestepMinutes, 5},
		{"ems.time_zone", cfg.EMS.TimeZone, "Europe/Paris"},
		{"ems.min_horizon_minutes", cfg.EMS.MinHorizonMinutes(), 120},
		{"plant.grid.max_import_kw", cfg.Plant.Grid.MaxImportKW, 10.0},
		{"plant.grid.import_forbidden_periods", len(cfg.Plant.Grid.ImportForbiddenPeriods), 1},
		{"plant.inverters", len(cfg.Plant.Inverters), 1},
		{"plant.inverters[0].name", cfg.Plant.Inverters[0].Name, "roof"},
		{"plant.inverters[0].battery.capacity_kwh", cfg.Plant.Inverters[0].Battery.CapacityKWh, 10.0},
		{"plant.ev_loads", len(cfg.Plant.EvLoads), 1},
		{"plant.ev_loads[0].name", cfg.Plant.EvLoads[0].Name, "car"},
		{"plant.ev_loads[0].soc_incentives", len(cfg.Plant.EvLoads[0].SoCIncentives), 2},
		{"metrics.sinks", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported config format")
	}
}

func TestEMSConfigValidate(t *testing.T) {
	cfg := EMSConfig{IntervalDurationMinutes: 0, NumIntervals: 1}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error after defaults: %v", err)
	}

	invalid := EMSConfig{IntervalDurationMinutes: 5000, NumIntervals: 1}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected error for out-of-range interval_duration")
	}
}
