// Package config loads the application's YAML/JSON configuration file into
// a typed Config: koanf file provider, parser selected by extension, and
// "EMS_"-prefixed environment variables layered on top.
//
// Top-level keys are server/homeassistant/ems/plant/loads plus the
// metrics/publish/logging sections; homeassistant is accepted for schema
// compatibility but unused, since live Home-Assistant fetching is out of
// scope.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	coremetrics "github.com/kilianp07/emsplanner/core/metrics"
	"github.com/kilianp07/emsplanner/core/plantconfig"
	"github.com/kilianp07/emsplanner/infra/publish"
)

// ServerConfig carries the small amount of host-level metadata the planner
// service needs: where to write its output plan document. Host/Port are
// accepted for schema compatibility but otherwise unused, since the HTTP
// layer is out of scope.
type ServerConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DataDir string `json:"data_dir"`
}

// SetDefaults fills the standard host/port/data-dir defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}

// EMSConfig carries the receding-horizon schedule parameters: the base
// timestep, the number of intervals that define the minimum horizon, and
// the optional multi-resolution lead-in.
type EMSConfig struct {
	IntervalDurationMinutes int `json:"interval_duration" yaml:"interval_duration"`
	NumIntervals            int `json:"num_intervals" yaml:"num_intervals"`

	// HighResTimestepMinutes/HighResHorizonMinutes configure an optional
	// finer-grained lead-in at the start of the horizon; zero
	// disables it.
	HighResTimestepMinutes int `json:"high_res_timestep_minutes,omitempty" yaml:"high_res_timestep_minutes,omitempty"`
	HighResHorizonMinutes  int `json:"high_res_horizon_minutes,omitempty" yaml:"high_res_horizon_minutes,omitempty"`

	// TimeZone names the local zone used for import-forbidden and
	// EV-allowed-connect time windows; empty means the system's local zone.
	TimeZone string `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`

	// CBCPath, when set, selects the external CBC solver adapter over the
	// native branch-and-bound solver.
	CBCPath string `json:"cbc_path,omitempty" yaml:"cbc_path,omitempty"`
}

// SetDefaults fills the standard 5-minute/24-interval schedule defaults.
func (c *EMSConfig) SetDefaults() {
	if c.IntervalDurationMinutes == 0 {
		c.IntervalDurationMinutes = 5
	}
	if c.NumIntervals == 0 {
		c.NumIntervals = 24
	}
}

// Validate checks the EMS schedule parameters are in range.
func (c EMSConfig) Validate() error {
	if c.IntervalDurationMinutes < 1 || c.IntervalDurationMinutes > 1440 {
		return plannererrors.New(plannererrors.ConfigInvalid, "ems.interval_duration must be in [1,1440]")
	}
	if c.NumIntervals < 1 || c.NumIntervals > 10000 {
		return plannererrors.New(plannererrors.ConfigInvalid, "ems.num_intervals must be in [1,10000]")
	}
	return nil
}

// MinHorizonMinutes is the shortest horizon the planner must cover,
// matching interval_duration * num_intervals.
func (c EMSConfig) MinHorizonMinutes() int {
	return c.IntervalDurationMinutes * c.NumIntervals
}

// Config is the application's fully parsed configuration.
type Config struct {
	Server        ServerConfig            `json:"server"`
	HomeAssistant map[string]any          `json:"homeassistant"`
	EMS           EMSConfig               `json:"ems"`
	Plant         plantconfig.PlantConfig `json:"plant"`
	Loads         []LoadConfig            `json:"loads"`

	Metrics coremetrics.Config `json:"metrics"`
	Publish publish.Config     `json:"publish"`
	Logging LoggingConfig      `json:"logging"`
}

// LoadConfig is one entry of the "loads" list, discriminated by
// load_type. Only the controlled_ev variant carries planner-visible state;
// nonvariable_load entries are accepted for schema compatibility and
// dropped.
type LoadConfig struct {
	LoadType string                             `json:"load_type"`
	EV       plantconfig.ControlledEvLoadConfig `json:"ev,omitempty"`
}

// evLoads filters Loads down to the controlled_ev entries and converts them
// to the plant config shape.
func (c *Config) evLoads() []plantconfig.ControlledEvLoadConfig {
	out := make([]plantconfig.ControlledEvLoadConfig, 0, len(c.Loads))
	for _, l := range c.Loads {
		if l.LoadType != "controlled_ev" {
			continue
		}
		out = append(out, l.EV)
	}
	return out
}

// Load reads and parses the configuration file at path, selecting a parser
// by file extension, then layers "EMS_"-prefixed environment variables on
// top.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("EMS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ems_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}

	cfg.Server.SetDefaults()
	cfg.EMS.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.EMS.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}

	cfg.Plant.EvLoads = cfg.evLoads()

	return &cfg, nil
}
