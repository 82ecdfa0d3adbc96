// Package app wires the planner core to its ambient collaborators
// (configuration, source resolution, metrics, MQTT publish) into the
// one-shot CLI entrypoints cmd exposes.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilianp07/emsplanner/config"
	"github.com/kilianp07/emsplanner/core/ems"
	"github.com/kilianp07/emsplanner/core/horizon"
	coremetrics "github.com/kilianp07/emsplanner/core/metrics"
	"github.com/kilianp07/emsplanner/core/milp/solver"
	"github.com/kilianp07/emsplanner/core/milp/solver/bnb"
	"github.com/kilianp07/emsplanner/core/milp/solver/cbc"
	"github.com/kilianp07/emsplanner/core/plan"
	"github.com/kilianp07/emsplanner/core/planner"
	"github.com/kilianp07/emsplanner/core/sourceresolver"
	"github.com/kilianp07/emsplanner/core/sourceresolver/fixture"
	"github.com/kilianp07/emsplanner/infra/logger"
	"github.com/kilianp07/emsplanner/infra/metrics"
	"github.com/kilianp07/emsplanner/infra/publish"
	"github.com/kilianp07/emsplanner/internal/eventbus"
)

// Service holds everything a planning invocation needs beyond the plant
// topology and resolved inputs: the loaded configuration, a metrics sink,
// an optional MQTT publisher, and the selected solver backend.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	bus       eventbus.EventBus
	metrics   coremetrics.MetricsSink
	publisher *publish.Publisher
	solve     solver.Solver
}

// New builds a Service from cfg: it registers the metrics sinks cfg.Metrics
// declares, dials the MQTT publisher when cfg.Publish.Broker is set, and
// picks the CBC subprocess solver when cfg.EMS.CBCPath is configured,
// falling back to the native branch-and-bound solver otherwise.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("planner")

	sink, err := coreMetricsSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	var pub *publish.Publisher
	if cfg.Publish.Broker != "" {
		pub, err = publish.New(cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
	}

	var slv solver.Solver
	if cfg.EMS.CBCPath != "" {
		slv = cbc.New(cfg.EMS.CBCPath)
	} else {
		slv = bnb.New()
	}

	return &Service{
		cfg:       cfg,
		log:       logg,
		bus:       eventbus.New(),
		metrics:   sink,
		publisher: pub,
		solve:     slv,
	}, nil
}

// Close releases the publisher's MQTT connection, if one was opened.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	return nil
}

// resolver returns the source resolver to use for one invocation. Only the
// fixture-replay resolver is wired in-core (live Home-Assistant fetching
// is out of scope); fixturePath must point at a
// fixture document in the shape core/sourceresolver/fixture.Document
// documents.
func (s *Service) resolver(fixturePath string) (sourceresolver.Resolver, error) {
	return fixture.Load(fixturePath)
}

// Solve runs a single receding-horizon planning cycle against the
// configured plant, using fixturePath to resolve realtime scalars and
// forecasts, and writes the resulting plan to
// ${server.data_dir}/ems_plan.json. It also publishes the plan over MQTT
// when a publisher is configured.
func (s *Service) Solve(ctx context.Context, fixturePath string) (*plan.Plan, error) {
	res, err := s.resolver(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}
	p, err := s.cfg.Plant.Resolve(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("resolve plant: %w", err)
	}

	loc := s.location()
	now := time.Now()
	pcfg := planner.Config{
		Horizon: horizon.Config{
			TimestepMinutes:        s.cfg.EMS.IntervalDurationMinutes,
			HighResTimestepMinutes: s.cfg.EMS.HighResTimestepMinutes,
			HighResHorizonMinutes:  s.cfg.EMS.HighResHorizonMinutes,
			MinHorizonMinutes:      s.cfg.EMS.MinHorizonMinutes(),
			Location:               loc,
		},
		EMS: ems.Config{
			Tunables: ems.DefaultTunables(),
			Location: loc,
		},
		Metrics: s.metrics,
		Events:  s.bus,
		Log:     s.log,
	}

	result, err := planner.Plan(ctx, pcfg, now, res, p, s.solve)
	if err != nil {
		return nil, err
	}

	if err := s.writePlan(result); err != nil {
		return nil, fmt.Errorf("write plan: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(result); err != nil {
			s.log.Errorf("publish plan: %v", err)
		}
	}
	return result, nil
}

func (s *Service) writePlan(p *plan.Plan) error {
	dataDir := s.cfg.Server.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, "ems_plan.json"), payload, 0o644)
}

func (s *Service) location() *time.Location {
	if s.cfg.EMS.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.cfg.EMS.TimeZone)
	if err != nil {
		s.log.Warnf("unknown ems.time_zone %q, falling back to local: %v", s.cfg.EMS.TimeZone, err)
		return time.Local
	}
	return loc
}

// coreMetricsSink builds the configured metrics sink(s) through the
// core/metrics registry (infra/metrics.init registers the "prometheus",
// "eco", "influx", and "nop" module types) and, when configured, starts the
// Prometheus scrape endpoint in the background.
func coreMetricsSink(cfg *config.Config) (coremetrics.MetricsSink, error) {
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.PrometheusAddr != "" {
		go func() {
			if err := metrics.StartPromServer(context.Background(), cfg.Metrics.PrometheusAddr); err != nil {
				logger.New("metrics").Errorf("prometheus server: %v", err)
			}
		}()
	}
	return sink, nil
}
