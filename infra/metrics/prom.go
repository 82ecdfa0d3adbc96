package metrics

import (
	coremetrics "github.com/kilianp07/emsplanner/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records planning-cycle outcomes as Prometheus metrics.
type PromSink struct {
	plansTotal      *prometheus.CounterVec
	planObjective   prometheus.Gauge
	planHorizon     prometheus.Gauge
	solveDuration   prometheus.Histogram
	infeasibleTotal prometheus.Counter
}

// NewPromSink registers planning metrics on the default Prometheus registerer.
// The Prometheus server is started separately on cfg.PrometheusAddr (see
// StartPromServer).
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	plansTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_plans_total",
		Help: "Total number of planning cycles by status",
	}, []string{"status"})
	objective := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ems_plan_objective",
		Help: "Objective value of the most recently generated plan",
	})
	horizon := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ems_plan_horizon_slots",
		Help: "Number of slots in the most recently generated plan's horizon",
	})
	solveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ems_plan_solve_duration_seconds",
		Help:    "Time spent inside the solver per planning cycle",
		Buckets: prometheus.DefBuckets,
	})
	infeasible := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ems_plans_infeasible_total",
		Help: "Total number of planning cycles that proved infeasible",
	})

	if err := registerOrReuse(reg, plansTotal, &plansTotal); err != nil {
		return nil, err
	}
	if err := registerOrReuseGauge(reg, objective, &objective); err != nil {
		return nil, err
	}
	if err := registerOrReuseGauge(reg, horizon, &horizon); err != nil {
		return nil, err
	}
	if err := registerOrReuseHistogram(reg, solveDuration, &solveDuration); err != nil {
		return nil, err
	}
	if err := registerOrReuseCounter(reg, infeasible, &infeasible); err != nil {
		return nil, err
	}

	return &PromSink{
		plansTotal:      plansTotal,
		planObjective:   objective,
		planHorizon:     horizon,
		solveDuration:   solveDuration,
		infeasibleTotal: infeasible,
	}, nil
}

// RecordPlan records one planning cycle's outcome.
func (s *PromSink) RecordPlan(result coremetrics.PlanResult) error {
	s.plansTotal.WithLabelValues(result.Status).Inc()
	s.planObjective.Set(result.Objective)
	s.planHorizon.Set(float64(result.Horizon))
	s.solveDuration.Observe(result.SolveDuration.Seconds())
	return nil
}

// RecordInfeasible increments the infeasible-cycle counter.
func (s *PromSink) RecordInfeasible(coremetrics.InfeasibleEvent) error {
	s.infeasibleTotal.Inc()
	return nil
}

func registerOrReuse(reg prometheus.Registerer, c *prometheus.CounterVec, out **prometheus.CounterVec) error {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*out = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	*out = c
	return nil
}

func registerOrReuseGauge(reg prometheus.Registerer, g prometheus.Gauge, out *prometheus.Gauge) error {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*out = are.ExistingCollector.(prometheus.Gauge)
			return nil
		}
		return err
	}
	*out = g
	return nil
}

func registerOrReuseHistogram(reg prometheus.Registerer, h prometheus.Histogram, out *prometheus.Histogram) error {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*out = are.ExistingCollector.(prometheus.Histogram)
			return nil
		}
		return err
	}
	*out = h
	return nil
}

func registerOrReuseCounter(reg prometheus.Registerer, c prometheus.Counter, out *prometheus.Counter) error {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*out = are.ExistingCollector.(prometheus.Counter)
			return nil
		}
		return err
	}
	*out = c
	return nil
}
