// Package planner orchestrates one receding-horizon planning cycle: resolve
// forecasts, build the horizon, build the MILP, solve it, and extract a
// typed Plan. It holds no state across invocations; every cycle is a pure
// transformation of (config, resolved inputs, now).
package planner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/emsplanner/core/ems"
	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	coreevents "github.com/kilianp07/emsplanner/core/events"
	"github.com/kilianp07/emsplanner/core/horizon"
	coremetrics "github.com/kilianp07/emsplanner/core/metrics"
	"github.com/kilianp07/emsplanner/core/milp"
	"github.com/kilianp07/emsplanner/core/milp/solver"
	"github.com/kilianp07/emsplanner/core/plan"
	"github.com/kilianp07/emsplanner/core/plant"
	"github.com/kilianp07/emsplanner/core/sourceresolver"
	"github.com/kilianp07/emsplanner/infra/logger"
	"github.com/kilianp07/emsplanner/internal/eventbus"
)

// Config parametrizes one Plan invocation.
type Config struct {
	Horizon horizon.Config
	EMS     ems.Config

	// Metrics and Events are optional; a nil value disables that
	// side-effect.
	Metrics coremetrics.MetricsSink
	Events  eventbus.EventBus

	Log logger.Logger
}

// Plan runs one full planning cycle for plant p at instant now, resolving
// forecasts through resolver and solving the built MILP with slv.
//
// Cancellation is cooperative and checked exactly once, immediately before
// the solver is invoked: resolution, horizon/MILP construction, and plan
// extraction are not interrupted mid-flight.
func Plan(ctx context.Context, cfg Config, now time.Time, resolver sourceresolver.Resolver, p plant.Plant, slv solver.Solver) (*plan.Plan, error) {
	log := cfg.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	runID := uuid.NewString()

	resolved, err := ems.ResolveForecasts(ctx, resolver, p, cfg.Horizon.MinHorizonMinutes)
	if err != nil {
		cfg.publishFailure(runID, now, err)
		return nil, err
	}

	hCfg := cfg.Horizon
	hCfg.MaxCoverageMinutes = resolved.MaxCoverageMinutes
	h, err := horizon.Build(now, hCfg)
	if err != nil {
		cfg.publishFailure(runID, now, err)
		return nil, err
	}

	emsCfg := cfg.EMS
	emsCfg.Now = now
	prob, idx, err := ems.Build(h, p, resolved, emsCfg)
	if err != nil {
		cfg.publishFailure(runID, now, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		cfg.publishFailure(runID, now, err)
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "planning cycle cancelled before solve")
	}

	solveStart := time.Now()
	sol, err := slv.Solve(ctx, prob)
	if err != nil {
		cfg.publishFailure(runID, now, err)
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "solver invocation failed")
	}
	solveDuration := time.Since(solveStart)

	if sol.Status == milp.StatusInfeasible {
		err := plannererrors.New(plannererrors.SolverInfeasible, "milp proved infeasible")
		cfg.publishFailure(runID, now, err)
		if rec, ok := cfg.Metrics.(coremetrics.InfeasibleRecorder); ok {
			_ = rec.RecordInfeasible(coremetrics.InfeasibleEvent{GeneratedAt: now, Reason: err.Error()})
		}
		return nil, err
	}
	if sol.Status != milp.StatusOptimal {
		err := plannererrors.New(plannererrors.SolverError, "solver returned status %q", sol.Status)
		cfg.publishFailure(runID, now, err)
		return nil, err
	}

	result, err := plan.Extract(sol, h, idx, p, now)
	if err != nil {
		cfg.publishFailure(runID, now, err)
		return nil, err
	}

	log.Debugw("plan generated", map[string]any{"run_id": runID, "slots": h.N(), "objective": result.Objective})

	if cfg.Metrics != nil {
		_ = cfg.Metrics.RecordPlan(coremetrics.PlanResult{
			GeneratedAt:   now,
			Status:        result.Status,
			Horizon:       h.N(),
			Objective:     result.Objective,
			SolveDuration: solveDuration,
		})
		if rec, ok := cfg.Metrics.(coremetrics.EcoRecorder); ok {
			_ = rec.RecordEco(ecoSlots(result.Slots))
		}
	}
	if cfg.Events != nil {
		cfg.Events.Publish(coreevents.PlanGenerated{
			RunID:         runID,
			GeneratedAt:   now,
			Horizon:       h.N(),
			Objective:     result.Objective,
			SolveDuration: solveDuration,
		})
	}

	return result, nil
}

func (cfg Config) publishFailure(runID string, now time.Time, err error) {
	if cfg.Events != nil {
		cfg.Events.Publish(coreevents.PlanFailed{RunID: runID, GeneratedAt: now, Err: err})
	}
}

func ecoSlots(slots []plan.SlotPlan) []coremetrics.SlotEconomics {
	out := make([]coremetrics.SlotEconomics, len(slots))
	for i, s := range slots {
		out[i] = coremetrics.SlotEconomics{
			Start:          s.Start,
			DurationS:      s.DurationS,
			GridImportKW:   s.GridImportKW,
			GridExportKW:   s.GridExportKW,
			SegmentCostEUR: s.SegmentCost,
		}
	}
	return out
}
