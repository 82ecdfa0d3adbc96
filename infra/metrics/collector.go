package metrics

import (
	"context"

	"github.com/kilianp07/emsplanner/core/events"
	coremetrics "github.com/kilianp07/emsplanner/core/metrics"
	"github.com/kilianp07/emsplanner/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// planning-cycle events. It exists for consumers that only have bus access
// (e.g. out-of-process dashboards), not a direct planner.Config.Metrics
// wiring; core/planner already records metrics synchronously for its own
// caller. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.PlanGenerated:
					_ = sink.RecordPlan(coremetrics.PlanResult{
						GeneratedAt:   e.GeneratedAt,
						Status:        "optimal",
						Horizon:       e.Horizon,
						Objective:     e.Objective,
						SolveDuration: e.SolveDuration,
					})
				case events.PlanFailed:
					if r, ok := sink.(coremetrics.InfeasibleRecorder); ok {
						_ = r.RecordInfeasible(coremetrics.InfeasibleEvent{
							GeneratedAt: e.GeneratedAt,
							Reason:      e.Err.Error(),
						})
					}
				}
			}
		}
	}()
}
