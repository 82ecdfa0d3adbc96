package events

import "time"

// PlanGenerated is published when a planning cycle produces a plan. RunID
// uniquely identifies the cycle so consumers that see cycles complete out
// of order can discard stale results.
type PlanGenerated struct {
	RunID         string
	GeneratedAt   time.Time
	Horizon       int
	Objective     float64
	SolveDuration time.Duration
}

// PlanFailed is published when a planning cycle fails before a plan could
// be produced, e.g. forecast coverage too short or the solver reporting
// infeasibility.
type PlanFailed struct {
	RunID       string
	GeneratedAt time.Time
	Err         error
}
