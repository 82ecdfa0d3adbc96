// Package solver defines the pluggable backend Solver interface. The MILP
// builder (core/ems) and planner (core/planner) depend only on this
// interface, never on a specific backend's API, per the solver-integration
// design note: CBC, HiGHS, GLPK, or a native MILP library are all
// acceptable implementations.
package solver

import (
	"context"

	"github.com/kilianp07/emsplanner/core/milp"
)

// Solver solves a Problem and returns its Solution.
type Solver interface {
	Solve(ctx context.Context, p *milp.Problem) (*milp.Solution, error)
}
