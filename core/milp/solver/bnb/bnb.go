// Package bnb implements a native branch-and-bound MILP solver: LP
// relaxations are solved with gonum's simplex implementation and binary
// variables are branched on until an integral incumbent is found. This
// generalizes the standard-form LP construction used for continuous
// dispatch allocation into a full mixed-integer solver, requiring no
// external process.
package bnb

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	gonumlp "gonum.org/v1/gonum/optimize/convex/lp"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/milp"
)

const (
	defaultIntegerTolerance = 1e-6
	defaultMaxNodes         = 20000
	simplexTolerance        = 1e-7
)

// Solver is the default MILP backend.
type Solver struct {
	// MaxNodes bounds the branch-and-bound search; zero uses a built-in
	// default.
	MaxNodes int
	// IntegerTolerance is how close a binary's relaxed value must be to 0
	// or 1 to be accepted as integral; zero uses a built-in default.
	IntegerTolerance float64
}

// New returns a Solver with default limits.
func New() *Solver {
	return &Solver{MaxNodes: defaultMaxNodes, IntegerTolerance: defaultIntegerTolerance}
}

type bounds struct {
	lb []float64
	ub []float64
}

func (b bounds) clone() bounds {
	return bounds{lb: append([]float64(nil), b.lb...), ub: append([]float64(nil), b.ub...)}
}

// Solve runs branch-and-bound to optimality (within MaxNodes). Cancellation
// is checked once before the search begins, per the planner's
// before-invocation-only cancellation contract; it is not checked between
// nodes.
func (s *Solver) Solve(ctx context.Context, p *milp.Problem) (*milp.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "context cancelled before solve")
	}

	n := len(p.Variables)
	root := bounds{lb: make([]float64, n), ub: make([]float64, n)}
	for i, v := range p.Variables {
		root.lb[i] = v.LowerBound
		root.ub[i] = v.UpperBound
	}

	maxNodes := s.MaxNodes
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}
	tol := s.IntegerTolerance
	if tol <= 0 {
		tol = defaultIntegerTolerance
	}

	stack := []bounds{root}
	var best *milp.Solution
	nodes := 0

	for len(stack) > 0 {
		nodes++
		if nodes > maxNodes {
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		values, objective, feasible := solveRelaxation(p, node)
		if !feasible {
			continue
		}
		if best != nil && objective >= best.Objective-1e-9 {
			continue
		}

		branchVar := firstFractionalBinary(p, values, tol)
		if branchVar < 0 {
			best = &milp.Solution{Status: milp.StatusOptimal, Objective: objective, Values: values}
			continue
		}

		down := node.clone()
		down.ub[branchVar] = 0
		up := node.clone()
		up.lb[branchVar] = 1
		stack = append(stack, down, up)
	}

	if best == nil {
		if nodes > maxNodes {
			return nil, plannererrors.New(plannererrors.SolverError,
				"no integral solution within %d branch-and-bound nodes", maxNodes)
		}
		return &milp.Solution{Status: milp.StatusInfeasible}, nil
	}
	return best, nil
}

// solveRelaxation solves the continuous relaxation of p under node's
// variable bounds. Bounds are encoded as inequality rows so free variables
// (no lower bound) pass straight through to the general-form LP; gonum's
// Convert then splits every variable into positive and negative parts, and
// the original value is recovered as sol[i] - sol[n+i]. feasible is false
// both for a genuinely infeasible region and for any numerical failure the
// simplex reports; both prune the branch.
func solveRelaxation(p *milp.Problem, b bounds) (values []float64, objective float64, feasible bool) {
	n := len(p.Variables)
	c := p.ObjectiveDense()

	var gRows, aRows [][]float64
	var hVals, bVals []float64

	addRow := func(rows *[][]float64, vals *[]float64, terms []milp.Term, sign, rhs float64) {
		row := make([]float64, n)
		for _, t := range terms {
			row[t.Var] += t.Coef * sign
		}
		*rows = append(*rows, row)
		*vals = append(*vals, rhs*sign)
	}

	for _, con := range p.Constraints {
		switch con.Sense {
		case milp.LE:
			addRow(&gRows, &hVals, con.Terms, 1, con.RHS)
		case milp.GE:
			addRow(&gRows, &hVals, con.Terms, -1, con.RHS)
		case milp.EQ:
			addRow(&aRows, &bVals, con.Terms, 1, con.RHS)
		}
	}

	for i := 0; i < n; i++ {
		if b.ub[i] < b.lb[i]-1e-9 {
			return nil, 0, false
		}
		if !math.IsInf(b.lb[i], -1) {
			row := make([]float64, n)
			row[i] = -1
			gRows = append(gRows, row)
			hVals = append(hVals, -b.lb[i])
		}
		if !math.IsInf(b.ub[i], 1) {
			row := make([]float64, n)
			row[i] = 1
			gRows = append(gRows, row)
			hVals = append(hVals, b.ub[i])
		}
	}

	cStd, aStd, bStd := gonumlp.Convert(c, rowsToDense(gRows, n), hVals, rowsToDense(aRows, n), bVals)
	opt, sol, err := gonumlp.Simplex(cStd, aStd, bStd, simplexTolerance, nil)
	if err != nil {
		return nil, 0, false
	}

	values = make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = sol[i] - sol[n+i]
	}
	return values, opt, true
}

func rowsToDense(rows [][]float64, n int) mat.Matrix {
	if len(rows) == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), n, nil)
	for i, row := range rows {
		for j, v := range row {
			if v != 0 {
				m.Set(i, j, v)
			}
		}
	}
	return m
}

func firstFractionalBinary(p *milp.Problem, values []float64, tol float64) int {
	for i, v := range p.Variables {
		if v.Kind != milp.Binary {
			continue
		}
		frac := values[i] - math.Round(values[i])
		if frac > tol || frac < -tol {
			return i
		}
	}
	return -1
}
