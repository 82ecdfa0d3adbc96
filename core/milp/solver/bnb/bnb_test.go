package bnb

import (
	"context"
	"math"
	"testing"

	"github.com/kilianp07/emsplanner/core/milp"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestSolveContinuousLowerBound(t *testing.T) {
	p := &milp.Problem{}
	x := p.AddVariable(milp.Variable{Name: "x", LowerBound: 2, UpperBound: 10})
	p.AddObjectiveTerm(x, 1)

	sol, err := New().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Status != milp.StatusOptimal {
		t.Fatalf("expected optimal, got %v", sol.Status)
	}
	if !approxEqual(sol.Value(x), 2) {
		t.Fatalf("expected x=2, got %v", sol.Value(x))
	}
}

func TestSolveKnapsackPicksHigherValueItem(t *testing.T) {
	p := &milp.Problem{}
	x0 := p.AddVariable(milp.Variable{Name: "x0", Kind: milp.Binary})
	x1 := p.AddVariable(milp.Variable{Name: "x1", Kind: milp.Binary})
	p.AddObjectiveTerm(x0, -3)
	p.AddObjectiveTerm(x1, -4)
	p.AddConstraint(milp.Constraint{
		Terms: []milp.Term{{Var: x0, Coef: 2}, {Var: x1, Coef: 3}},
		Sense: milp.LE,
		RHS:   4,
	})

	sol, err := New().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Status != milp.StatusOptimal {
		t.Fatalf("expected optimal, got %v", sol.Status)
	}
	if !approxEqual(sol.Value(x1), 1) || !approxEqual(sol.Value(x0), 0) {
		t.Fatalf("expected x0=0,x1=1, got x0=%v x1=%v", sol.Value(x0), sol.Value(x1))
	}
	if !approxEqual(sol.Objective, -4) {
		t.Fatalf("expected objective -4, got %v", sol.Objective)
	}
}

func TestSolveInfeasible(t *testing.T) {
	p := &milp.Problem{}
	x := p.AddVariable(milp.Variable{Name: "x", LowerBound: 5, UpperBound: 10})
	p.AddConstraint(milp.Constraint{
		Terms: []milp.Term{{Var: x, Coef: 1}},
		Sense: milp.LE,
		RHS:   1,
	})
	p.AddObjectiveTerm(x, 1)

	sol, err := New().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Status != milp.StatusInfeasible {
		t.Fatalf("expected infeasible, got %v", sol.Status)
	}
}

func TestSolveRespectsCancellation(t *testing.T) {
	p := &milp.Problem{}
	p.AddVariable(milp.Variable{Name: "x", UpperBound: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Solve(ctx, p); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
