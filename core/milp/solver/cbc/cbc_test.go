package cbc

import (
	"os"
	"strings"
	"testing"

	"github.com/kilianp07/emsplanner/core/milp"
)

func TestWriteLPFileProducesExpectedSections(t *testing.T) {
	p := &milp.Problem{}
	x0 := p.AddVariable(milp.Variable{Name: "x0", Kind: milp.Binary})
	x1 := p.AddVariable(milp.Variable{Name: "x1", UpperBound: 10})
	p.AddObjectiveTerm(x0, -3)
	p.AddObjectiveTerm(x1, 2)
	p.AddConstraint(milp.Constraint{
		Terms: []milp.Term{{Var: x0, Coef: 2}, {Var: x1, Coef: 1}},
		Sense: milp.LE,
		RHS:   4,
	})

	f, err := os.CreateTemp("", "cbc-test-*.lp")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	if err := writeLPFile(f, p); err != nil {
		t.Fatalf("writeLPFile: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	content := string(data)
	for _, want := range []string{"Minimize", "Subject To", "Bounds", "Binary", "End", "v0", "v1"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected lp file to contain %q, got:\n%s", want, content)
		}
	}
}

func TestParseSolutionFileOptimal(t *testing.T) {
	p := &milp.Problem{}
	p.AddVariable(milp.Variable{Name: "x0"})
	p.AddVariable(milp.Variable{Name: "x1"})

	f, err := os.CreateTemp("", "cbc-sol-*.sol")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	f.WriteString("Optimal - objective value 12.5\n 0 v0 3 0\n 1 v1 4 0\n")
	f.Close()

	sol, err := parseSolutionFile(f.Name(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Status != milp.StatusOptimal {
		t.Fatalf("expected optimal, got %v", sol.Status)
	}
	if sol.Objective != 12.5 {
		t.Fatalf("expected objective 12.5, got %v", sol.Objective)
	}
	if sol.Value(0) != 3 || sol.Value(1) != 4 {
		t.Fatalf("expected values [3,4], got %v", sol.Values)
	}
}

func TestParseSolutionFileInfeasible(t *testing.T) {
	p := &milp.Problem{}
	f, err := os.CreateTemp("", "cbc-sol-*.sol")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	f.WriteString("Infeasible\n")
	f.Close()

	sol, err := parseSolutionFile(f.Name(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Status != milp.StatusInfeasible {
		t.Fatalf("expected infeasible, got %v", sol.Status)
	}
}
