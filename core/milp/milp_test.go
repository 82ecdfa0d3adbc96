package milp

import "testing"

func TestAddVariableFixesBinaryBounds(t *testing.T) {
	p := &Problem{}
	idx := p.AddVariable(Variable{Name: "b", Kind: Binary, LowerBound: -5, UpperBound: 5})
	if p.Variables[idx].LowerBound != 0 || p.Variables[idx].UpperBound != 1 {
		t.Fatalf("expected binary bounds [0,1], got [%v,%v]", p.Variables[idx].LowerBound, p.Variables[idx].UpperBound)
	}
}

func TestAddObjectiveTermAccumulates(t *testing.T) {
	p := &Problem{}
	idx := p.AddVariable(Variable{Name: "x", UpperBound: 10})
	p.AddObjectiveTerm(idx, 2.0)
	p.AddObjectiveTerm(idx, 3.0)
	dense := p.ObjectiveDense()
	if dense[idx] != 5.0 {
		t.Fatalf("expected accumulated coefficient 5, got %v", dense[idx])
	}
}

func TestSolutionValueOutOfRange(t *testing.T) {
	s := &Solution{Values: []float64{1, 2}}
	if s.Value(5) != 0 {
		t.Fatalf("expected 0 for out-of-range index")
	}
	if s.Value(1) != 2 {
		t.Fatalf("expected 2, got %v", s.Value(1))
	}
}
