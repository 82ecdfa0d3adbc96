// Package cbc adapts an external CBC solver binary (invoked as a
// subprocess against a generated LP file) to the solver.Solver interface.
// It is selected when a CBC binary path is configured; the planner falls
// back to the native bnb solver otherwise.
package cbc

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	plannererrors "github.com/kilianp07/emsplanner/core/errors"
	"github.com/kilianp07/emsplanner/core/milp"
)

// Solver shells out to a cbc binary for each Solve call.
type Solver struct {
	// BinaryPath is the path to the cbc executable.
	BinaryPath string
}

// New returns a Solver configured to invoke binaryPath.
func New(binaryPath string) *Solver {
	return &Solver{BinaryPath: binaryPath}
}

func (s *Solver) Solve(ctx context.Context, p *milp.Problem) (*milp.Solution, error) {
	if s.BinaryPath == "" {
		return nil, plannererrors.New(plannererrors.SolverError, "cbc binary path not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "context cancelled before solve")
	}

	lpFile, err := os.CreateTemp("", "emsplanner-*.lp")
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "create lp temp file")
	}
	defer os.Remove(lpFile.Name())
	if err := writeLPFile(lpFile, p); err != nil {
		lpFile.Close()
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "write lp file")
	}
	if err := lpFile.Close(); err != nil {
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "close lp file")
	}

	solPath := lpFile.Name() + ".sol"
	defer os.Remove(solPath)

	// Cancellation is checked once above; a running cbc process is not
	// interrupted.
	cmd := exec.Command(s.BinaryPath, lpFile.Name(), "solve", "solution", solPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "cbc invocation failed: %s", string(output))
	}

	return parseSolutionFile(solPath, p)
}

func varName(idx int) string { return fmt.Sprintf("v%d", idx) }

func writeLPFile(w *os.File, p *milp.Problem) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "\\* generated by emsplanner *\\")
	fmt.Fprintln(bw, "Minimize")
	fmt.Fprint(bw, " obj: ")
	writeTerms(bw, p.Objective)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Subject To")
	for i, c := range p.Constraints {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("c%d", i)
		}
		op := "<="
		if c.Sense == milp.GE {
			op = ">="
		} else if c.Sense == milp.EQ {
			op = "="
		}
		fmt.Fprintf(bw, " %s: ", name)
		writeTerms(bw, c.Terms)
		fmt.Fprintf(bw, " %s %s\n", op, formatFloat(c.RHS))
	}

	fmt.Fprintln(bw, "Bounds")
	var binaries []int
	for i, v := range p.Variables {
		if v.Kind == milp.Binary {
			binaries = append(binaries, i)
			continue
		}
		if v.UpperBound == v.LowerBound {
			fmt.Fprintf(bw, " %s = %s\n", varName(i), formatFloat(v.LowerBound))
			continue
		}
		ub := "+inf"
		if !math.IsInf(v.UpperBound, 1) {
			ub = formatFloat(v.UpperBound)
		}
		fmt.Fprintf(bw, " %s <= %s <= %s\n", formatFloat(v.LowerBound), varName(i), ub)
	}

	if len(binaries) > 0 {
		fmt.Fprintln(bw, "Binary")
		for _, i := range binaries {
			fmt.Fprintln(bw, " "+varName(i))
		}
	}

	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeTerms(w *bufio.Writer, terms []milp.Term) {
	if len(terms) == 0 {
		fmt.Fprint(w, "0 ")
		return
	}
	for i, t := range terms {
		sign := "+"
		coef := t.Coef
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		if i == 0 && sign == "+" {
			fmt.Fprintf(w, "%s %s ", formatFloat(coef), varName(t.Var))
		} else {
			fmt.Fprintf(w, "%s %s %s ", sign, formatFloat(coef), varName(t.Var))
		}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// parseSolutionFile reads CBC's `solve solution <file>` output: a status
// line followed by "<index> <name> <value> <reduced cost>" rows.
func parseSolutionFile(path string, p *milp.Problem) (*milp.Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "open cbc solution file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, plannererrors.New(plannererrors.SolverError, "empty cbc solution file")
	}
	status := scanner.Text()
	lower := strings.ToLower(status)
	switch {
	case strings.Contains(lower, "infeasible"):
		return &milp.Solution{Status: milp.StatusInfeasible}, nil
	case strings.Contains(lower, "unbounded"):
		return nil, plannererrors.New(plannererrors.SolverError, "cbc reported unbounded problem")
	case !strings.Contains(lower, "optimal"):
		return nil, plannererrors.New(plannererrors.SolverError, "cbc solver status: %s", status)
	}

	objective := parseObjectiveFromStatusLine(status)
	values := make([]float64, len(p.Variables))
	byName := make(map[string]int, len(p.Variables))
	for i := range p.Variables {
		byName[varName(i)] = i
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		idx, ok := byName[fields[1]]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		values[idx] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, plannererrors.Wrap(plannererrors.SolverError, err, "read cbc solution file")
	}

	return &milp.Solution{Status: milp.StatusOptimal, Objective: objective, Values: values}, nil
}

func parseObjectiveFromStatusLine(status string) float64 {
	fields := strings.Fields(status)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0
	}
	return v
}
