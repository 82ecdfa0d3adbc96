// Package errors defines the structured error taxonomy shared by the
// horizon builder, forecast aligner, MILP builder, and solver drivers.
package errors

import "fmt"

// Kind classifies a planner error for programmatic handling.
type Kind string

const (
	// ConfigInvalid marks topology or parameter violations caught at model
	// construction (e.g. min_soc_pct > max_soc_pct, non-monotonic EV
	// incentive targets, negative capacities).
	ConfigInvalid Kind = "config_invalid"
	// ForecastCoverageTooShort marks the shortest forecast horizon falling
	// below min_horizon_minutes.
	ForecastCoverageTooShort Kind = "forecast_coverage_too_short"
	// AlignmentCoverageError marks a non-zero slot not fully covered by
	// forecast intervals with no override available.
	AlignmentCoverageError Kind = "alignment_coverage_error"
	// SolverInfeasible marks a MILP proved infeasible.
	SolverInfeasible Kind = "solver_infeasible"
	// SolverError marks a solver failure: error, timeout, or non-optimal
	// unbounded status.
	SolverError Kind = "solver_error"
	// DataSourceError marks a failure surfaced from the source resolver.
	DataSourceError Kind = "data_source_error"
)

// PlannerError is the single error type returned across package boundaries
// in the planning pipeline. It carries a machine-readable Kind alongside a
// human-readable message and an optional wrapped cause.
type PlannerError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *PlannerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PlannerError) Unwrap() error { return e.Cause }

// New builds a PlannerError of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *PlannerError {
	return &PlannerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a PlannerError of the given kind that wraps cause.
func Wrap(kind Kind, cause error, format string, args ...any) *PlannerError {
	return &PlannerError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) a *PlannerError.
// It returns ("", false) otherwise.
func KindOf(err error) (Kind, bool) {
	var pe *PlannerError
	if asPlannerError(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

func asPlannerError(err error, target **PlannerError) bool {
	for err != nil {
		if pe, ok := err.(*PlannerError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
