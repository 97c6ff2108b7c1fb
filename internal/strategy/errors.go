package strategy

import (
	"errors"
	"fmt"

	"battery-dispatch/internal/milp"
)

// ErrSolverTimeout is returned when the solver hits its wall-clock limit
// before proving optimality. It is distinct from infeasibility.
var ErrSolverTimeout = errors.New("solver timed out")

// InfeasibleError means no schedule satisfies the battery physics, most often
// because the degradation rate drives the capacity ceiling below zero.
type InfeasibleError struct {
	Capacity               float64
	DegradationRatePerHour float64
	// Hour is the first slot with a negative ceiling, or -1 when the solver
	// proved infeasibility without a single offending slot.
	Hour int
}

func (e *InfeasibleError) Error() string {
	if e.Hour >= 0 {
		return fmt.Sprintf("infeasible battery: capacity %.4f kWh with degradation %.6f/h is negative at hour %d",
			e.Capacity, e.DegradationRatePerHour, e.Hour)
	}
	return fmt.Sprintf("infeasible battery: no schedule for capacity %.4f kWh with degradation %.6f/h",
		e.Capacity, e.DegradationRatePerHour)
}

// SolverError is a non-optimal, non-timeout solver outcome. Unbounded in
// particular points at a defect in how the constraints were written.
type SolverError struct {
	Status milp.Status
	Err    error
}

func (e *SolverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solver %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("solver %s", e.Status)
}

func (e *SolverError) Unwrap() error { return e.Err }

// NumericAnomalyError reports an accepted solution that breaks a schedule
// invariant by more than the tolerance.
type NumericAnomalyError struct {
	Slot      int
	Invariant string
	Value     float64
	Limit     float64
}

func (e *NumericAnomalyError) Error() string {
	return fmt.Sprintf("numeric anomaly at slot %d: %s (value %g, limit %g)", e.Slot, e.Invariant, e.Value, e.Limit)
}
