package strategy

import (
	"context"
	"fmt"
	"math"

	"battery-dispatch/internal/milp"
	"battery-dispatch/internal/model"
)

// MILP plans the cost-minimizing schedule with perfect foresight over the
// whole horizon by solving a mixed-integer linear program.
//
// Per slot i the program has charge, discharge and soc (continuous, kWh) and
// two binaries selecting charging or discharging. Slot 0 starts from an empty
// battery and the last slot must end empty.
//
// When no price is negative the binaries are left out. Charging and
// discharging in the same slot can then never beat the net flow, so the plain
// LP reaches the same optimum and settle rewrites any such slot into a single
// mode without touching the SoC trajectory.
type MILP struct {
	Options milp.Options
}

func (s *MILP) Name() string { return NameMILP }

// slotVars holds model column indices for each slot.
type slotVars struct {
	charge, discharge, soc    []int
	chargeFlag, dischargeFlag []int
}

func (s *MILP) Plan(ctx context.Context, h *model.Horizon, spec model.BatterySpec) (*model.DispatchDecision, error) {
	if h == nil {
		return nil, fmt.Errorf("horizon is nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("battery spec: %w", err)
	}

	curve := spec.CapacityCurve(h.Len())
	for i, c := range curve {
		if c < 0 {
			return nil, &InfeasibleError{Capacity: spec.Capacity, DegradationRatePerHour: spec.DegradationRatePerHour, Hour: i}
		}
	}

	flags := hasNegativePrice(h)
	m, vars := formulate(h, spec, curve, flags)
	sol, err := milp.Solve(ctx, m, s.Options)
	if err != nil {
		return nil, &SolverError{Status: milp.Failed, Err: err}
	}

	switch sol.Status {
	case milp.Optimal:
	case milp.Infeasible:
		return nil, &InfeasibleError{Capacity: spec.Capacity, DegradationRatePerHour: spec.DegradationRatePerHour, Hour: -1}
	case milp.TimedOut:
		return nil, fmt.Errorf("%w after %d nodes", ErrSolverTimeout, sol.Nodes)
	default:
		return nil, &SolverError{Status: sol.Status, Err: sol.Err}
	}

	d := extract(sol, vars, curve)
	if !flags {
		settle(d, spec)
		d.Objective = cost(h, d)
	}
	d.Strategy = s.Name()
	if err := Verify(h, spec, d); err != nil {
		return nil, err
	}
	return d, nil
}

func hasNegativePrice(h *model.Horizon) bool {
	for i := 0; i < h.Len(); i++ {
		if h.At(i).Price < 0 {
			return true
		}
	}
	return false
}

// formulate builds the dispatch program for h. curve must be
// spec.CapacityCurve(h.Len()) with no negative entries. Without flags the
// mode binaries and their rows are dropped and charge is bounded by the
// capacity directly.
func formulate(h *model.Horizon, spec model.BatterySpec, curve []float64, flags bool) (*milp.Model, slotVars) {
	n := h.Len()
	m := milp.NewModel("battery-dispatch")
	v := slotVars{
		charge:    make([]int, n),
		discharge: make([]int, n),
		soc:       make([]int, n),
	}
	chargeCap := math.Inf(1)
	if flags {
		v.chargeFlag = make([]int, n)
		v.dischargeFlag = make([]int, n)
	}

	for i := 0; i < n; i++ {
		o := h.At(i)

		dischargeCap := math.Max(0, o.Deficit())
		socCap := curve[i]
		if i == 0 {
			dischargeCap = 0
		}
		if i == 0 || i == n-1 {
			socCap = 0
		}

		if !flags {
			chargeCap = curve[i]
		}
		v.charge[i] = m.AddContinuous(fmt.Sprintf("charge_%d", i), 0, chargeCap)
		v.discharge[i] = m.AddContinuous(fmt.Sprintf("discharge_%d", i), 0, dischargeCap)
		v.soc[i] = m.AddContinuous(fmt.Sprintf("soc_%d", i), 0, socCap)
		if flags {
			v.chargeFlag[i] = m.AddBinary(fmt.Sprintf("charge_flag_%d", i))
			v.dischargeFlag[i] = m.AddBinary(fmt.Sprintf("discharge_flag_%d", i))
		}

		// Grid cost of the slot is price * (deficit + charge - discharge).
		m.SetObjective(v.charge[i], o.Price)
		m.SetObjective(v.discharge[i], -o.Price)
		m.AddObjectiveOffset(o.Price * o.Deficit())
	}

	for i := 0; i < n; i++ {
		if flags {
			m.AddConstraint(fmt.Sprintf("one_mode_%d", i), milp.LessEq, 1,
				milp.Term{Var: v.chargeFlag[i], Coef: 1},
				milp.Term{Var: v.dischargeFlag[i], Coef: 1})

			m.AddConstraint(fmt.Sprintf("charge_gate_%d", i), milp.LessEq, 0,
				milp.Term{Var: v.charge[i], Coef: 1},
				milp.Term{Var: v.chargeFlag[i], Coef: -curve[i]})
		}

		balance := []milp.Term{
			{Var: v.soc[i], Coef: 1},
			{Var: v.charge[i], Coef: -spec.ChargeEfficiency},
			{Var: v.discharge[i], Coef: 1 / spec.DischargeEfficiency},
		}
		if i > 0 {
			balance = append(balance, milp.Term{Var: v.soc[i-1], Coef: -1})

			// discharge_i <= soc_{i-1} * dischargeFlag_i, linearized.
			m.AddConstraint(fmt.Sprintf("discharge_stock_%d", i), milp.LessEq, 0,
				milp.Term{Var: v.discharge[i], Coef: 1},
				milp.Term{Var: v.soc[i-1], Coef: -1})
			if flags {
				m.AddConstraint(fmt.Sprintf("discharge_gate_%d", i), milp.LessEq, 0,
					milp.Term{Var: v.discharge[i], Coef: 1},
					milp.Term{Var: v.dischargeFlag[i], Coef: -curve[i-1]})
			}
		}
		m.AddConstraint(fmt.Sprintf("balance_%d", i), milp.Equal, 0, balance...)
	}

	return m, v
}

func extract(sol *milp.Solution, v slotVars, curve []float64) *model.DispatchDecision {
	n := len(v.charge)
	d := model.NewDispatchDecision(n)
	for i := 0; i < n; i++ {
		d.Charge[i] = nonNegative(sol.Value(v.charge[i]))
		d.Discharge[i] = nonNegative(sol.Value(v.discharge[i]))
		d.SoC[i] = nonNegative(sol.Value(v.soc[i]))
		if v.chargeFlag != nil {
			d.ChargeFlag[i] = sol.Value(v.chargeFlag[i]) > 0.5
			d.DischargeFlag[i] = sol.Value(v.dischargeFlag[i]) > 0.5
		}
	}
	copy(d.CapacityCeiling, curve)
	d.Objective = sol.Objective
	d.Nodes = sol.Nodes
	return d
}

// nonNegative drops simplex round-off below zero.
func nonNegative(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// settle nets out slots that both charge and discharge, keeping each slot's
// SoC change, and sets the mode flags from the remaining flows. At a
// non-negative price the netted slot costs no more.
func settle(d *model.DispatchDecision, spec model.BatterySpec) {
	roundTrip := spec.ChargeEfficiency * spec.DischargeEfficiency
	for i := range d.Charge {
		c, x := d.Charge[i], d.Discharge[i]
		if c > 0 && x > 0 {
			if spec.ChargeEfficiency*c >= x/spec.DischargeEfficiency {
				d.Charge[i], d.Discharge[i] = nonNegative(c-x/roundTrip), 0
			} else {
				d.Charge[i], d.Discharge[i] = 0, nonNegative(x-roundTrip*c)
			}
		}
		d.ChargeFlag[i] = d.Charge[i] > 0
		d.DischargeFlag[i] = d.Discharge[i] > 0
	}
}

// cost is the grid cost of d over h: Σ price * (deficit + charge - discharge).
func cost(h *model.Horizon, d *model.DispatchDecision) float64 {
	sum := 0.0
	for i := 0; i < h.Len(); i++ {
		o := h.At(i)
		sum += o.Price * (o.Deficit() + d.Charge[i] - d.Discharge[i])
	}
	return sum
}
