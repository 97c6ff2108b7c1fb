package strategy

import (
	"fmt"
	"math"

	"battery-dispatch/internal/model"
)

// VerifyTolerance is the relative slack allowed when checking a solution.
const VerifyTolerance = 1e-6

// Verify checks every schedule invariant of d against h and spec and returns
// a *NumericAnomalyError for the first one broken beyond VerifyTolerance.
func Verify(h *model.Horizon, spec model.BatterySpec, d *model.DispatchDecision) error {
	n := h.Len()
	if d.Len() != n {
		return &model.InputShapeError{Field: "decision", Want: n, Got: d.Len(), Reason: "decision does not cover the horizon"}
	}
	curve := spec.CapacityCurve(n)

	check := func(slot int, name string, value, limit float64) error {
		if value > limit+VerifyTolerance*math.Max(1, math.Abs(limit)) {
			return &NumericAnomalyError{Slot: slot, Invariant: name, Value: value, Limit: limit}
		}
		return nil
	}
	flag := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}

	if err := check(0, "soc[0] = 0", math.Abs(d.SoC[0]), 0); err != nil {
		return err
	}
	if err := check(n-1, "soc[H-1] = 0", math.Abs(d.SoC[n-1]), 0); err != nil {
		return err
	}
	if err := check(0, "discharge[0] = 0", math.Abs(d.Discharge[0]), 0); err != nil {
		return err
	}

	prev := 0.0
	for i := 0; i < n; i++ {
		for _, c := range []struct {
			name         string
			value, limit float64
		}{
			{"charge >= 0", -d.Charge[i], 0},
			{"discharge >= 0", -d.Discharge[i], 0},
			{"soc >= 0", -d.SoC[i], 0},
			{"one mode per slot", flag(d.ChargeFlag[i]) + flag(d.DischargeFlag[i]), 1},
			{"charge <= capacity * chargeFlag", d.Charge[i], curve[i] * flag(d.ChargeFlag[i])},
			{"discharge <= prior soc * dischargeFlag", d.Discharge[i], prev * flag(d.DischargeFlag[i])},
			{"discharge <= max(0, load - pv)", d.Discharge[i], math.Max(0, h.Deficit(i))},
			{"soc <= capacity", d.SoC[i], curve[i]},
		} {
			if err := check(i, c.name, c.value, c.limit); err != nil {
				return err
			}
		}

		want := prev + spec.ChargeEfficiency*d.Charge[i] - d.Discharge[i]/spec.DischargeEfficiency
		if err := check(i, fmt.Sprintf("soc balance (want %g)", want), math.Abs(d.SoC[i]-want), 0); err != nil {
			return err
		}
		prev = d.SoC[i]
	}
	return nil
}
