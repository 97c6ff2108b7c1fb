package ledger

import (
	"fmt"

	"battery-dispatch/internal/model"
)

// Evaluate replays decision d over h and prices both the no-battery and the
// with-battery series hour by hour.
//
// Discharges at or below spec.DeadBand() are solver noise and are clamped to
// zero before the grid draw is computed. Totals are sums of the clamped
// hourly costs, not the solver's objective.
func Evaluate(h *model.Horizon, spec model.BatterySpec, d *model.DispatchDecision) (*Result, error) {
	if h == nil {
		return nil, fmt.Errorf("horizon is nil")
	}
	if d == nil {
		return nil, fmt.Errorf("decision is nil")
	}
	if d.Len() != h.Len() {
		return nil, &model.InputShapeError{Field: "decision", Want: h.Len(), Got: d.Len(), Reason: "decision does not cover the horizon"}
	}

	deadBand := spec.DeadBand()
	res := &Result{
		Rows:            make([]Row, 0, h.Len()),
		Capacity:        spec.Capacity,
		DeadBand:        deadBand,
		Strategy:        d.Strategy,
		SolverNodes:     d.Nodes,
		SolverObjective: d.Objective,
		InvestmentCost:  spec.InvestmentCost(),
	}

	cumNo, cumWith := 0.0, 0.0
	for i := 0; i < h.Len(); i++ {
		o := h.At(i)

		discharge := d.Discharge[i]
		if discharge <= deadBand {
			if discharge > 0 {
				res.ClampedSlots++
			}
			discharge = 0
		}

		netNo := o.Deficit()
		costNo := o.Price * netNo
		netWith := netNo + d.Charge[i] - discharge
		costWith := o.Price * netWith
		cumNo += costNo
		cumWith += costWith

		res.Rows = append(res.Rows, Row{
			Index: i,
			Label: o.Label,

			PV:    o.PV,
			Load:  o.Load,
			Price: o.Price,

			NetGridNoBattery: netNo,
			CostNoBattery:    costNo,
			CumCostNoBattery: cumNo,

			Charge:          d.Charge[i],
			Discharge:       discharge,
			RawDischarge:    d.Discharge[i],
			SoC:             d.SoC[i],
			CapacityCeiling: d.CapacityCeiling[i],

			NetGridWithBattery: netWith,
			CostWithBattery:    costWith,
			CumCostWithBattery: cumWith,

			Action: model.ActionFromFlows(d.Charge[i], discharge),
		})
	}

	res.TotalCostNoBattery = cumNo
	res.TotalCostWithBattery = cumWith
	res.Savings = cumNo - cumWith
	res.TotalCostWithInvestment = cumWith + res.InvestmentCost
	return res, nil
}
