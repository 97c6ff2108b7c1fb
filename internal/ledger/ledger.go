package ledger

import "battery-dispatch/internal/model"

// Row is one hour of post-solve output.
// This is the primary artifact for "what happened" in a plan.
type Row struct {
	Index int
	Label string

	PV    float64
	Load  float64
	Price float64

	// Without a battery.
	NetGridNoBattery float64
	CostNoBattery    float64
	CumCostNoBattery float64

	// With the battery. Discharge is after the dead-band clamp.
	Charge          float64
	Discharge       float64
	RawDischarge    float64
	SoC             float64
	CapacityCeiling float64

	NetGridWithBattery float64
	CostWithBattery    float64
	CumCostWithBattery float64

	Action model.Action
}

type Result struct {
	Rows []Row

	Capacity        float64
	DeadBand        float64
	ClampedSlots    int
	Strategy        string
	SolverNodes     int
	SolverObjective float64

	TotalCostNoBattery   float64
	TotalCostWithBattery float64
	Savings              float64

	InvestmentCost          float64
	TotalCostWithInvestment float64
}
