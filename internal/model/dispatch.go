package model

// DispatchDecision is the optimizer's output: one entry per horizon slot.
// Slices are parallel and have the horizon's length. It is produced once per
// run and must not be mutated by consumers.
type DispatchDecision struct {
	Charge          []float64 // kWh into the battery
	Discharge       []float64 // kWh out of the battery
	SoC             []float64 // kWh stored at the end of the slot
	CapacityCeiling []float64 // capacityAtHour(i)
	ChargeFlag      []bool
	DischargeFlag   []bool

	// Objective is the solver-reported total cost. Reports use the
	// post-solve evaluation instead.
	Objective float64
	// Nodes is the number of branch-and-bound nodes explored.
	Nodes int
	// Strategy names the strategy that produced the decision.
	Strategy string
}

// NewDispatchDecision allocates an all-idle decision for n slots.
func NewDispatchDecision(n int) *DispatchDecision {
	return &DispatchDecision{
		Charge:          make([]float64, n),
		Discharge:       make([]float64, n),
		SoC:             make([]float64, n),
		CapacityCeiling: make([]float64, n),
		ChargeFlag:      make([]bool, n),
		DischargeFlag:   make([]bool, n),
	}
}

func (d *DispatchDecision) Len() int { return len(d.Charge) }

// Action classifies slot i for ledgers.
func (d *DispatchDecision) Action(i int) Action {
	switch {
	case d.ChargeFlag[i] && d.Charge[i] > 0:
		return ActionCharging
	case d.DischargeFlag[i] && d.Discharge[i] > 0:
		return ActionDischarging
	default:
		return ActionIdle
	}
}
