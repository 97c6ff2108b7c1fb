package models

// OptimizeResponse is returned by POST /api/v1/optimize and GET /api/v1/runs/:id.
type OptimizeResponse struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"` // "optimized" or "recovered"
	Verdict  string         `json:"verdict"`
	Strategy string         `json:"strategy"`
	Battery  BatterySummary `json:"battery"`
	Summary  RunSummary     `json:"summary"`
	Cause    string         `json:"cause,omitempty"` // optimizer error when recovered
	Ledger   []LedgerRow    `json:"ledger,omitempty"`
}

type BatterySummary struct {
	Name                   string  `json:"name,omitempty"`
	CapacityKWh            float64 `json:"capacity_kwh"`
	CapacityAuto           bool    `json:"capacity_auto"`
	EndCapacityKWh         float64 `json:"end_capacity_kwh"`
	ChargeEfficiency       float64 `json:"charge_efficiency"`
	DischargeEfficiency    float64 `json:"discharge_efficiency"`
	DegradationRatePerHour float64 `json:"degradation_rate_per_hour"`
	PricePerKWhOfCapacity  float64 `json:"price_per_kwh_of_capacity"`
}

// RunSummary contains the aggregated costs of one plan.
type RunSummary struct {
	Hours                   int     `json:"hours"`
	TotalCostNoBattery      float64 `json:"total_cost_no_battery"`
	TotalCostWithBattery    float64 `json:"total_cost_with_battery"`
	Savings                 float64 `json:"savings"`
	InvestmentCost          float64 `json:"investment_cost"`
	TotalCostWithInvestment float64 `json:"total_cost_with_investment"`
	SuggestedCapacityKWh    float64 `json:"suggested_capacity_kwh"`
	ClampedSlots            int     `json:"clamped_slots"`
	SolverNodes             int     `json:"solver_nodes"`
	SolverObjective         float64 `json:"solver_objective"`
	SolveTimeMs             int64   `json:"solve_time_ms"`
}

// LedgerRow represents one hour of the post-solve ledger.
type LedgerRow struct {
	Index              int     `json:"index"`
	Label              string  `json:"label"`
	PV                 float64 `json:"pv"`
	Load               float64 `json:"load"`
	Price              float64 `json:"price"`
	NetGridNoBattery   float64 `json:"net_grid_no_battery"`
	CostNoBattery      float64 `json:"cost_no_battery"`
	CumCostNoBattery   float64 `json:"cum_cost_no_battery"`
	Action             string  `json:"action"` // "CHARGING", "DISCHARGING", "IDLE"
	Charge             float64 `json:"charge"`
	Discharge          float64 `json:"discharge"`
	SoC                float64 `json:"soc"`
	CapacityCeiling    float64 `json:"capacity_ceiling"`
	NetGridWithBattery float64 `json:"net_grid_with_battery"`
	CostWithBattery    float64 `json:"cost_with_battery"`
	CumCostWithBattery float64 `json:"cum_cost_with_battery"`
}

// SweepResponse lists sweep candidates, cheapest total cost first.
type SweepResponse struct {
	Candidates []CandidateResult `json:"candidates"`
	Best       *CandidateResult  `json:"best,omitempty"`
}

type CandidateResult struct {
	CapacityKWh float64     `json:"capacity_kwh"`
	Summary     *RunSummary `json:"summary,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// BatteryInfo represents information about a battery preset
type BatteryInfo struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	File  string       `json:"file"`
	Specs BatterySpecs `json:"specs"`
}

// BatterySpecs contains battery specifications
type BatterySpecs struct {
	Capacity               string   `json:"capacity"` // kWh or "auto"
	ChargeEfficiency       float64  `json:"charge_efficiency,omitempty"`
	DischargeEfficiency    float64  `json:"discharge_efficiency,omitempty"`
	DegradationRatePerHour *float64 `json:"degradation_rate_per_hour,omitempty"`
	PricePerKWhOfCapacity  *float64 `json:"price_per_kwh_of_capacity,omitempty"`
}

// StrategyInfo represents information about a strategy
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
