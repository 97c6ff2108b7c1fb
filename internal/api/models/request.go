package models

import (
	"battery-dispatch/internal/config"
	"battery-dispatch/internal/data"
)

// OptimizeRequest is the body of POST /api/v1/optimize.
// Exactly one of Horizon and Synthetic must be set.
type OptimizeRequest struct {
	Horizon   *data.HorizonDocument `json:"horizon,omitempty"`
	Synthetic *SyntheticConfig      `json:"synthetic,omitempty"`

	BatteryFile string        `json:"battery_file,omitempty"` // preset ID from GET /batteries
	Battery     BatteryConfig `json:"battery"`
	Solver      SolverConfig  `json:"solver,omitempty"`
	Strategy    string        `json:"strategy,omitempty"` // default: milp
	Recovery    string        `json:"recovery,omitempty"` // "abort" or "idle"

	IncludeLedger bool `json:"include_ledger,omitempty"`
}

// SweepRequest is the body of POST /api/v1/sweep.
type SweepRequest struct {
	Horizon   *data.HorizonDocument `json:"horizon,omitempty"`
	Synthetic *SyntheticConfig      `json:"synthetic,omitempty"`

	BatteryFile string        `json:"battery_file,omitempty"`
	Battery     BatteryConfig `json:"battery"`
	Solver      SolverConfig  `json:"solver,omitempty"`
	Strategy    string        `json:"strategy,omitempty"`

	Capacities  []float64 `json:"capacities,omitempty"`
	From        float64   `json:"from,omitempty"`
	To          float64   `json:"to,omitempty"`
	Steps       int       `json:"steps,omitempty"`
	Concurrency int       `json:"concurrency,omitempty"`
}

// SyntheticConfig asks the server to generate a horizon instead of sending one.
type SyntheticConfig struct {
	Hours  int     `json:"hours"`
	PeakPV float64 `json:"peak_pv"`
	Seed   int64   `json:"seed,omitempty"`
}

// BatteryConfig mirrors the battery section of the YAML config.
// Capacity accepts a number of kWh or "auto".
type BatteryConfig struct {
	Name                   string          `json:"name,omitempty"`
	Capacity               config.Capacity `json:"capacity"`
	ChargeEfficiency       float64         `json:"charge_efficiency,omitempty"`
	DischargeEfficiency    float64         `json:"discharge_efficiency,omitempty"`
	DegradationRatePerHour *float64        `json:"degradation_rate_per_hour,omitempty"`
	PricePerKWhOfCapacity  *float64        `json:"price_per_kwh_of_capacity,omitempty"`
}

func (b BatteryConfig) ToConfig() config.BatteryConfig {
	return config.BatteryConfig{
		Name:                   b.Name,
		Capacity:               b.Capacity,
		ChargeEfficiency:       b.ChargeEfficiency,
		DischargeEfficiency:    b.DischargeEfficiency,
		DegradationRatePerHour: b.DegradationRatePerHour,
		PricePerKWhOfCapacity:  b.PricePerKWhOfCapacity,
	}
}

// SolverConfig bounds the optimizer. Zero values mean server defaults.
type SolverConfig struct {
	TimeLimitSeconds float64 `json:"time_limit_seconds,omitempty"`
	MaxNodes         int     `json:"max_nodes,omitempty"`
}
