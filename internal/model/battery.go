package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	DefaultChargeEfficiency       = 1.0
	DefaultDischargeEfficiency    = 1.0
	DefaultDegradationRatePerHour = 0.0002
	DefaultPricePerKWhOfCapacity  = 200.0

	// ceilingPlaces is the precision capacity ceilings are rounded to before
	// they are used as constraint coefficients.
	ceilingPlaces = 4
)

// BatterySpec defines the physical and economic parameters of the battery.
// Units:
// - Capacity: kWh (nameplate, at hour 0)
// - Efficiencies: (0, 1], 1 means lossless
// - DegradationRatePerHour: fraction of nameplate capacity lost per elapsed hour
// - PricePerKWhOfCapacity: currency per kWh of nameplate capacity (investment)
type BatterySpec struct {
	Capacity               float64
	ChargeEfficiency       float64
	DischargeEfficiency    float64
	DegradationRatePerHour float64
	PricePerKWhOfCapacity  float64
}

// NewBatterySpec returns a spec for the given capacity with the default
// efficiencies, degradation rate and capacity price.
func NewBatterySpec(capacity float64) BatterySpec {
	return BatterySpec{
		Capacity:               capacity,
		ChargeEfficiency:       DefaultChargeEfficiency,
		DischargeEfficiency:    DefaultDischargeEfficiency,
		DegradationRatePerHour: DefaultDegradationRatePerHour,
		PricePerKWhOfCapacity:  DefaultPricePerKWhOfCapacity,
	}
}

func (b BatterySpec) Validate() error {
	if b.Capacity <= 0 {
		return errors.New("Capacity must be > 0")
	}
	if b.ChargeEfficiency <= 0 || b.ChargeEfficiency > 1 {
		return errors.New("ChargeEfficiency must be in (0, 1]")
	}
	if b.DischargeEfficiency <= 0 || b.DischargeEfficiency > 1 {
		return errors.New("DischargeEfficiency must be in (0, 1]")
	}
	if b.DegradationRatePerHour < 0 {
		return errors.New("DegradationRatePerHour must be >= 0")
	}
	if b.PricePerKWhOfCapacity < 0 {
		return errors.New("PricePerKWhOfCapacity must be >= 0")
	}
	return nil
}

// Fade is the capacity lost by hour i, rounded to four decimal places.
func (b BatterySpec) Fade(i int) float64 {
	fade := decimal.NewFromFloat(b.Capacity).
		Mul(decimal.NewFromFloat(b.DegradationRatePerHour)).
		Mul(decimal.NewFromInt(int64(i)))
	f, _ := fade.Round(ceilingPlaces).Float64()
	return f
}

// CapacityAtHour is the usable capacity ceiling at hour i under linear fade.
// It is non-increasing in i and may go negative for a runaway degradation rate;
// callers treat a negative ceiling as an infeasible battery.
func (b BatterySpec) CapacityAtHour(i int) float64 {
	c, _ := decimal.NewFromFloat(b.Capacity).
		Sub(decimal.NewFromFloat(b.Fade(i))).
		Round(ceilingPlaces).
		Float64()
	return c
}

// CapacityCurve evaluates CapacityAtHour for every slot of an n-hour horizon.
func (b BatterySpec) CapacityCurve(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = b.CapacityAtHour(i)
	}
	return out
}

// DeadBand is the discharge threshold (kWh) at or below which a solver value
// is treated as numerical noise. It equals the degradation rate expressed in
// percent, e.g. 0.0002/h -> 0.02 kWh.
func (b BatterySpec) DeadBand() float64 {
	d, _ := decimal.NewFromFloat(b.DegradationRatePerHour).Mul(decimal.NewFromInt(100)).Float64()
	return d
}

// InvestmentCost is the up-front cost of the nameplate capacity.
func (b BatterySpec) InvestmentCost() float64 {
	return b.Capacity * b.PricePerKWhOfCapacity
}
