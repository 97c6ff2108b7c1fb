package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHorizon(t *testing.T) {
	labels := []string{"0", "1", "2"}

	t.Run("copies inputs", func(t *testing.T) {
		pv := []float64{5, 0, 0}
		h, err := NewHorizon(labels, pv, []float64{0, 10, 0}, []float64{1, 1, 1})
		require.NoError(t, err)
		pv[0] = 99

		assert.Equal(t, 3, h.Len())
		assert.Equal(t, 5.0, h.At(0).PV)
		assert.Equal(t, -5.0, h.Deficit(0))
		assert.Equal(t, 10.0, h.At(1).Deficit())
	})

	tests := []struct {
		name  string
		pv    []float64
		load  []float64
		price []float64
		field string
	}{
		{"short pv", []float64{1, 2}, []float64{1, 2, 3}, []float64{1, 1, 1}, "pv"},
		{"long price", []float64{1, 2, 3}, []float64{1, 2, 3}, []float64{1, 1, 1, 1}, "price"},
		{"nan load", []float64{1, 2, 3}, []float64{1, math.NaN(), 3}, []float64{1, 1, 1}, "load"},
		{"negative pv", []float64{1, -2, 3}, []float64{1, 2, 3}, []float64{1, 1, 1}, "pv"},
		{"negative load", []float64{1, 2, 3}, []float64{1, 2, -3}, []float64{1, 1, 1}, "load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHorizon(labels, tt.pv, tt.load, tt.price)
			var shape *InputShapeError
			require.True(t, errors.As(err, &shape), "got %v", err)
			assert.Equal(t, tt.field, shape.Field)
		})
	}

	t.Run("empty", func(t *testing.T) {
		_, err := NewHorizon(nil, nil, nil, nil)
		var shape *InputShapeError
		assert.True(t, errors.As(err, &shape))
	})

	t.Run("negative price is allowed", func(t *testing.T) {
		_, err := NewHorizon(labels, []float64{0, 0, 0}, []float64{1, 1, 1}, []float64{-1, 0, 1})
		assert.NoError(t, err)
	})
}

func TestBatterySpec(t *testing.T) {
	t.Run("degradation curve", func(t *testing.T) {
		b := NewBatterySpec(10)
		assert.Equal(t, 10.0, b.CapacityAtHour(0))
		assert.Equal(t, 0.002, b.Fade(1))
		assert.Equal(t, 9.998, b.CapacityAtHour(1))
		assert.Equal(t, 9.666, b.CapacityAtHour(167))

		curve := b.CapacityCurve(168)
		require.Len(t, curve, 168)
		for i := 1; i < len(curve); i++ {
			assert.LessOrEqual(t, curve[i], curve[i-1])
		}
	})

	t.Run("fade rounds to four places", func(t *testing.T) {
		b := NewBatterySpec(3.33333)
		assert.Equal(t, 0.0007, b.Fade(1))
		assert.Equal(t, 3.3326, b.CapacityAtHour(1))
	})

	t.Run("zero rate keeps nameplate", func(t *testing.T) {
		b := NewBatterySpec(7)
		b.DegradationRatePerHour = 0
		assert.Equal(t, 7.0, b.CapacityAtHour(500))
		assert.Equal(t, 0.0, b.DeadBand())
	})

	t.Run("runaway rate goes negative", func(t *testing.T) {
		b := NewBatterySpec(10)
		b.DegradationRatePerHour = 0.5
		assert.Less(t, b.CapacityAtHour(3), 0.0)
	})

	t.Run("dead band and investment", func(t *testing.T) {
		b := NewBatterySpec(12.5)
		assert.Equal(t, 0.02, b.DeadBand())
		assert.Equal(t, 2500.0, b.InvestmentCost())
	})

	t.Run("validate", func(t *testing.T) {
		assert.NoError(t, NewBatterySpec(1).Validate())

		bad := []BatterySpec{
			{Capacity: 0, ChargeEfficiency: 1, DischargeEfficiency: 1},
			{Capacity: 1, ChargeEfficiency: 0, DischargeEfficiency: 1},
			{Capacity: 1, ChargeEfficiency: 1, DischargeEfficiency: 1.5},
			{Capacity: 1, ChargeEfficiency: 1, DischargeEfficiency: 1, DegradationRatePerHour: -1},
			{Capacity: 1, ChargeEfficiency: 1, DischargeEfficiency: 1, PricePerKWhOfCapacity: -1},
		}
		for _, b := range bad {
			assert.Error(t, b.Validate(), "%+v", b)
		}
	})
}

func TestDispatchDecisionAction(t *testing.T) {
	d := NewDispatchDecision(3)
	d.Charge[0], d.ChargeFlag[0] = 2, true
	d.Discharge[1], d.DischargeFlag[1] = 1, true
	d.DischargeFlag[2] = true

	assert.Equal(t, ActionCharging, d.Action(0))
	assert.Equal(t, ActionDischarging, d.Action(1))
	assert.Equal(t, ActionIdle, d.Action(2))
	assert.Equal(t, ActionIdle, ActionFromFlows(0, 0))
}
