package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"battery-dispatch/internal/data"
	"battery-dispatch/internal/milp"
	"battery-dispatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func horizon(t *testing.T, pv, load, price []float64) *model.Horizon {
	t.Helper()
	labels := make([]string, len(pv))
	for i := range labels {
		labels[i] = string(rune('a' + i))
	}
	h, err := model.NewHorizon(labels, pv, load, price)
	require.NoError(t, err)
	return h
}

func lossless(capacity float64) model.BatterySpec {
	spec := model.NewBatterySpec(capacity)
	spec.DegradationRatePerHour = 0
	return spec
}

func TestMILPPlan(t *testing.T) {
	ctx := context.Background()
	s := &MILP{}

	t.Run("empty battery cannot serve the only deficit", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0}, []float64{0, 10, 0}, []float64{1, 1, 1})
		d, err := s.Plan(ctx, h, model.NewBatterySpec(10))
		require.NoError(t, err)

		assert.Equal(t, []float64{0, 0, 0}, d.Discharge)
		assert.InDelta(t, 10, d.Objective, 1e-6)
	})

	t.Run("slot zero cannot absorb pv surplus", func(t *testing.T) {
		h := horizon(t, []float64{5, 0, 0}, []float64{0, 10, 0}, []float64{1, 1, 1})
		d, err := s.Plan(ctx, h, model.NewBatterySpec(10))
		require.NoError(t, err)

		assert.Equal(t, 0.0, d.Charge[0])
		assert.InDelta(t, 5, d.Objective, 1e-6)
	})

	t.Run("shifts energy to the expensive hour", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0, 0}, []float64{0, 0, 10, 0}, []float64{1, 1, 5, 1})
		d, err := s.Plan(ctx, h, lossless(10))
		require.NoError(t, err)

		assert.InDelta(t, 10, d.Charge[1], 1e-6)
		assert.InDelta(t, 10, d.Discharge[2], 1e-6)
		assert.InDelta(t, 10, d.Objective, 1e-6)
		assert.Equal(t, model.ActionCharging, d.Action(1))
		assert.Equal(t, model.ActionDischarging, d.Action(2))
		assert.Equal(t, NameMILP, d.Strategy)
		assert.NoError(t, Verify(h, lossless(10), d))
	})

	t.Run("degradation caps the stored energy", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0, 0}, []float64{0, 0, 10, 0}, []float64{1, 1, 5, 1})
		spec := model.NewBatterySpec(10)
		d, err := s.Plan(ctx, h, spec)
		require.NoError(t, err)

		assert.InDelta(t, 9.998, d.SoC[1], 1e-6)
		assert.InDelta(t, 9.998+5*0.002, d.Objective, 1e-6)
		assert.Equal(t, spec.CapacityCurve(4), d.CapacityCeiling)
	})

	t.Run("efficiency losses", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0, 0}, []float64{0, 0, 4, 0}, []float64{1, 1, 5, 1})
		spec := lossless(10)
		spec.ChargeEfficiency = 0.8
		d, err := s.Plan(ctx, h, spec)
		require.NoError(t, err)

		// 5 kWh bought stores 4 kWh which covers the whole deficit.
		assert.InDelta(t, 5, d.Charge[1], 1e-6)
		assert.InDelta(t, 4, d.Discharge[2], 1e-6)
		assert.InDelta(t, 5, d.Objective, 1e-6)
	})

	t.Run("same inputs give the same schedule", func(t *testing.T) {
		h := horizon(t, []float64{0, 3, 0, 0, 0}, []float64{1, 0, 4, 2, 0}, []float64{1, 0.5, 4, 3, 1})
		a, err := s.Plan(ctx, h, model.NewBatterySpec(5))
		require.NoError(t, err)
		b, err := s.Plan(ctx, h, model.NewBatterySpec(5))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("runaway degradation is infeasible", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0, 0}, []float64{1, 1, 1, 1}, []float64{1, 1, 1, 1})
		spec := model.NewBatterySpec(10)
		spec.DegradationRatePerHour = 0.5
		_, err := s.Plan(ctx, h, spec)

		var infeasible *InfeasibleError
		require.True(t, errors.As(err, &infeasible), "got %v", err)
		assert.Equal(t, 3, infeasible.Hour)
		assert.Equal(t, 10.0, infeasible.Capacity)
		assert.Equal(t, 0.5, infeasible.DegradationRatePerHour)
	})

	t.Run("invalid spec", func(t *testing.T) {
		h := horizon(t, []float64{0}, []float64{1}, []float64{1})
		_, err := s.Plan(ctx, h, model.BatterySpec{})
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0, 0}, []float64{0, 0, 10, 0}, []float64{1, 1, 5, 1})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Plan(cctx, h, lossless(10))
		assert.ErrorIs(t, err, ErrSolverTimeout)
	})
}

func TestMILPLongHorizons(t *testing.T) {
	for _, hours := range []int{96, 168} {
		t.Run(fmt.Sprintf("%dh synthetic", hours), func(t *testing.T) {
			h, err := data.Synthetic(hours, 4, 1)
			require.NoError(t, err)
			spec := model.NewBatterySpec(10)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			d, err := (&MILP{}).Plan(ctx, h, spec)
			require.NoError(t, err)
			require.NoError(t, Verify(h, spec, d))

			idle, err := Idle{}.Plan(ctx, h, spec)
			require.NoError(t, err)
			assert.Less(t, d.Objective, idle.Objective)
			assert.InDelta(t, cost(h, d), d.Objective, 1e-9)
		})
	}
}

func TestMILPNegativePrices(t *testing.T) {
	ctx := context.Background()
	h := horizon(t,
		[]float64{0, 0, 0, 0, 0, 0},
		[]float64{0, 0, 3, 3, 4, 0},
		[]float64{1, 0.5, -2, 4, 5, 1})
	spec := lossless(6)
	spec.ChargeEfficiency, spec.DischargeEfficiency = 0.9, 0.9

	d, err := (&MILP{}).Plan(ctx, h, spec)
	require.NoError(t, err)
	require.NoError(t, Verify(h, spec, d))
	for i := 0; i < h.Len(); i++ {
		assert.False(t, d.ChargeFlag[i] && d.DischargeFlag[i], "slot %d", i)
	}

	// A hand-built schedule: buy at 0.5 and at -2, spend it at 4 and 5.
	manual := 0.0
	for i, p := range []float64{1, 0.5, -2, 4, 5, 1} {
		manual += p * h.Deficit(i)
	}
	assert.Less(t, d.Objective, manual)
	assert.InDelta(t, cost(h, d), d.Objective, 1e-6)
}

func TestSettleMatchesBinaryModel(t *testing.T) {
	ctx := context.Background()
	h := horizon(t,
		[]float64{0, 2, 0, 1, 0, 0},
		[]float64{1, 0, 3, 0, 2, 0},
		[]float64{2, 0, 3, 0.2, 4, 1})
	spec := model.NewBatterySpec(5)
	spec.ChargeEfficiency, spec.DischargeEfficiency = 1, 1
	curve := spec.CapacityCurve(h.Len())

	m, _ := formulate(h, spec, curve, true)
	sol, err := milp.Solve(ctx, m, milp.Options{})
	require.NoError(t, err)
	require.Equal(t, milp.Optimal, sol.Status)

	d, err := (&MILP{}).Plan(ctx, h, spec)
	require.NoError(t, err)
	assert.InDelta(t, sol.Objective, d.Objective, 1e-6)
	for i := range d.Charge {
		assert.False(t, d.ChargeFlag[i] && d.DischargeFlag[i], "slot %d", i)
	}
}

func TestSettle(t *testing.T) {
	spec := lossless(10)
	spec.ChargeEfficiency, spec.DischargeEfficiency = 0.8, 0.5

	d := model.NewDispatchDecision(3)
	d.Charge[1], d.Discharge[1] = 5, 1 // stores 4, releases 2
	d.Charge[2], d.Discharge[2] = 1, 4 // stores 0.8, releases 8
	settle(d, spec)

	assert.InDelta(t, 2.5, d.Charge[1], 1e-12)
	assert.Zero(t, d.Discharge[1])
	assert.True(t, d.ChargeFlag[1])
	assert.False(t, d.DischargeFlag[1])

	assert.Zero(t, d.Charge[2])
	assert.InDelta(t, 3.6, d.Discharge[2], 1e-12)
	assert.True(t, d.DischargeFlag[2])
	assert.False(t, d.ChargeFlag[0] || d.DischargeFlag[0])
}

func TestIdle(t *testing.T) {
	h := horizon(t, []float64{5, 0, 0}, []float64{0, 10, 0}, []float64{1, 2, 1})
	d, err := Idle{}.Plan(context.Background(), h, model.NewBatterySpec(10))
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0}, d.Charge)
	assert.InDelta(t, 15, d.Objective, 1e-9)
	assert.Equal(t, NameIdle, d.Strategy)
	assert.NoError(t, Verify(h, model.NewBatterySpec(10), d))
}

func TestVerify(t *testing.T) {
	h := horizon(t, []float64{0, 0, 0, 0}, []float64{0, 0, 10, 0}, []float64{1, 1, 5, 1})
	spec := lossless(10)

	valid := func() *model.DispatchDecision {
		d := model.NewDispatchDecision(4)
		d.Charge[1], d.ChargeFlag[1], d.SoC[1] = 10, true, 10
		d.Discharge[2], d.DischargeFlag[2] = 10, true
		return d
	}
	require.NoError(t, Verify(h, spec, valid()))

	tests := []struct {
		name   string
		mutate func(d *model.DispatchDecision)
		slot   int
	}{
		{"both modes", func(d *model.DispatchDecision) { d.DischargeFlag[1] = true }, 1},
		{"charge without flag", func(d *model.DispatchDecision) { d.ChargeFlag[1] = false }, 1},
		{"ends charged", func(d *model.DispatchDecision) { d.Discharge[2], d.SoC[2] = 9, 1; d.SoC[3] = 1 }, 3},
		{"over capacity", func(d *model.DispatchDecision) { d.Charge[1], d.SoC[1] = 11, 11; d.Discharge[2] = 11; d.SoC[2] = 0 }, 1},
		{"broken balance", func(d *model.DispatchDecision) { d.SoC[1] = 9 }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			var anomaly *NumericAnomalyError
			require.True(t, errors.As(Verify(h, spec, d), &anomaly))
			assert.Equal(t, tt.slot, anomaly.Slot)
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New("", milp.Options{})
	require.NoError(t, err)
	assert.Equal(t, NameMILP, s.Name())

	s, err = New(NameIdle, milp.Options{})
	require.NoError(t, err)
	assert.Equal(t, NameIdle, s.Name())

	_, err = New("oracle", milp.Options{})
	assert.Error(t, err)
}
