package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"battery-dispatch/internal/analysis"
	"battery-dispatch/internal/config"
	"battery-dispatch/internal/data"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/model"
	"battery-dispatch/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(capacity config.Capacity) *config.Config {
	c := &config.Config{Battery: config.BatteryConfig{Capacity: capacity}}
	c.ApplyDefaults()
	return c
}

func horizon(t *testing.T, pv, load, price []float64) *model.Horizon {
	t.Helper()
	labels := make([]string, len(pv))
	for i := range labels {
		labels[i] = fmt.Sprint(i + 1)
	}
	h, err := model.NewHorizon(labels, pv, load, price)
	require.NoError(t, err)
	return h
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	p := New(logger.Nop())

	t.Run("no cheap window before the deficit", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0}, []float64{0, 10, 0}, []float64{1, 1, 1})
		res, err := p.Run(ctx, h, testConfig(config.Capacity{Value: 10}))
		require.NoError(t, err)

		assert.InDelta(t, 10, res.Ledger.TotalCostNoBattery, 1e-9)
		assert.InDelta(t, 10, res.Ledger.TotalCostWithBattery, 1e-6)
		assert.Equal(t, NoSavings, res.Verdict)
		assert.NotEmpty(t, res.ID)
	})

	t.Run("synthetic week finishes well inside the time limit", func(t *testing.T) {
		h, err := data.Synthetic(168, 4, 7)
		require.NoError(t, err)
		cfg := testConfig(config.Capacity{Value: 10})
		cfg.Solver.TimeLimit = 30 * time.Second

		res, err := p.Run(ctx, h, cfg)
		require.NoError(t, err)
		assert.False(t, res.Recovered)
		assert.Len(t, res.Ledger.Rows, 168)
		assert.Less(t, res.Ledger.TotalCostWithBattery, res.Ledger.TotalCostNoBattery)
	})

	t.Run("slot zero surplus is exported", func(t *testing.T) {
		h := horizon(t, []float64{5, 0, 0}, []float64{0, 10, 0}, []float64{1, 1, 1})
		res, err := p.Run(ctx, h, testConfig(config.Capacity{Value: 10}))
		require.NoError(t, err)

		assert.Equal(t, 0.0, res.Decision.Charge[0])
		assert.InDelta(t, 5, res.Ledger.TotalCostNoBattery, 1e-9)
		assert.InDelta(t, 5, res.Ledger.TotalCostWithBattery, 1e-6)
	})

	t.Run("auto capacity from the worst deficit", func(t *testing.T) {
		h := horizon(t, []float64{0, 0, 0, 0}, []float64{0, 0, 6, 0}, []float64{1, 1, 5, 1})
		res, err := p.Run(ctx, h, testConfig(config.Capacity{Auto: true}))
		require.NoError(t, err)

		assert.True(t, res.CapacityAuto)
		assert.Equal(t, 6.0, res.Spec.Capacity)
		assert.Equal(t, CostEffective, res.Verdict)
		assert.Greater(t, res.Ledger.Savings, 20.0)
		assert.InDelta(t, 1200, res.Ledger.InvestmentCost, 1e-9)
	})

	t.Run("auto capacity without deficit", func(t *testing.T) {
		h := horizon(t, []float64{3, 3}, []float64{1, 1}, []float64{1, 1})
		_, err := p.Run(ctx, h, testConfig(config.Capacity{Auto: true}))
		assert.ErrorIs(t, err, ErrNoDeficit)
	})

	t.Run("battery never costs more than none", func(t *testing.T) {
		h, err := data.Synthetic(24, 4, 3)
		require.NoError(t, err)
		res, err := p.Run(ctx, h, testConfig(config.Capacity{Value: 3}))
		require.NoError(t, err)
		// Only the dead-band clamp can push the evaluated cost above the baseline.
		slack := res.Ledger.DeadBand * res.Baseline.MaxPrice * float64(res.Ledger.ClampedSlots)
		assert.LessOrEqual(t, res.Ledger.TotalCostWithBattery, res.Ledger.TotalCostNoBattery+slack+1e-6)
	})
}

func TestRunRecovery(t *testing.T) {
	ctx := context.Background()
	h := horizon(t, []float64{0, 0, 0, 0}, []float64{1, 1, 1, 1}, []float64{1, 1, 1, 1})
	rate := 0.5

	cfg := testConfig(config.Capacity{Value: 10})
	cfg.Battery.DegradationRatePerHour = &rate

	t.Run("abort by default", func(t *testing.T) {
		_, err := New(nil).Run(ctx, h, cfg)
		var infeasible *strategy.InfeasibleError
		require.True(t, errors.As(err, &infeasible))
		assert.Equal(t, 0.5, infeasible.DegradationRatePerHour)
	})

	t.Run("idle when configured", func(t *testing.T) {
		idle := *cfg
		idle.Recovery = config.RecoveryIdle
		res, err := New(nil).Run(ctx, h, &idle)
		require.NoError(t, err)

		assert.True(t, res.Recovered)
		assert.Error(t, res.Cause)
		assert.Equal(t, strategy.NameIdle, res.Decision.Strategy)
		assert.Equal(t, res.Ledger.TotalCostNoBattery, res.Ledger.TotalCostWithBattery)
		assert.Equal(t, NoSavings, res.Verdict)
	})

	t.Run("input errors are never recovered", func(t *testing.T) {
		assert.False(t, Recoverable(&model.InputShapeError{Field: "pv"}))
		assert.True(t, Recoverable(fmt.Errorf("plan: %w", strategy.ErrSolverTimeout)))
	})
}

func TestSweep(t *testing.T) {
	h := horizon(t, []float64{0, 0, 0, 0}, []float64{0, 0, 6, 0}, []float64{1, 1, 5, 1})
	cfg := testConfig(config.Capacity{Value: 1})
	cfg.Sweep.Concurrency = 2

	cands, err := New(nil).Sweep(context.Background(), h, cfg, []float64{2, 6, 20})
	require.NoError(t, err)
	require.Len(t, cands, 3)

	// Savings are capped by the 6 kWh deficit, so the smallest battery wins
	// once investment is included.
	assert.Equal(t, 2.0, cands[0].Capacity)
	for _, c := range cands {
		require.NoError(t, c.Err)
		assert.Equal(t, c.Capacity, c.Result.Capacity)
	}
}

func TestDefaultSweepCapacities(t *testing.T) {
	h := horizon(t, []float64{0, 0, 0}, []float64{0, 8, 0}, []float64{1, 1, 1})
	caps := DefaultSweepCapacities(analysis.ComputeBaseline(h))
	require.Len(t, caps, 8)
	assert.InDelta(t, 2, caps[0], 1e-9)
	assert.InDelta(t, 16, caps[7], 1e-9)

	flat := horizon(t, []float64{5, 5}, []float64{1, 1}, []float64{1, 1})
	assert.Empty(t, DefaultSweepCapacities(analysis.ComputeBaseline(flat)))

	_, err := New(nil).Sweep(context.Background(), flat, testConfig(config.Capacity{Value: 1}), nil)
	assert.ErrorIs(t, err, ErrNoDeficit)
}
