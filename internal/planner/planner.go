// Package planner runs one end-to-end dispatch study: baseline, capacity
// resolution, optimization, recovery policy and post-solve evaluation.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"battery-dispatch/internal/analysis"
	"battery-dispatch/internal/config"
	"battery-dispatch/internal/ledger"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/milp"
	"battery-dispatch/internal/model"
	"battery-dispatch/internal/strategy"

	"github.com/google/uuid"
)

// ErrNoDeficit is returned when capacity is "auto" but PV covers the load in
// every hour, so there is nothing for a battery to serve.
var ErrNoDeficit = errors.New("capacity auto: load never exceeds pv, no battery to size")

type Verdict string

const (
	CostEffective Verdict = "COST_EFFECTIVE"
	NoSavings     Verdict = "NO_SAVINGS"
)

type Result struct {
	ID string

	Horizon  *model.Horizon
	Baseline analysis.Baseline
	Spec     model.BatterySpec
	Decision *model.DispatchDecision
	Ledger   *ledger.Result

	Verdict      Verdict
	CapacityAuto bool

	// Recovered is set when the optimizer failed and the idle schedule was
	// evaluated instead; Cause is the optimizer error.
	Recovered bool
	Cause     error

	SolveTime time.Duration
}

type Planner struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Planner {
	if log == nil {
		log = logger.Nop()
	}
	return &Planner{log: log}
}

// SolverOptions maps the solver config section onto branch-and-bound options.
func SolverOptions(c config.SolverConfig) milp.Options {
	return milp.Options{TimeLimit: c.TimeLimit, MaxNodes: c.MaxNodes}
}

// ResolveSpec picks the battery for a run. Auto capacity uses the baseline's
// suggested capacity.
func ResolveSpec(base analysis.Baseline, bc config.BatteryConfig) (model.BatterySpec, error) {
	capacity := 0.0
	if bc.Capacity.Auto {
		if base.SuggestedCapacity <= 0 {
			return model.BatterySpec{}, ErrNoDeficit
		}
		capacity = base.SuggestedCapacity
	}
	spec := bc.ToSpec(capacity)
	if err := spec.Validate(); err != nil {
		return model.BatterySpec{}, fmt.Errorf("battery spec: %w", err)
	}
	return spec, nil
}

// Run plans h under cfg. cfg must have defaults applied.
func (p *Planner) Run(ctx context.Context, h *model.Horizon, cfg *config.Config) (*Result, error) {
	if h == nil {
		return nil, errors.New("horizon is nil")
	}
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	id := uuid.NewString()
	log := p.log.With("run", id)

	base := analysis.ComputeBaseline(h)
	log.Infow("baseline",
		"hours", base.Hours,
		"total_cost_no_battery", base.Total,
		"suggested_capacity_kwh", base.SuggestedCapacity,
		"peak_hour", base.PeakHour,
	)

	spec, err := ResolveSpec(base, cfg.Battery)
	if err != nil {
		return nil, err
	}
	log.Infow("battery",
		"capacity_kwh", spec.Capacity,
		"auto", cfg.Battery.Capacity.Auto,
		"degradation_rate_per_hour", spec.DegradationRatePerHour,
		"end_capacity_kwh", spec.CapacityAtHour(h.Len()-1),
	)

	strat, err := strategy.New(cfg.Strategy.Name, SolverOptions(cfg.Solver))
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:           id,
		Horizon:      h,
		Baseline:     base,
		Spec:         spec,
		CapacityAuto: cfg.Battery.Capacity.Auto,
	}

	start := time.Now()
	decision, err := strat.Plan(ctx, h, spec)
	res.SolveTime = time.Since(start)
	if err != nil {
		if cfg.Recovery != config.RecoveryIdle || !Recoverable(err) {
			log.Errorw("optimization failed", "strategy", strat.Name(), "elapsed", res.SolveTime, "err", err)
			return nil, err
		}
		log.Warnw("optimization failed, evaluating idle schedule", "strategy", strat.Name(), "err", err)
		res.Recovered = true
		res.Cause = err
		decision, err = strategy.Idle{}.Plan(ctx, h, spec)
		if err != nil {
			return nil, err
		}
	} else {
		log.Infow("optimized", "strategy", strat.Name(), "nodes", decision.Nodes, "objective", decision.Objective, "elapsed", res.SolveTime)
	}
	res.Decision = decision

	led, err := ledger.Evaluate(h, spec, decision)
	if err != nil {
		return nil, err
	}
	res.Ledger = led
	res.Verdict = NoSavings
	if led.Savings > 0 {
		res.Verdict = CostEffective
	}

	log.Infow("evaluated",
		"verdict", res.Verdict,
		"total_cost_no_battery", led.TotalCostNoBattery,
		"total_cost_with_battery", led.TotalCostWithBattery,
		"savings", led.Savings,
		"investment", led.InvestmentCost,
		"clamped_slots", led.ClampedSlots,
	)
	return res, nil
}

// Recoverable reports whether err is an optimizer failure the idle recovery
// policy may replace. Input and configuration errors never are.
func Recoverable(err error) bool {
	var (
		infeasible *strategy.InfeasibleError
		solver     *strategy.SolverError
		anomaly    *strategy.NumericAnomalyError
	)
	return errors.Is(err, strategy.ErrSolverTimeout) ||
		errors.As(err, &infeasible) ||
		errors.As(err, &solver) ||
		errors.As(err, &anomaly)
}

// Sweep plans every configured sweep capacity with the run's other battery
// settings and returns candidates ranked by total cost including investment.
func (p *Planner) Sweep(ctx context.Context, h *model.Horizon, cfg *config.Config, capacities []float64) ([]analysis.Candidate, error) {
	if len(capacities) == 0 {
		capacities = cfg.Sweep.SweepCapacities()
	}
	if len(capacities) == 0 {
		capacities = DefaultSweepCapacities(analysis.ComputeBaseline(h))
	}
	if len(capacities) == 0 {
		return nil, ErrNoDeficit
	}
	base := cfg.Battery.ToSpec(1)
	opts := SolverOptions(cfg.Solver)

	p.log.Infow("sweep", "candidates", len(capacities), "concurrency", cfg.Sweep.Concurrency)
	solve := func(ctx context.Context, h *model.Horizon, spec model.BatterySpec) (*ledger.Result, error) {
		strat, err := strategy.New(cfg.Strategy.Name, opts)
		if err != nil {
			return nil, err
		}
		d, err := strat.Plan(ctx, h, spec)
		if err != nil {
			p.log.Warnw("sweep candidate failed", "capacity_kwh", spec.Capacity, "err", err)
			return nil, err
		}
		return ledger.Evaluate(h, spec, d)
	}
	return analysis.Sweep(ctx, h, base, capacities, cfg.Sweep.Concurrency, solve)
}

// DefaultSweepCapacities spans a quarter to twice the suggested capacity in
// eight steps. It is empty when there is no deficit to size for.
func DefaultSweepCapacities(base analysis.Baseline) []float64 {
	if base.SuggestedCapacity <= 0 {
		return nil
	}
	return analysis.LinearCapacities(base.SuggestedCapacity/4, base.SuggestedCapacity*2, 8)
}
