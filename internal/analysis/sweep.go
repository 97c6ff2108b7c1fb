package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"battery-dispatch/internal/ledger"
	"battery-dispatch/internal/model"

	"golang.org/x/sync/errgroup"
)

// SolveFunc plans and evaluates one battery over h. Implementations must not
// share solver state between calls.
type SolveFunc func(ctx context.Context, h *model.Horizon, spec model.BatterySpec) (*ledger.Result, error)

// Candidate is one capacity of a sweep. Err is set when that capacity could
// not be planned; the rest of the sweep still completes.
type Candidate struct {
	Capacity float64
	Result   *ledger.Result
	Err      error
}

// Sweep plans every capacity in capacities as an independent problem, at most
// limit at a time (limit <= 0 means GOMAXPROCS), and returns them ranked by
// RankByTotalCost. The horizon is shared read-only; each candidate gets its
// own copy of base with Capacity replaced.
func Sweep(ctx context.Context, h *model.Horizon, base model.BatterySpec, capacities []float64, limit int, solve SolveFunc) ([]Candidate, error) {
	if h == nil {
		return nil, errors.New("horizon is nil")
	}
	if solve == nil {
		return nil, errors.New("solve func is nil")
	}
	if len(capacities) == 0 {
		return nil, errors.New("no capacities to sweep")
	}
	for _, c := range capacities {
		if c <= 0 {
			return nil, fmt.Errorf("capacity %v must be > 0", c)
		}
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	out := make([]Candidate, len(capacities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range capacities {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			spec := base
			spec.Capacity = c
			res, err := solve(gctx, h, spec)
			out[i] = Candidate{Capacity: c, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	RankByTotalCost(out)
	return out, nil
}

// RankByTotalCost sorts candidates by total cost including the battery
// investment, cheapest first. Failed candidates go last in capacity order.
func RankByTotalCost(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return a.Capacity < b.Capacity
		}
		if a.Result.TotalCostWithInvestment != b.Result.TotalCostWithInvestment {
			return a.Result.TotalCostWithInvestment < b.Result.TotalCostWithInvestment
		}
		return a.Capacity < b.Capacity
	})
}

// LinearCapacities returns n evenly spaced capacities from lo to hi inclusive.
func LinearCapacities(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	return out
}
