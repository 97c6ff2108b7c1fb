package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type relaxStatus int

const (
	relaxOptimal relaxStatus = iota
	relaxInfeasible
	relaxUnbounded
)

type relaxation struct {
	status relaxStatus
	obj    float64
	x      []float64
}

// solveRelaxation solves the LP relaxation of m with the given per-variable
// bounds. Integer restrictions are ignored.
//
// Before the simplex runs, fixed variables are substituted out, rows left
// with one column become bounds on it, and columns that no row touches are
// set directly. Each remaining column is y = x - lo with 0 <= y <= hi - lo.
func solveRelaxation(ctx context.Context, m *Model, lo, hi []float64, tol float64) (*relaxation, error) {
	n := len(m.vars)
	x := make([]float64, n)
	col := make([]int, n)
	var upper []float64
	for j := 0; j < n; j++ {
		if lo[j] > hi[j]+tol {
			return &relaxation{status: relaxInfeasible}, nil
		}
		x[j] = lo[j]
		if hi[j]-lo[j] <= tol {
			col[j] = -1
			continue
		}
		col[j] = len(upper)
		upper = append(upper, hi[j]-lo[j])
	}

	rows := make([]lpRow, 0, len(m.cons))
	used := make([]bool, len(upper))
	for _, c := range m.cons {
		r := lpRow{rhs: c.RHS, eq: c.Sense == Equal}
		for _, t := range c.Terms {
			r.rhs -= t.Coef * lo[t.Var]
			if k := col[t.Var]; k >= 0 && t.Coef != 0 {
				r.cols = append(r.cols, k)
				r.coefs = append(r.coefs, t.Coef)
			}
		}
		if c.Sense == GreaterEq {
			r.rhs = -r.rhs
			for k := range r.coefs {
				r.coefs[k] = -r.coefs[k]
			}
		}

		scale := tol * math.Max(1, math.Abs(c.RHS))
		switch {
		case len(r.cols) == 0:
			// Nothing left to move: the row either holds or the node is infeasible.
			if (r.eq && math.Abs(r.rhs) > scale) || (!r.eq && r.rhs < -scale) {
				return &relaxation{status: relaxInfeasible}, nil
			}
			continue
		case len(r.cols) == 1 && !r.eq:
			k, a := r.cols[0], r.coefs[0]
			limit := r.rhs / a
			if a > 0 {
				if limit < -scale {
					return &relaxation{status: relaxInfeasible}, nil
				}
				upper[k] = math.Max(0, math.Min(upper[k], limit))
				continue
			}
			if limit <= 0 {
				// y >= limit is already implied by y >= 0.
				continue
			}
		}
		for _, k := range r.cols {
			used[k] = true
		}
		rows = append(rows, r)
	}

	// Columns that appear in no row sit on whichever bound the objective
	// prefers.
	compact := make([]int, len(upper))
	p := &boundedLP{}
	for j := 0; j < n; j++ {
		k := col[j]
		if k < 0 {
			continue
		}
		compact[k] = -1
		if used[k] {
			compact[k] = len(p.cost)
			p.cost = append(p.cost, m.obj[j])
			p.upper = append(p.upper, upper[k])
			continue
		}
		if m.obj[j] < 0 {
			if math.IsInf(upper[k], 1) {
				return &relaxation{status: relaxUnbounded}, nil
			}
			x[j] = lo[j] + upper[k]
		}
	}
	if len(rows) == 0 {
		return &relaxation{status: relaxOptimal, obj: m.Objective(x), x: x}, nil
	}
	for i := range rows {
		for k, c := range rows[i].cols {
			rows[i].cols[k] = compact[c]
		}
	}
	p.rows = rows

	y, err := solveBounded(ctx, p, tol)
	switch {
	case errors.Is(err, errLPInfeasible):
		return &relaxation{status: relaxInfeasible}, nil
	case errors.Is(err, errLPUnbounded):
		return &relaxation{status: relaxUnbounded}, nil
	case err != nil && ctx.Err() != nil:
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("lp relaxation (%d rows, %d columns): %w", len(rows), len(p.cost), err)
	}

	for j := 0; j < n; j++ {
		k := col[j]
		if k < 0 || compact[k] < 0 {
			continue
		}
		v := lo[j] + y[compact[k]]
		// Snap simplex round-off back onto the bounds.
		top := lo[j] + upper[k]
		if v < lo[j] || v-lo[j] <= tol {
			v = lo[j]
		}
		if v > top || top-v <= tol {
			v = top
		}
		x[j] = v
	}
	return &relaxation{status: relaxOptimal, obj: m.Objective(x), x: x}, nil
}
