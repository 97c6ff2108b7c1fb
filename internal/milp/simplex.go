package milp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	errLPInfeasible = errors.New("lp: infeasible")
	errLPUnbounded  = errors.New("lp: unbounded")
)

const (
	// pivotTol is the smallest tableau entry accepted as a pivot.
	pivotTol = 1e-9
	// blandAfter is how many degenerate pivots in a row switch pricing to
	// Bland's rule until the objective moves again.
	blandAfter = 50
	// ctxEvery is how many iterations run between context checks.
	ctxEvery = 32
)

// lpRow is Σ coefs[k]·y[cols[k]] <= rhs, or == rhs when eq is set.
type lpRow struct {
	cols  []int
	coefs []float64
	rhs   float64
	eq    bool
}

// boundedLP is minimize cost·y subject to rows and 0 <= y <= upper.
// Upper entries may be +Inf.
type boundedLP struct {
	cost  []float64
	upper []float64
	rows  []lpRow
}

// tableau is a dense bounded-variable primal simplex. Column bounds are
// handled by the ratio test rather than by extra rows, and every row starts
// with its own slack or artificial column basic, so linearly dependent rows
// need no special handling: their artificials stay basic at zero.
type tableau struct {
	t       *mat.Dense // B⁻¹A, one row per constraint
	m, n    int
	nstruct int

	upper   []float64
	cost    []float64
	red     []float64 // reduced costs for the current phase
	basis   []int     // basic column of each row
	where   []int     // row of a basic column, -1 when nonbasic
	atUpper []bool
	xB      []float64
	art     []bool
	blocked []bool

	tol     float64
	maxIter int
}

func newTableau(p *boundedLP, tol float64) *tableau {
	m, ns := len(p.rows), len(p.cost)

	nslack, nart := 0, 0
	sign := make([]float64, m)
	for i, r := range p.rows {
		sign[i] = 1
		if r.rhs < 0 {
			sign[i] = -1
		}
		if !r.eq {
			nslack++
		}
		// A slack can start basic only with a +1 coefficient and rhs >= 0.
		if r.eq || sign[i] < 0 {
			nart++
		}
	}
	n := ns + nslack + nart

	tb := &tableau{
		t:       mat.NewDense(m, n, nil),
		m:       m,
		n:       n,
		nstruct: ns,
		upper:   make([]float64, n),
		cost:    make([]float64, n),
		red:     make([]float64, n),
		basis:   make([]int, m),
		where:   make([]int, n),
		atUpper: make([]bool, n),
		xB:      make([]float64, m),
		art:     make([]bool, n),
		blocked: make([]bool, n),
		tol:     tol,
		maxIter: 50*(m+n) + 1000,
	}
	copy(tb.upper, p.upper)
	for j := ns; j < n; j++ {
		tb.upper[j] = math.Inf(1)
	}
	for j := range tb.where {
		tb.where[j] = -1
	}

	slack, art := ns, ns+nslack
	for i, r := range p.rows {
		s := sign[i]
		for k, j := range r.cols {
			tb.t.Set(i, j, s*r.coefs[k])
		}
		tb.xB[i] = s * r.rhs

		if !r.eq {
			tb.t.Set(i, slack, s)
			if s > 0 {
				tb.basis[i] = slack
			}
			slack++
		}
		if r.eq || s < 0 {
			tb.t.Set(i, art, 1)
			tb.art[art] = true
			tb.basis[i] = art
			art++
		}
		tb.where[tb.basis[i]] = i
	}
	return tb
}

// solveBounded returns an optimal y for p, errLPInfeasible, errLPUnbounded,
// or the context's error once ctx is done.
func solveBounded(ctx context.Context, p *boundedLP, tol float64) ([]float64, error) {
	tb := newTableau(p, tol)

	infeasibility, scale := 0.0, 1.0
	for i, j := range tb.basis {
		if tb.art[j] {
			infeasibility += tb.xB[i]
		}
		scale = math.Max(scale, math.Abs(tb.xB[i]))
	}
	if infeasibility > 0 {
		for j := range tb.cost {
			if tb.art[j] {
				tb.cost[j] = 1
			}
		}
		tb.price()
		if err := tb.iterate(ctx); err != nil {
			if errors.Is(err, errLPUnbounded) {
				return nil, fmt.Errorf("lp: phase one unbounded")
			}
			return nil, err
		}
		infeasibility = 0
		for i, j := range tb.basis {
			if tb.art[j] {
				infeasibility += tb.xB[i]
			}
		}
		if infeasibility > 100*tol*scale {
			return nil, errLPInfeasible
		}
	}

	for j := range tb.cost {
		tb.cost[j] = 0
		if tb.art[j] {
			tb.upper[j] = 0
			tb.blocked[j] = true
		}
	}
	for i, j := range tb.basis {
		if tb.art[j] {
			tb.xB[i] = 0
		}
	}
	copy(tb.cost, p.cost)
	tb.price()
	if err := tb.iterate(ctx); err != nil {
		return nil, err
	}
	return tb.values(), nil
}

// price recomputes the reduced costs from scratch for the current basis.
func (tb *tableau) price() {
	copy(tb.red, tb.cost)
	for i, j := range tb.basis {
		if cb := tb.cost[j]; cb != 0 {
			floats.AddScaled(tb.red, -cb, tb.t.RawRowView(i))
		}
	}
	for _, j := range tb.basis {
		tb.red[j] = 0
	}
}

func (tb *tableau) iterate(ctx context.Context) error {
	degenerate := 0
	for iter := 0; ; iter++ {
		if iter%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if iter > tb.maxIter {
			return fmt.Errorf("lp: no convergence after %d iterations", iter)
		}

		q, dir := tb.entering(degenerate > blandAfter)
		if q < 0 {
			return nil
		}
		r, step := tb.leaving(q, dir, degenerate > blandAfter)
		if r < 0 && math.IsInf(tb.upper[q], 1) {
			return errLPUnbounded
		}
		if r < 0 || tb.upper[q] <= step {
			tb.flip(q, dir)
			degenerate = 0
			continue
		}
		// Driving a zero artificial out of the basis is progress even
		// though nothing moves; it can never come back.
		if step <= tb.tol && !tb.art[tb.basis[r]] {
			degenerate++
		} else {
			degenerate = 0
		}
		tb.pivot(r, q, dir, step)
	}
}

// entering picks a nonbasic column whose move improves the objective:
// the largest improvement rate, or the lowest index under Bland's rule.
// dir is +1 when the column rises from its lower bound and -1 when it
// falls from its upper bound.
func (tb *tableau) entering(bland bool) (int, float64) {
	best, bestDir, bestRate := -1, 0.0, 0.0
	for j := 0; j < tb.n; j++ {
		if tb.where[j] >= 0 || tb.blocked[j] || tb.upper[j] <= 0 {
			continue
		}
		dir, rate := 1.0, -tb.red[j]
		if tb.atUpper[j] {
			dir, rate = -1, tb.red[j]
		}
		if rate <= tb.tol {
			continue
		}
		if bland {
			return j, dir
		}
		if rate > bestRate {
			best, bestDir, bestRate = j, dir, rate
		}
	}
	return best, bestDir
}

// leaving runs the ratio test for column q moving in direction dir. It
// returns -1 when no basic variable limits the step.
func (tb *tableau) leaving(q int, dir float64, bland bool) (int, float64) {
	data, stride := tb.t.RawMatrix().Data, tb.t.RawMatrix().Stride
	r, step, bestPivot := -1, math.Inf(1), 0.0
	for i := 0; i < tb.m; i++ {
		g := dir * data[i*stride+q]
		var limit float64
		switch {
		case g > pivotTol:
			limit = tb.xB[i] / g
		case g < -pivotTol:
			u := tb.upper[tb.basis[i]]
			if math.IsInf(u, 1) {
				continue
			}
			limit = (u - tb.xB[i]) / -g
		default:
			continue
		}
		if limit < 0 {
			limit = 0
		}

		switch {
		case r < 0 || limit < step-tb.tol:
			r, step, bestPivot = i, limit, math.Abs(g)
		case limit <= step+tb.tol:
			// Ties go to the larger pivot, or the lower column under Bland.
			if (bland && tb.basis[i] < tb.basis[r]) || (!bland && math.Abs(g) > bestPivot) {
				r, step, bestPivot = i, limit, math.Abs(g)
			}
		}
	}
	return r, step
}

// flip moves nonbasic column q across to its other bound.
func (tb *tableau) flip(q int, dir float64) {
	data, stride := tb.t.RawMatrix().Data, tb.t.RawMatrix().Stride
	u := tb.upper[q]
	for i := 0; i < tb.m; i++ {
		if a := data[i*stride+q]; a != 0 {
			tb.xB[i] = nonNeg(tb.xB[i] - dir*u*a)
		}
	}
	tb.atUpper[q] = !tb.atUpper[q]
}

// pivot brings q into the basis in row r after moving it by step.
func (tb *tableau) pivot(r, q int, dir, step float64) {
	data, stride := tb.t.RawMatrix().Data, tb.t.RawMatrix().Stride
	alpha := data[r*stride+q]

	for i := 0; i < tb.m; i++ {
		if a := data[i*stride+q]; a != 0 && i != r {
			tb.xB[i] = nonNeg(tb.xB[i] - dir*step*a)
		}
	}
	entered := step
	if dir < 0 {
		entered = tb.upper[q] - step
	}

	out := tb.basis[r]
	tb.where[out] = -1
	tb.blocked[out] = tb.art[out]
	tb.atUpper[out] = dir*alpha < 0
	tb.basis[r], tb.where[q], tb.atUpper[q] = q, r, false
	tb.xB[r] = entered

	row := data[r*stride : r*stride+tb.n]
	floats.Scale(1/alpha, row)
	row[q] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		other := data[i*stride : i*stride+tb.n]
		if a := other[q]; a != 0 {
			floats.AddScaled(other, -a, row)
			other[q] = 0
		}
	}
	if d := tb.red[q]; d != 0 {
		floats.AddScaled(tb.red, -d, row)
		tb.red[q] = 0
	}
}

// values returns the structural columns of the current basic solution.
func (tb *tableau) values() []float64 {
	y := make([]float64, tb.nstruct)
	for j := range y {
		switch {
		case tb.where[j] >= 0:
			y[j] = tb.xB[tb.where[j]]
		case tb.atUpper[j]:
			y[j] = tb.upper[j]
		}
	}
	return y
}

// nonNeg clears round-off that would leave a basic value just below zero.
func nonNeg(x float64) float64 {
	if x < 0 && x > -1e-9 {
		return 0
	}
	return x
}
