package milp

import "math"

// round tries to turn a fractional relaxation into a feasible point by
// flooring every fractional integer variable and then raising the ones that
// repair violated rows. Continuous variables keep their relaxed values.
//
// On failure it returns the fractional variables that appear in rows it could
// not repair.
func (s *search) round(x, lo, hi []float64) ([]float64, []int) {
	tol := s.opts.IntegralityTol
	y := clone(x)
	raisable := make(map[int]bool)
	for j, v := range s.m.vars {
		if !v.Integer {
			continue
		}
		f := math.Floor(y[j])
		if y[j]-f <= tol || math.Ceil(y[j])-y[j] <= tol {
			y[j] = math.Round(y[j])
			continue
		}
		y[j] = math.Max(lo[j], f)
		if math.Ceil(x[j]) <= hi[j] {
			raisable[j] = true
		}
	}

	for pass := 0; pass <= len(raisable); pass++ {
		changed := false
		for r, c := range s.m.cons {
			if s.m.Violation(r, y) <= s.opts.FeasibilityTol*math.Max(1, math.Abs(c.RHS)) {
				continue
			}
			for _, t := range c.Terms {
				if !raisable[t.Var] {
					continue
				}
				if (c.Sense == LessEq && t.Coef < 0) || (c.Sense == GreaterEq && t.Coef > 0) {
					y[t.Var] = math.Ceil(x[t.Var])
					delete(raisable, t.Var)
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}

	if s.m.Feasible(y, s.opts.FeasibilityTol) {
		return y, nil
	}

	seen := make(map[int]bool)
	var stuck []int
	for r, c := range s.m.cons {
		if s.m.Violation(r, y) <= s.opts.FeasibilityTol*math.Max(1, math.Abs(c.RHS)) {
			continue
		}
		for _, t := range c.Terms {
			v := s.m.vars[t.Var]
			if !v.Integer || seen[t.Var] {
				continue
			}
			if math.Abs(x[t.Var]-math.Round(x[t.Var])) > tol {
				seen[t.Var] = true
				stuck = append(stuck, t.Var)
			}
		}
	}
	return nil, stuck
}
