// Package milp describes small mixed-integer linear programs and solves them
// by branch and bound over LP relaxations. Relaxations are solved by a
// bounded-variable simplex on a gonum dense tableau.
//
// A model is minimize cᵀx + offset subject to linear rows and per-variable
// bounds, where some variables are restricted to integers.
package milp

import (
	"errors"
	"fmt"
	"math"
)

// Sense is the comparison of a constraint row against its right-hand side.
type Sense int

const (
	LessEq Sense = iota
	Equal
	GreaterEq
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case Equal:
		return "=="
	case GreaterEq:
		return ">="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Var is a decision variable. Lower must be finite; Upper may be +Inf.
type Var struct {
	Name    string
	Lower   float64
	Upper   float64
	Integer bool
}

// Term is coef * x[Var].
type Term struct {
	Var  int
	Coef float64
}

// Constraint is Σ terms <sense> RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a MILP under construction. It is not safe for concurrent mutation;
// solving does not modify it.
type Model struct {
	Name   string
	vars   []Var
	obj    []float64
	offset float64
	cons   []Constraint
}

func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVar appends v and returns its index.
func (m *Model) AddVar(v Var) int {
	m.vars = append(m.vars, v)
	m.obj = append(m.obj, 0)
	return len(m.vars) - 1
}

// AddContinuous adds a continuous variable in [lower, upper].
func (m *Model) AddContinuous(name string, lower, upper float64) int {
	return m.AddVar(Var{Name: name, Lower: lower, Upper: upper})
}

// AddBinary adds an integer variable in {0, 1}.
func (m *Model) AddBinary(name string) int {
	return m.AddVar(Var{Name: name, Lower: 0, Upper: 1, Integer: true})
}

// AddConstraint appends a row and returns its index. Repeated variables are summed.
func (m *Model) AddConstraint(name string, sense Sense, rhs float64, terms ...Term) int {
	merged := make([]Term, 0, len(terms))
	seen := make(map[int]int, len(terms))
	for _, t := range terms {
		if k, ok := seen[t.Var]; ok {
			merged[k].Coef += t.Coef
			continue
		}
		seen[t.Var] = len(merged)
		merged = append(merged, t)
	}
	m.cons = append(m.cons, Constraint{Name: name, Terms: merged, Sense: sense, RHS: rhs})
	return len(m.cons) - 1
}

// SetObjective sets the objective coefficient of variable v.
func (m *Model) SetObjective(v int, coef float64) {
	m.obj[v] = coef
}

// AddObjectiveOffset adds a constant to the objective.
func (m *Model) AddObjectiveOffset(c float64) {
	m.offset += c
}

func (m *Model) NumVars() int { return len(m.vars) }
func (m *Model) NumConstraints() int { return len(m.cons) }
func (m *Model) Var(i int) Var { return m.vars[i] }
func (m *Model) Constraint(i int) Constraint { return m.cons[i] }
func (m *Model) ObjectiveCoef(i int) float64 { return m.obj[i] }
func (m *Model) ObjectiveOffset() float64 { return m.offset }

// Objective evaluates cᵀx + offset.
func (m *Model) Objective(x []float64) float64 {
	sum := m.offset
	for j, c := range m.obj {
		sum += c * x[j]
	}
	return sum
}

// Activity returns the left-hand side of row r at x.
func (m *Model) Activity(r int, x []float64) float64 {
	sum := 0.0
	for _, t := range m.cons[r].Terms {
		sum += t.Coef * x[t.Var]
	}
	return sum
}

// Violation is how far x is outside row r (0 when satisfied).
func (m *Model) Violation(r int, x []float64) float64 {
	c := m.cons[r]
	lhs := m.Activity(r, x)
	switch c.Sense {
	case LessEq:
		return math.Max(0, lhs-c.RHS)
	case GreaterEq:
		return math.Max(0, c.RHS-lhs)
	default:
		return math.Abs(lhs - c.RHS)
	}
}

// Feasible reports whether x satisfies every row and bound within tol
// (scaled by the magnitude of the right-hand side).
func (m *Model) Feasible(x []float64, tol float64) bool {
	for j, v := range m.vars {
		if x[j] < v.Lower-tol || x[j] > v.Upper+tol {
			return false
		}
	}
	for r := range m.cons {
		if m.Violation(r, x) > tol*math.Max(1, math.Abs(m.cons[r].RHS)) {
			return false
		}
	}
	return true
}

func (m *Model) validate() error {
	if len(m.vars) == 0 {
		return errors.New("milp: model has no variables")
	}
	for j, v := range m.vars {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			return fmt.Errorf("milp: variable %q: lower bound must be finite", v.Name)
		}
		if math.IsNaN(v.Upper) {
			return fmt.Errorf("milp: variable %q: upper bound is NaN", v.Name)
		}
		if v.Integer && (v.Lower != math.Trunc(v.Lower) || (!math.IsInf(v.Upper, 1) && v.Upper != math.Trunc(v.Upper))) {
			return fmt.Errorf("milp: integer variable %q has fractional bounds", v.Name)
		}
		if math.IsNaN(m.obj[j]) || math.IsInf(m.obj[j], 0) {
			return fmt.Errorf("milp: variable %q: objective coefficient is not finite", v.Name)
		}
	}
	for _, c := range m.cons {
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("milp: constraint %q: right-hand side is not finite", c.Name)
		}
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= len(m.vars) {
				return fmt.Errorf("milp: constraint %q references unknown variable %d", c.Name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("milp: constraint %q: coefficient is not finite", c.Name)
			}
		}
	}
	return nil
}

func (m *Model) bounds() (lo, hi []float64) {
	lo = make([]float64, len(m.vars))
	hi = make([]float64, len(m.vars))
	for j, v := range m.vars {
		lo[j], hi[j] = v.Lower, v.Upper
	}
	return lo, hi
}
