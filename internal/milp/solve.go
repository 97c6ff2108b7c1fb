package milp

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Status reports how a solve ended.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	TimedOut
	NodeLimit
	Failed
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case TimedOut:
		return "timed_out"
	case NodeLimit:
		return "node_limit"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Options tunes the branch and bound search. Zero values pick defaults.
type Options struct {
	// TimeLimit bounds wall time. Zero means only the context bounds it.
	TimeLimit time.Duration
	// MaxNodes bounds the number of relaxations solved.
	MaxNodes int

	IntegralityTol float64
	FeasibilityTol float64
	GapTol         float64
}

const (
	DefaultMaxNodes       = 10000
	DefaultIntegralityTol = 1e-6
	DefaultFeasibilityTol = 1e-7
	DefaultGapTol         = 1e-9

	simplexTol = 1e-9
)

func (o Options) withDefaults() Options {
	if o.MaxNodes <= 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	if o.IntegralityTol <= 0 {
		o.IntegralityTol = DefaultIntegralityTol
	}
	if o.FeasibilityTol <= 0 {
		o.FeasibilityTol = DefaultFeasibilityTol
	}
	if o.GapTol <= 0 {
		o.GapTol = DefaultGapTol
	}
	return o
}

// Solution is the result of Solve. Values and Objective are only meaningful
// when Status is Optimal, or when a limit was hit after an incumbent was found
// (HasIncumbent).
type Solution struct {
	Status       Status
	Objective    float64
	Values       []float64
	Nodes        int
	HasIncumbent bool
	Err          error
}

func (s *Solution) Value(v int) float64 { return s.Values[v] }

// Solve minimizes the model's objective with LP-based branch and bound.
//
// The search runs in its own goroutine. If ctx is cancelled or the time limit
// expires first, Solve returns TimedOut with the best incumbent so far, if any,
// without waiting for the relaxation in flight. That relaxation notices the
// cancellation within a few simplex iterations and the goroutine exits.
func Solve(ctx context.Context, m *Model, opts Options) (*Solution, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	s := newSearch(m, opts)
	done := make(chan *Solution, 1)
	go func() {
		done <- s.run(ctx)
	}()

	select {
	case sol := <-done:
		return sol, nil
	case <-ctx.Done():
		return s.snapshot(TimedOut, ctx.Err()), nil
	}
}

type node struct {
	lo, hi []float64
	bound  float64
}

type search struct {
	m    *Model
	opts Options

	mu        sync.Mutex
	incumbent []float64
	incObj    float64
	nodes     int
}

func newSearch(m *Model, opts Options) *search {
	return &search{m: m, opts: opts, incObj: math.Inf(1)}
}

func (s *search) snapshot(status Status, err error) *Solution {
	s.mu.Lock()
	defer s.mu.Unlock()
	sol := &Solution{Status: status, Nodes: s.nodes, Err: err}
	if s.incumbent != nil {
		sol.HasIncumbent = true
		sol.Values = clone(s.incumbent)
		sol.Objective = s.incObj
	}
	return sol
}

func (s *search) bestObjective() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incObj
}

func (s *search) run(ctx context.Context) *Solution {
	lo, hi := s.m.bounds()
	stack := []node{{lo: lo, hi: hi, bound: math.Inf(-1)}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return s.snapshot(TimedOut, ctx.Err())
		}
		if s.nodeCount() >= s.opts.MaxNodes {
			return s.snapshot(NodeLimit, nil)
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= s.bestObjective()-s.opts.GapTol {
			continue
		}

		nodes := s.countNode()
		rel, err := solveRelaxation(ctx, s.m, nd.lo, nd.hi, simplexTol)
		if err != nil {
			if ctx.Err() != nil {
				return s.snapshot(TimedOut, ctx.Err())
			}
			return s.snapshot(Failed, err)
		}
		switch rel.status {
		case relaxInfeasible:
			continue
		case relaxUnbounded:
			if nodes == 1 {
				return s.snapshot(Unbounded, nil)
			}
			continue
		}
		if rel.obj >= s.bestObjective()-s.opts.GapTol {
			continue
		}

		frac := s.fractional(rel.x)
		if len(frac) == 0 {
			s.accept(rel.x)
			continue
		}

		rounded, stuck := s.round(rel.x, nd.lo, nd.hi)
		if rounded != nil {
			obj := s.m.Objective(rounded)
			if obj < s.bestObjective() {
				s.accept(rounded)
			}
			if obj <= rel.obj+s.opts.GapTol {
				continue
			}
		}

		v := s.pickBranch(rel.x, frac, stuck)
		val := rel.x[v]
		down := node{lo: clone(nd.lo), hi: clone(nd.hi), bound: rel.obj}
		down.hi[v] = math.Floor(val)
		up := node{lo: clone(nd.lo), hi: clone(nd.hi), bound: rel.obj}
		up.lo[v] = math.Ceil(val)
		if val-math.Floor(val) < 0.5 {
			stack = append(stack, up, down)
		} else {
			stack = append(stack, down, up)
		}
	}

	if math.IsInf(s.bestObjective(), 1) {
		return s.snapshot(Infeasible, nil)
	}
	return s.snapshot(Optimal, nil)
}

func (s *search) nodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes
}

func (s *search) countNode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes++
	return s.nodes
}

// accept records x as the new incumbent with integer variables snapped.
func (s *search) accept(x []float64) {
	y := clone(x)
	for j, v := range s.m.vars {
		if v.Integer {
			y[j] = math.Round(y[j])
		}
	}
	obj := s.m.Objective(y)
	s.mu.Lock()
	s.incumbent = y
	s.incObj = obj
	s.mu.Unlock()
}

func (s *search) fractional(x []float64) []int {
	var out []int
	for j, v := range s.m.vars {
		if !v.Integer {
			continue
		}
		if math.Abs(x[j]-math.Round(x[j])) > s.opts.IntegralityTol {
			out = append(out, j)
		}
	}
	return out
}

// pickBranch prefers the most fractional variable among those that blocked
// rounding, falling back to the most fractional overall.
func (s *search) pickBranch(x []float64, frac, stuck []int) int {
	cands := frac
	if len(stuck) > 0 {
		cands = stuck
	}
	best, bestDist := cands[0], -1.0
	for _, j := range cands {
		f := x[j] - math.Floor(x[j])
		if d := math.Min(f, 1-f); d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
