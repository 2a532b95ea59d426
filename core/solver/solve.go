package solver

import (
	"container/heap"
	"errors"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Status is the termination state of a solve.
type Status int

const (
	// StatusNotSolved means no feasible point was found before the limit.
	StatusNotSolved Status = iota
	// StatusOptimal means the incumbent is optimal within the gap tolerance.
	StatusOptimal
	// StatusFeasible means the time limit expired with an incumbent in hand.
	StatusFeasible
	// StatusInfeasible means the model admits no feasible point.
	StatusInfeasible
	// StatusUnbounded means the objective is unbounded above.
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusFeasible:
		return "Feasible"
	case StatusInfeasible:
		return "Infeasible"
	case StatusUnbounded:
		return "Unbounded"
	default:
		return "NotSolved"
	}
}

// Options bound a solve.
type Options struct {
	// TimeLimit caps wall-clock search time. Zero means unlimited.
	TimeLimit time.Duration
	// MIPGap is the relative optimality gap at which the search stops.
	MIPGap float64
	// Threads is the number of concurrent node workers. Values below 1
	// run a single worker.
	Threads int
}

// Solution carries the result of a solve. Values is indexed by Var and is
// nil when no feasible point was found.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
}

const (
	simplexTol = 1e-7
	intTol     = 1e-6
	boundTol   = 1e-9
)

type node struct {
	bound float64
	lb    []float64
	ub    []float64
	seq   int
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].bound != h[j].bound {
		return h[i].bound > h[j].bound
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type search struct {
	model *Model
	ints  []int

	mu        sync.Mutex
	cond      *sync.Cond
	open      nodeHeap
	inflight  int
	seq       int
	done      bool
	timedOut  bool
	unbounded bool

	hasIncumbent bool
	bestObj      float64
	bestX        []float64

	deadline    time.Time
	hasDeadline bool
	gap         float64
}

// Solve runs branch and bound over the model and never panics on an
// unsolvable model: contradictory constraints yield StatusInfeasible.
func (m *Model) Solve(opts Options) Solution {
	s := &search{
		model: m,
		ints:  m.integerVars(),
		gap:   opts.MIPGap,
	}
	s.cond = sync.NewCond(&s.mu)
	if opts.TimeLimit > 0 {
		s.deadline = time.Now().Add(opts.TimeLimit)
		s.hasDeadline = true
	}

	root := &node{bound: math.Inf(1), lb: m.lowerBounds(), ub: m.upperBounds()}
	heap.Push(&s.open, root)

	workers := opts.Threads
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.run()
		}()
	}
	wg.Wait()

	switch {
	case s.unbounded:
		return Solution{Status: StatusUnbounded}
	case s.hasIncumbent && s.timedOut:
		return Solution{Status: StatusFeasible, Objective: s.bestObj, Values: s.bestX}
	case s.hasIncumbent:
		return Solution{Status: StatusOptimal, Objective: s.bestObj, Values: s.bestX}
	case s.timedOut:
		return Solution{Status: StatusNotSolved}
	default:
		return Solution{Status: StatusInfeasible}
	}
}

func (s *search) run() {
	s.mu.Lock()
	for {
		if s.done {
			s.mu.Unlock()
			return
		}
		if len(s.open) == 0 {
			if s.inflight == 0 {
				s.done = true
				s.cond.Broadcast()
				s.mu.Unlock()
				return
			}
			s.cond.Wait()
			continue
		}
		if s.hasIncumbent && s.gapClosed(s.open[0].bound) {
			s.done = true
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
		nd := heap.Pop(&s.open).(*node)
		if s.hasIncumbent && nd.bound <= s.bestObj+boundTol {
			continue
		}
		s.inflight++
		s.mu.Unlock()

		relax, expired := s.boundedRelaxation(nd)

		s.mu.Lock()
		s.inflight--
		switch {
		case expired:
			s.timedOut = true
			s.done = true
		case relax.unbounded:
			s.unbounded = true
			s.done = true
		case relax.infeasible:
			// dead branch, nothing to do
		default:
			s.processNode(nd, relax)
		}
		s.cond.Broadcast()
	}
}

// boundedRelaxation solves the node relaxation under the search deadline.
// Without a deadline it runs inline. With one, the relaxation runs in its own
// goroutine and is abandoned when the clock runs out, so a single slow
// simplex cannot hold the solve past its time limit.
func (s *search) boundedRelaxation(nd *node) (relaxResult, bool) {
	if !s.hasDeadline {
		return s.model.solveRelaxation(nd.lb, nd.ub), false
	}
	remaining := time.Until(s.deadline)
	if remaining <= 0 {
		return relaxResult{}, true
	}
	ch := make(chan relaxResult, 1)
	go func() {
		ch <- s.model.solveRelaxation(nd.lb, nd.ub)
	}()
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case relax := <-ch:
		return relax, false
	case <-timer.C:
		return relaxResult{}, true
	}
}

// processNode is called with s.mu held.
func (s *search) processNode(nd *node, relax relaxResult) {
	if s.hasIncumbent && relax.obj <= s.bestObj+boundTol {
		return
	}
	branch := s.pickBranchVar(relax.x, nd.lb, nd.ub)
	if branch < 0 {
		// Integral point: new incumbent.
		if !s.hasIncumbent || relax.obj > s.bestObj {
			s.hasIncumbent = true
			s.bestObj = relax.obj
			s.bestX = roundIntegral(relax.x, s.ints)
		}
		return
	}
	val := relax.x[branch]
	down := &node{bound: relax.obj, lb: cloneBounds(nd.lb), ub: cloneBounds(nd.ub)}
	down.ub[branch] = math.Floor(val)
	up := &node{bound: relax.obj, lb: cloneBounds(nd.lb), ub: cloneBounds(nd.ub)}
	up.lb[branch] = math.Ceil(val)
	for _, child := range []*node{down, up} {
		if child.lb[branch] > child.ub[branch]+boundTol {
			continue
		}
		s.seq++
		child.seq = s.seq
		heap.Push(&s.open, child)
	}
}

// pickBranchVar returns the integer variable whose relaxation value is most
// fractional, or -1 when the point is integral on all integer variables.
func (s *search) pickBranchVar(x, lb, ub []float64) int {
	best := -1
	bestScore := intTol
	for _, i := range s.ints {
		if lb[i] == ub[i] {
			continue
		}
		frac := x[i] - math.Floor(x[i])
		score := math.Min(frac, 1-frac)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

func (s *search) gapClosed(bestBound float64) bool {
	if s.gap <= 0 {
		return false
	}
	if math.IsInf(bestBound, 1) {
		return false
	}
	denom := math.Max(1, math.Abs(s.bestObj))
	return (bestBound-s.bestObj)/denom <= s.gap
}

type relaxResult struct {
	obj        float64
	x          []float64
	infeasible bool
	unbounded  bool
}

// solveRelaxation solves the LP relaxation of the model under the given
// variable bounds. The program is assembled into simplex standard form
// directly: every variable is shifted by its lower bound so it is
// nonnegative, each LE row (GE rows are negated into LE first) gets one
// slack column, EQ rows stay single equality rows, and each finite upper
// bound becomes one slack row. This keeps the basis small and well
// conditioned; feeding bounds through general inequality conversion doubles
// every column and stalls the simplex on degenerate pivots.
func (m *Model) solveRelaxation(lb, ub []float64) relaxResult {
	n := len(m.vars)

	type row struct {
		coefs map[int]float64
		rhs   float64
		slack bool
	}
	var rows []row
	addRow := func(expr LinExpr, scale float64, rhs float64, slack bool) {
		coefs := make(map[int]float64, len(expr))
		for _, t := range expr {
			coefs[int(t.Var)] += scale * t.Coef
		}
		// Shift to the x' = x - lb space.
		for i, coef := range coefs {
			rhs -= coef * lb[i]
		}
		rows = append(rows, row{coefs: coefs, rhs: rhs, slack: slack})
	}
	for _, c := range m.cons {
		switch c.sense {
		case LE:
			addRow(c.expr, 1, c.rhs, true)
		case GE:
			addRow(c.expr, -1, -c.rhs, true)
		case EQ:
			addRow(c.expr, 1, c.rhs, false)
		}
	}
	nSlack := 0
	for i := 0; i < n; i++ {
		if lb[i] > ub[i]+boundTol {
			return relaxResult{infeasible: true}
		}
		if isFinite(ub[i]) {
			rows = append(rows, row{coefs: map[int]float64{i: 1}, rhs: ub[i] - lb[i], slack: true})
		}
	}
	for _, rw := range rows {
		if rw.slack {
			nSlack++
		}
	}

	if len(rows) == 0 {
		// Nothing binds: each variable sits at whichever bound its objective
		// coefficient favors.
		x := make([]float64, n)
		obj := 0.0
		for i := 0; i < n; i++ {
			v := lb[i]
			if i < len(m.obj) && m.obj[i] > 0 {
				if !isFinite(ub[i]) {
					return relaxResult{unbounded: true}
				}
				v = ub[i]
			}
			x[i] = v
			if i < len(m.obj) {
				obj += m.obj[i] * v
			}
		}
		return relaxResult{obj: obj, x: x}
	}

	cols := n + nSlack
	a := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	slackCol := n
	for r, rw := range rows {
		sign := 1.0
		if rw.rhs < 0 {
			sign = -1 // standard form wants nonnegative right-hand sides
		}
		for i, coef := range rw.coefs {
			a.Set(r, i, sign*coef)
		}
		if rw.slack {
			a.Set(r, slackCol, sign)
			slackCol++
		}
		b[r] = sign * rw.rhs
	}

	// Simplex minimizes, the model maximizes. Slack columns carry no cost.
	c := make([]float64, cols)
	objOffset := 0.0
	for i, coef := range m.obj {
		c[i] = -coef
		objOffset += coef * lb[i]
	}

	optF, sol, err := lp.Simplex(c, a, b, simplexTol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return relaxResult{infeasible: true}
		case errors.Is(err, lp.ErrUnbounded):
			for i := 0; i < n; i++ {
				if !isFinite(ub[i]) {
					return relaxResult{unbounded: true}
				}
			}
			// A model with finite bounds on every variable cannot be
			// unbounded; the report is numerical. Drop the branch.
			return relaxResult{infeasible: true}
		default:
			// Numerical failure: treat the branch as dead rather than crash.
			return relaxResult{infeasible: true}
		}
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		v := lb[i] + sol[i]
		if v < lb[i] {
			v = lb[i]
		}
		if isFinite(ub[i]) && v > ub[i] {
			v = ub[i]
		}
		x[i] = v
	}
	return relaxResult{obj: objOffset - optF, x: x}
}

func cloneBounds(b []float64) []float64 {
	out := make([]float64, len(b))
	copy(out, b)
	return out
}

func roundIntegral(x []float64, ints []int) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for _, i := range ints {
		out[i] = math.Round(out[i])
	}
	return out
}
