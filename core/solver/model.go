// Package solver implements a small mixed-integer programming backend:
// maximize a linear objective subject to linear constraints over continuous
// and binary variables. Relaxations are solved with gonum's simplex method
// and integrality is enforced by best-first branch and bound.
//
// The contract mirrors an external MIP solver: a wall-clock time limit, a
// relative gap tolerance and a worker count bound the search, and Solve
// always returns a status-bearing Solution instead of failing — on timeout
// the best incumbent is returned with a non-optimal status.
package solver

import "math"

// Var is a handle to a model variable. Handles are dense integer IDs, valid
// as indexes into Solution.Values.
type Var int

// Sense is the comparison direction of a constraint.
type Sense int

const (
	LE Sense = iota // expr <= rhs
	GE              // expr >= rhs
	EQ              // expr == rhs
)

// Term is one coefficient of a linear expression.
type Term struct {
	Var  Var
	Coef float64
}

// LinExpr is a linear combination of variables.
type LinExpr []Term

type variable struct {
	name    string
	integer bool
	lb, ub  float64
}

type constraint struct {
	expr  LinExpr
	sense Sense
	rhs   float64
}

// Model is a mutable MIP under construction. It is not safe for concurrent
// mutation; Solve must be called after the model is fully built.
type Model struct {
	name string
	vars []variable
	cons []constraint
	obj  []float64
}

// NewModel returns an empty maximization model.
func NewModel(name string) *Model {
	return &Model{name: name}
}

// AddContinuous adds a continuous variable bounded to [lb, ub]. Pass
// math.Inf(1) for an unbounded upper end.
func (m *Model) AddContinuous(name string, lb, ub float64) Var {
	m.vars = append(m.vars, variable{name: name, lb: lb, ub: ub})
	m.obj = append(m.obj, 0)
	return Var(len(m.vars) - 1)
}

// AddBinary adds a {0,1} variable.
func (m *Model) AddBinary(name string) Var {
	m.vars = append(m.vars, variable{name: name, integer: true, lb: 0, ub: 1})
	m.obj = append(m.obj, 0)
	return Var(len(m.vars) - 1)
}

// AddConstraint adds expr <sense> rhs to the model.
func (m *Model) AddConstraint(expr LinExpr, sense Sense, rhs float64) {
	m.cons = append(m.cons, constraint{expr: expr, sense: sense, rhs: rhs})
}

// Maximize sets the objective. Coefficients of variables repeated in expr
// accumulate; variables absent from expr keep coefficient zero.
func (m *Model) Maximize(expr LinExpr) {
	for i := range m.obj {
		m.obj[i] = 0
	}
	for _, t := range expr {
		m.obj[t.Var] += t.Coef
	}
}

// NumVariables returns the number of variables in the model.
func (m *Model) NumVariables() int { return len(m.vars) }

// NumConstraints returns the number of constraints added to the model.
func (m *Model) NumConstraints() int { return len(m.cons) }

// VarName returns the debug name of v. Names have no semantic role; they
// exist for introspection of infeasible or surprising models.
func (m *Model) VarName(v Var) string { return m.vars[v].name }

func (m *Model) integerVars() []int {
	var ids []int
	for i, v := range m.vars {
		if v.integer {
			ids = append(ids, i)
		}
	}
	return ids
}

func (m *Model) lowerBounds() []float64 {
	lbs := make([]float64, len(m.vars))
	for i, v := range m.vars {
		lbs[i] = v.lb
	}
	return lbs
}

func (m *Model) upperBounds() []float64 {
	ubs := make([]float64, len(m.vars))
	for i, v := range m.vars {
		ubs[i] = v.ub
	}
	return ubs
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
