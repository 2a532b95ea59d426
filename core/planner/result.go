package planner

import (
	"fmt"

	"staffplan/core/model"
)

// Algorithm selects a planning strategy.
type Algorithm string

const (
	AlgorithmGreedy  Algorithm = "greedy"
	AlgorithmILP     Algorithm = "ilp"
	AlgorithmILPPref Algorithm = "ilp-pref"
)

// ParseAlgorithm validates a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmGreedy, AlgorithmILP, AlgorithmILPPref:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unknown algorithm %q (want greedy, ilp or ilp-pref)", s)
	}
}

// Assignment provenance tags.
const (
	SourceGreedy   = "greedy"
	SourceILP      = "ilp"
	SourceILPPref  = "ilp-pref"
	SourceIdleFill = "idle-fill"
)

// Unstaffed reports an initiative the plan could not fully cover.
type Unstaffed struct {
	Initiative  string  `json:"initiative"`
	RequiredPW  float64 `json:"required_pw"`
	AvailablePW float64 `json:"available_pw"`
	Reason      string  `json:"reason"`
}

// Summary aggregates plan statistics. The solver fields are populated only by
// the ILP profiles.
type Summary struct {
	InitiativesConsidered int     `json:"initiatives_considered"`
	InitiativesPlanned    int     `json:"initiatives_planned"`
	InitiativesUnstaffed  int     `json:"initiatives_unstaffed"`
	TotalPersonWeeks      float64 `json:"total_person_weeks"`
	SolverStatus          string  `json:"solver_status,omitempty"`
	SolverObjective       float64 `json:"solver_objective,omitempty"`
	ModelVariables        int     `json:"model_variables,omitempty"`
	ModelConstraints      int     `json:"model_constraints,omitempty"`
}

// Result is the value returned by one planning call. It is never persisted by
// the engine; applying the assignments to storage is a caller decision.
type Result struct {
	Assignments []model.Assignment `json:"assignments"`
	Unstaffed   []Unstaffed        `json:"unstaffed"`
	Summary     Summary            `json:"summary"`
}
