// Package model defines the planning domain entities: members, initiatives,
// PTO records and assignments, together with their derived quantities.
package model

import (
	"fmt"
	"math"
	"time"
)

// Pool is the categorical member tag used for initiative eligibility.
type Pool string

const (
	PoolSolutioning Pool = "Solutioning"
	PoolFeature     Pool = "Feature"
	PoolOperability Pool = "Operability"
	PoolQA          Pool = "QA"
)

// Phase describes where an initiative sits in its lifecycle.
type Phase string

const (
	PhaseIdeaDiscovery  Phase = "Idea & Discovery"
	PhaseSolutioning    Phase = "Solutioning"
	PhaseImplementation Phase = "Implementation"
)

// State is the workflow state of an initiative.
type State string

const (
	StateOpen       State = "Open"
	StateInProgress State = "In progress"
	StateBlocked    State = "Blocked"
	StateDone       State = "Done"
)

// BudgetCategory classifies initiative spend.
type BudgetCategory string

const (
	BudgetRoadmap     BudgetCategory = "Roadmap"
	BudgetRun         BudgetCategory = "Run the business"
	BudgetTechRefresh BudgetCategory = "Tech Refresh"
)

// PTOType distinguishes absence kinds. Planning treats all of them the same:
// the whole week is blocked.
type PTOType string

const (
	PTOHoliday PTOType = "Holiday"
	PTOSick    PTOType = "Sick leave"
	PTOOther   PTOType = "Other"
)

// Member is a plannable person. Members sharing a SquadLabel are staffed as
// one atomic unit.
type Member struct {
	Name            string `json:"name"`
	Pool            Pool   `json:"pool"`
	ContractedHours int    `json:"contracted_hours"`
	SquadLabel      string `json:"squad_label,omitempty"`
	Active          bool   `json:"active"`
	Notes           string `json:"notes,omitempty"`
}

// WeeklyCapacityPW returns the member's capacity in person-weeks per week,
// contracted hours scaled against a 40 hour week, rounded to 3 decimals.
func (m Member) WeeklyCapacityPW() float64 {
	return math.Round(float64(m.ContractedHours)/40.0*1000) / 1000
}

// Validate checks that the member record is sound.
func (m Member) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("member name must not be empty")
	}
	if m.ContractedHours < 1 || m.ContractedHours > 168 {
		return fmt.Errorf("member %s: contracted_hours %d out of range [1,168]", m.Name, m.ContractedHours)
	}
	return nil
}

// Initiative is a unit of competing demand for member capacity.
type Initiative struct {
	Name       string         `json:"name"`
	Phase      Phase          `json:"phase"`
	State      State          `json:"state"`
	Priority   int            `json:"priority"` // 1 = most urgent, 5 = least
	Budget     BudgetCategory `json:"budget"`
	OwnerPools []Pool         `json:"owner_pools,omitempty"`
	RequiredBy *time.Time     `json:"required_by,omitempty"`
	StartAfter *time.Time     `json:"start_after,omitempty"`
	RomPW      *float64       `json:"rom_pw,omitempty"`
	GranularPW *float64       `json:"granular_pw,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	PrefSquad  string         `json:"pref_squad,omitempty"`
	SSOT       string         `json:"ssot,omitempty"`
}

// EffectiveEstimatePW returns the initiative's plannable size in person-weeks:
// the granular estimate when present, otherwise the ROM estimate. The second
// return is false when neither exists, which excludes the initiative from
// planning entirely.
func (i Initiative) EffectiveEstimatePW() (float64, bool) {
	if i.GranularPW != nil {
		return *i.GranularPW, true
	}
	if i.RomPW != nil {
		return *i.RomPW, true
	}
	return 0, false
}

// IsDone reports whether the initiative is in the Done state.
func (i Initiative) IsDone() bool {
	return i.State == StateDone
}

// Validate checks that the initiative record is sound.
func (i Initiative) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("initiative name must not be empty")
	}
	if i.Priority < 1 || i.Priority > 5 {
		return fmt.Errorf("initiative %s: priority %d out of range [1,5]", i.Name, i.Priority)
	}
	if i.RomPW != nil && *i.RomPW < 0 {
		return fmt.Errorf("initiative %s: rom_pw must be nonnegative", i.Name)
	}
	if i.GranularPW != nil && *i.GranularPW < 0 {
		return fmt.Errorf("initiative %s: granular_pw must be nonnegative", i.Name)
	}
	return nil
}

// PTORecord blocks a member's entire capacity for one week. WeekStart is the
// Monday of the blocked ISO week.
type PTORecord struct {
	MemberName string    `json:"member_name"`
	Type       PTOType   `json:"type"`
	WeekStart  time.Time `json:"week_start"`
	Comment    string    `json:"comment,omitempty"`
}

// Assignment staffs one member on one initiative for one week. CapacityPW,
// when set, is the allocated fraction of the member's week; Source records
// which pass produced the assignment.
type Assignment struct {
	MemberName     string    `json:"member_name"`
	InitiativeName string    `json:"initiative_name"`
	WeekStart      time.Time `json:"week_start"`
	CapacityPW     *float64  `json:"capacity_pw,omitempty"`
	Source         string    `json:"source,omitempty"`
}

// Round3 rounds a person-week quantity to 3 decimals, the precision used for
// stored capacities.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Ptr returns a pointer to v. Convenience for optional estimate fields.
func Ptr[T any](v T) *T { return &v }
