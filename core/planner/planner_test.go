package planner

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"staffplan/core/calendar"
	"staffplan/core/model"
	"staffplan/core/storage"
	memstore "staffplan/infra/storage/memory"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return d
}

func member(name string, hours int, squad string) model.Member {
	return model.Member{Name: name, Pool: model.PoolFeature, ContractedHours: hours, SquadLabel: squad, Active: true}
}

func initiative(name string, priority int, estimate float64) model.Initiative {
	return model.Initiative{
		Name:     name,
		Phase:    model.PhaseImplementation,
		State:    model.StateOpen,
		Priority: priority,
		Budget:   model.BudgetRoadmap,
		RomPW:    model.Ptr(estimate),
	}
}

func newStore(t *testing.T, members []model.Member, inits []model.Initiative, pto []model.PTORecord, existing []model.Assignment) storage.Adapter {
	t.Helper()
	ctx := context.Background()
	a := memstore.New()
	require.NoError(t, a.UpsertMembers(ctx, members))
	require.NoError(t, a.UpsertInitiatives(ctx, inits))
	require.NoError(t, a.UpsertPTO(ctx, pto))
	require.NoError(t, a.UpsertAssignments(ctx, existing))
	return a
}

func defaultConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

func plan(t *testing.T, a storage.Adapter, from, to string, alg Algorithm, recreate bool) *Result {
	t.Helper()
	res, err := Plan(context.Background(), a, day(t, from), day(t, to), alg, recreate, defaultConfig(), nil)
	if err != nil {
		t.Fatalf("Plan(%s): %v", alg, err)
	}
	return res
}

func weeksOf(res *Result, initName string) []string {
	var out []string
	for _, a := range res.Assignments {
		if a.InitiativeName == initName {
			out = append(out, calendar.FormatDate(a.WeekStart))
		}
	}
	return out
}

func TestGreedyFillsEarliestWeeksFirst(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("rollout", 1, 2)},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmGreedy, false)

	require.Empty(t, res.Unstaffed)
	require.Equal(t, []string{"2026-01-05", "2026-01-12"}, weeksOf(res, "rollout"))
	require.Equal(t, 2.0, res.Summary.TotalPersonWeeks)
	for _, as := range res.Assignments {
		require.Equal(t, SourceGreedy, as.Source)
		require.NotNil(t, as.CapacityPW)
	}
}

func TestGreedyPTOShiftsAssignments(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("rollout", 1, 2)},
		[]model.PTORecord{{MemberName: "alice", Type: model.PTOHoliday, WeekStart: day(t, "2026-01-05")}},
		nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmGreedy, false)

	require.Equal(t, []string{"2026-01-12", "2026-01-19"}, weeksOf(res, "rollout"))
}

func TestGreedyAllOrNothing(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("moonshot", 1, 5)},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmGreedy, false)

	require.Empty(t, res.Assignments, "under-target initiatives keep no assignments")
	require.Len(t, res.Unstaffed, 1)
	u := res.Unstaffed[0]
	require.Equal(t, "moonshot", u.Initiative)
	require.Equal(t, 5.0, u.RequiredPW)
	require.Equal(t, 3.0, u.AvailablePW)
	require.Equal(t, "Not enough capacity in window (no partial completion).", u.Reason)
	require.Equal(t, 0, res.Summary.InitiativesPlanned)
}

func TestGreedySquadBlockedBySingleMemberPTO(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "pod"), member("bob", 40, "pod")},
		[]model.Initiative{initiative("rollout", 1, 4)},
		[]model.PTORecord{{MemberName: "bob", Type: model.PTOSick, WeekStart: day(t, "2026-01-05")}},
		nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmGreedy, false)

	// Week 1 is skipped entirely, then the squad lands as a unit.
	require.ElementsMatch(t, []string{"2026-01-12", "2026-01-12"}, weeksOf(res, "rollout")[:2])
	for _, as := range res.Assignments {
		require.NotEqual(t, "2026-01-05", calendar.FormatDate(as.WeekStart))
	}
	byWeek := make(map[string]int)
	for _, as := range res.Assignments {
		byWeek[calendar.FormatDate(as.WeekStart)]++
	}
	for wk, n := range byWeek {
		require.Equal(t, 2, n, "squad must staff whole in week %s", wk)
	}
}

func TestGreedyPriorityOrdering(t *testing.T) {
	urgent := initiative("urgent", 1, 1)
	casual := initiative("casual", 3, 1)
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{casual, urgent},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-12", AlgorithmGreedy, false)

	require.Equal(t, []string{"2026-01-05"}, weeksOf(res, "urgent"))
	require.Equal(t, []string{"2026-01-12"}, weeksOf(res, "casual"))
}

func TestGreedyExistingAssignmentsCountUnlessRecreate(t *testing.T) {
	existing := []model.Assignment{{
		MemberName:     "alice",
		InitiativeName: "rollout",
		WeekStart:      day(t, "2026-01-05"),
		Source:         SourceGreedy,
	}}
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("rollout", 1, 2)},
		nil, existing)

	incremental := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmGreedy, false)
	require.Equal(t, []string{"2026-01-12"}, weeksOf(incremental, "rollout"),
		"existing week occupies the slot and counts toward the target")

	rebuilt := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmGreedy, true)
	require.Equal(t, []string{"2026-01-05", "2026-01-12"}, weeksOf(rebuilt, "rollout"))
}

func TestEstimatelessInitiativeExcludedEverywhere(t *testing.T) {
	noEstimate := model.Initiative{Name: "vague", State: model.StateOpen, Priority: 1}
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{noEstimate, initiative("rollout", 2, 1)},
		nil, nil)

	for _, alg := range []Algorithm{AlgorithmGreedy, AlgorithmILP, AlgorithmILPPref} {
		res := plan(t, a, "2026-01-05", "2026-01-12", alg, false)
		require.Empty(t, weeksOf(res, "vague"), "%s must not staff an estimate-less initiative", alg)
		for _, u := range res.Unstaffed {
			require.NotEqual(t, "vague", u.Initiative, "%s must not report it unstaffed either", alg)
		}
		require.Equal(t, 1, res.Summary.InitiativesConsidered)
	}
}

func TestILPCompletesWithinWindow(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("rollout", 1, 2)},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmILP, false)

	require.Equal(t, "Optimal", res.Summary.SolverStatus)
	require.Empty(t, res.Unstaffed)
	require.Equal(t, 2.0, res.Summary.TotalPersonWeeks)
	require.Positive(t, res.Summary.ModelVariables)
	require.Positive(t, res.Summary.ModelConstraints)
	for _, as := range res.Assignments {
		require.Equal(t, SourceILP, as.Source)
	}
}

func TestILPReportsPartialAsUnstaffed(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("moonshot", 1, 5)},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmILP, false)

	require.Len(t, res.Unstaffed, 1)
	u := res.Unstaffed[0]
	require.Equal(t, "moonshot", u.Initiative)
	require.Equal(t, 5.0, u.RequiredPW)
	require.Equal(t, "Not fully staffed in window", u.Reason)
	// Partial allocation is kept; only completion is all-or-nothing.
	require.Equal(t, 3.0, res.Summary.TotalPersonWeeks)
}

func TestILPMemberWeekCapacityNeverExceeded(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 20, "")},
		[]model.Initiative{initiative("one", 1, 1), initiative("two", 2, 1)},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-26", AlgorithmILP, false)

	perWeek := make(map[string]float64)
	for _, as := range res.Assignments {
		perWeek[calendar.FormatDate(as.WeekStart)] += *as.CapacityPW
	}
	for wk, total := range perWeek {
		require.LessOrEqual(t, total, 0.5+1e-9, "week %s over capacity", wk)
	}
}

func TestILPDependencyOrdersActivity(t *testing.T) {
	child := initiative("deploy", 1, 1)
	child.DependsOn = []string{"build"}
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{child, initiative("build", 1, 1)},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmILP, false)

	buildWeeks := weeksOf(res, "build")
	deployWeeks := weeksOf(res, "deploy")
	require.NotEmpty(t, buildWeeks)
	require.NotEmpty(t, deployWeeks)
	lastBuild := buildWeeks[0]
	for _, w := range buildWeeks {
		if w > lastBuild {
			lastBuild = w
		}
	}
	for _, w := range deployWeeks {
		require.Greater(t, w, lastBuild, "dependent work must start strictly after the dependency's last week")
	}
}

func TestILPDependencyOnUnplannableChildIsPruned(t *testing.T) {
	child := initiative("deploy", 1, 1)
	child.DependsOn = []string{"vague"}
	grandchild := initiative("announce", 1, 1)
	grandchild.DependsOn = []string{"deploy"}
	vague := model.Initiative{Name: "vague", State: model.StateOpen, Priority: 1}
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{child, grandchild, vague},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-19", AlgorithmILP, false)

	require.Equal(t, 0, res.Summary.InitiativesConsidered,
		"children of an unplannable dependency drop out transitively")
	require.Empty(t, res.Assignments)
}

func TestILPSquadSubsetEligibilityForbidsSquad(t *testing.T) {
	mixedA := member("alice", 40, "pod")
	mixedB := member("bob", 40, "pod")
	mixedB.Pool = model.PoolQA
	solo := member("carol", 40, "")
	init := initiative("rollout", 1, 1)
	init.OwnerPools = []model.Pool{model.PoolFeature}
	a := newStore(t,
		[]model.Member{mixedA, mixedB, solo},
		[]model.Initiative{init},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-05", AlgorithmILP, false)

	require.Empty(t, res.Unstaffed)
	for _, as := range res.Assignments {
		require.Equal(t, "carol", as.MemberName,
			"a squad with an ineligible member must not be staffed at all")
	}
}

func TestILPPrefFavorsPreferredSquad(t *testing.T) {
	// Two members, two one-week initiatives: both permutations complete
	// everything, but only bob-on-rollout collects the preference bonus.
	plain := member("alice", 40, "")
	preferred := member("bob", 40, "gold")
	rollout := initiative("rollout", 1, 1)
	rollout.PrefSquad = "gold"
	other := initiative("other", 1, 1)
	a := newStore(t,
		[]model.Member{plain, preferred},
		[]model.Initiative{rollout, other},
		nil, nil)

	res := plan(t, a, "2026-01-05", "2026-01-05", AlgorithmILPPref, false)

	require.Empty(t, res.Unstaffed)
	for _, as := range res.Assignments {
		if as.InitiativeName == "rollout" && as.Source == SourceILPPref {
			require.Equal(t, "bob", as.MemberName, "preferred squad member should carry the work")
		}
	}
}

func TestILPPrefStrictDependencyRequiresCompletion(t *testing.T) {
	// The dependency cannot complete inside the window, so the child must
	// not be active at all under the strict profile.
	child := initiative("deploy", 1, 1)
	child.DependsOn = []string{"moonshot"}
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{child, initiative("moonshot", 1, 5)},
		nil, nil)

	res, err := Plan(context.Background(), a, day(t, "2026-01-05"), day(t, "2026-01-19"),
		AlgorithmILPPref, false, defaultConfig(), nil)
	require.NoError(t, err)

	for _, as := range res.Assignments {
		if as.Source == SourceILPPref {
			require.NotEqual(t, "deploy", as.InitiativeName)
		}
	}
}

func TestIdleFillAssignsLeftoverCapacity(t *testing.T) {
	s := &snapshot{
		members:  []model.Member{member("alice", 40, "")},
		pto:      map[memberWeek]struct{}{},
		busy:     map[memberWeek]struct{}{},
		capacity: map[string]float64{"alice": 1},
		weeks:    calendar.Weeks(day(t, "2026-01-05"), day(t, "2026-01-19")),
	}
	dep := initiative("build", 1, 1)
	child := initiative("deploy", 2, 1)
	child.DependsOn = []string{"build"}
	inits := []model.Initiative{dep, child}
	targets := map[string]float64{"build": 1, "deploy": 1}

	out := idleFill(s, inits, targets, nil)

	require.Len(t, out, 2)
	require.Equal(t, "build", out[0].InitiativeName)
	require.Equal(t, "2026-01-05", calendar.FormatDate(out[0].WeekStart))
	require.Equal(t, "deploy", out[1].InitiativeName)
	require.Equal(t, "2026-01-12", calendar.FormatDate(out[1].WeekStart),
		"backfill honors dependency ordering")
	for _, as := range out {
		require.Equal(t, SourceIdleFill, as.Source)
	}
}

func TestIdleFillCapsAtRemainingNeed(t *testing.T) {
	s := &snapshot{
		members:  []model.Member{member("alice", 40, "")},
		pto:      map[memberWeek]struct{}{},
		busy:     map[memberWeek]struct{}{},
		capacity: map[string]float64{"alice": 1},
		weeks:    calendar.Weeks(day(t, "2026-01-05"), day(t, "2026-01-12")),
	}
	inits := []model.Initiative{initiative("small", 1, 0.5)}
	targets := map[string]float64{"small": 0.5}

	out := idleFill(s, inits, targets, nil)

	require.Len(t, out, 1)
	require.Equal(t, 0.5, *out[0].CapacityPW)
}

func TestPlanDeterministic(t *testing.T) {
	members := []model.Member{member("alice", 40, ""), member("bob", 40, ""), member("carol", 20, "")}
	inits := []model.Initiative{
		initiative("one", 1, 2),
		initiative("two", 1, 2),
		initiative("three", 2, 3),
	}
	a := newStore(t, members, inits, nil, nil)

	for _, alg := range []Algorithm{AlgorithmGreedy, AlgorithmILP} {
		first := plan(t, a, "2026-01-05", "2026-01-26", alg, true)
		for i := 0; i < 3; i++ {
			again := plan(t, a, "2026-01-05", "2026-01-26", alg, true)
			if !reflect.DeepEqual(first.Assignments, again.Assignments) {
				t.Fatalf("%s: run %d produced different assignments", alg, i)
			}
		}
	}
}

func TestILPTimeLimitBoundsWallClock(t *testing.T) {
	// A multi-member, multi-week model with a tight limit: the run must come
	// back near the limit with a usable status even if the search is cut off
	// mid-relaxation.
	members := []model.Member{member("alice", 40, ""), member("bob", 40, ""), member("carol", 20, "")}
	inits := []model.Initiative{
		initiative("one", 1, 2),
		initiative("two", 1, 2),
		initiative("three", 2, 3),
	}
	a := newStore(t, members, inits, nil, nil)
	cfg := defaultConfig()
	cfg.ILP.TimeLimitS = 5

	start := time.Now()
	res, err := Plan(context.Background(), a, day(t, "2026-01-05"), day(t, "2026-01-26"),
		AlgorithmILP, true, cfg, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Less(t, elapsed, 15*time.Second, "solve must stop near the configured limit")
	require.Contains(t, []string{"Optimal", "Feasible"}, res.Summary.SolverStatus)
	require.NotEmpty(t, res.Assignments)
}

func TestPlanRejectsUnknownAlgorithm(t *testing.T) {
	a := newStore(t, nil, nil, nil, nil)
	_, err := Plan(context.Background(), a, day(t, "2026-01-05"), day(t, "2026-01-12"),
		Algorithm("simulated-annealing"), false, defaultConfig(), nil)
	require.Error(t, err)
}

func TestPlanEmptyWindow(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("rollout", 1, 2)},
		nil, nil)

	// from after to yields no weeks and nothing staffable.
	res := plan(t, a, "2026-01-19", "2026-01-05", AlgorithmGreedy, false)
	require.Empty(t, res.Assignments)
	require.Len(t, res.Unstaffed, 1)
}

func TestValidateReferences(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("rollout", 1, 2)},
		nil, nil)

	problems, err := ValidateReferences(context.Background(), a, []model.Assignment{
		{MemberName: "alice", InitiativeName: "rollout"},
		{MemberName: "ghost", InitiativeName: "rollout"},
		{MemberName: "alice", InitiativeName: "phantom"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Unknown member: ghost", "Unknown initiative: phantom"}, problems)
}

func TestValidateDataset(t *testing.T) {
	cyclicA := initiative("a", 1, 1)
	cyclicA.DependsOn = []string{"b"}
	cyclicB := initiative("b", 1, 1)
	cyclicB.DependsOn = []string{"a"}
	dangling := initiative("c", 1, 1)
	dangling.DependsOn = []string{"ghost"}
	badPriority := initiative("d", 9, 1)

	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{cyclicA, cyclicB, dangling, badPriority},
		[]model.PTORecord{{MemberName: "nobody", Type: model.PTOOther, WeekStart: day(t, "2026-01-05")}},
		nil)

	problems, err := ValidateDataset(context.Background(), a)
	require.NoError(t, err)
	require.Contains(t, problems, "Initiative c depends on unknown initiative: ghost")
	require.Contains(t, problems, "Dependency cycle involving: a")
	require.Contains(t, problems, "PTO for unknown member: nobody")
	found := false
	for _, p := range problems {
		if strings.Contains(p, "priority 9 out of range") {
			found = true
		}
	}
	require.True(t, found, "invalid priority should be reported: %v", problems)
}

func TestValidateDatasetClean(t *testing.T) {
	a := newStore(t,
		[]model.Member{member("alice", 40, "")},
		[]model.Initiative{initiative("rollout", 1, 2)},
		nil, nil)

	problems, err := ValidateDataset(context.Background(), a)
	require.NoError(t, err)
	require.Empty(t, problems)
}

func TestRankInitiativesOrdering(t *testing.T) {
	early := initiative("early-deadline", 2, 1)
	early.RequiredBy = model.Ptr(day(t, "2026-02-02"))
	late := initiative("late-deadline", 2, 1)
	late.RequiredBy = model.Ptr(day(t, "2026-03-02"))
	none := initiative("no-deadline", 2, 1)
	top := initiative("top-priority", 1, 1)

	ranked := rankInitiatives([]model.Initiative{none, late, early, top})
	var names []string
	for _, i := range ranked {
		names = append(names, i.Name)
	}
	require.Equal(t, []string{"top-priority", "early-deadline", "late-deadline", "no-deadline"}, names)
}
