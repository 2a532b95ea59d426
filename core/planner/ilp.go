package planner

import (
	"fmt"
	"math"
	"time"

	"staffplan/core/calendar"
	"staffplan/core/logger"
	"staffplan/core/model"
	"staffplan/core/solver"
)

// objectivePolicy parameterizes the shared ILP scaffold. The two profiles
// differ only in objective terms and in how strictly dependency edges gate
// a child's activity.
type objectivePolicy struct {
	source string
	// strictDependencies requires a dependency to be fully staffed
	// (z[dep]=1) before the child may be active in any week. Without it,
	// the child only has to wait until the dependency's activity has
	// permanently ceased.
	strictDependencies bool

	completionWeight        func(priority int) float64
	utilizationWeight       float64
	earlyWeekBonus          float64
	memberTransitionPenalty float64
	spanTransitionPenalty   float64
	activeWeekPenalty       float64
	breadthWeight           float64
	prefSquadBonus          float64
	deadlinePenaltyPerWeek  float64
	roadmapTargetRatio      float64
	roadmapDeviationPenalty float64
}

func standardPolicy(w ILPWeights) objectivePolicy {
	return objectivePolicy{
		source: SourceILP,
		completionWeight: func(priority int) float64 {
			return w.CompletePriorityWeight * float64(6-priority)
		},
		utilizationWeight:       1.0,
		earlyWeekBonus:          w.EarlyWeekBonus,
		memberTransitionPenalty: w.MemberChunkTransitionPenalty,
		spanTransitionPenalty:   w.InitSpanTransitionPenalty,
		activeWeekPenalty:       w.InitActiveWeekPenalty,
	}
}

func preferencePolicy(w ILPPrefWeights) objectivePolicy {
	return objectivePolicy{
		source:             SourceILPPref,
		strictDependencies: true,
		completionWeight: func(priority int) float64 {
			base := w.CompletionWeightBase * float64(6-priority)
			if priority == 1 {
				base *= w.Priority1Multiplier
			}
			return base
		},
		utilizationWeight:       w.UtilizationWeight,
		breadthWeight:           w.BreadthWeight,
		prefSquadBonus:          w.PrefSquadBonus,
		deadlinePenaltyPerWeek:  w.DeadlinePenaltyPerWeek,
		roadmapTargetRatio:      w.RoadmapTargetRatio,
		roadmapDeviationPenalty: w.RoadmapDeviationPenalty,
	}
}

// solveLimits are the caller-supplied solver bounds.
type solveLimits struct {
	timeLimit time.Duration
	gap       float64
	threads   int
}

// initWeek keys initiative-level per-week variables.
type initWeek struct {
	init string
	week int
}

// decision is one admissible (member, initiative, week) triple and its
// variable handles. Triples failing pool eligibility, PTO, occupancy or
// start_after never become variables at all.
type decision struct {
	member    model.Member
	init      string
	week      int
	y         solver.Var // allocated person-weeks, [0, cap]
	x         solver.Var // assignment indicator
	roadmap   bool
	prefMatch bool
}

// ilpBuild holds the scaffold shared by both profiles: flat decision slices
// with composite-key side indexes into them.
type ilpBuild struct {
	m   *solver.Model
	s   *snapshot
	pol objectivePolicy

	inits  []model.Initiative
	target map[string]float64

	decisions    []decision
	byMemberWeek map[memberWeek][]int
	byInit       map[string][]int
	byInitWeek   map[initWeek][]int

	yActive  map[initWeek]solver.Var
	z        map[string]solver.Var
	pPlanned map[string]solver.Var

	obj solver.LinExpr
}

// consideredInitiatives filters the snapshot down to the ILP's target set:
// initiatives with an effective estimate whose whole dependency chain also
// has one. Pruning runs to a fixpoint so transitive children drop out too.
func consideredInitiatives(s *snapshot) ([]model.Initiative, map[string]float64) {
	target := s.targets()
	for {
		removed := false
		for _, i := range s.inits {
			if _, ok := target[i.Name]; !ok {
				continue
			}
			for _, dep := range i.DependsOn {
				if _, ok := target[dep]; !ok {
					delete(target, i.Name)
					removed = true
					break
				}
			}
		}
		if !removed {
			break
		}
	}
	var considered []model.Initiative
	for _, i := range s.inits {
		if _, ok := target[i.Name]; ok {
			considered = append(considered, i)
		}
	}
	return rankInitiatives(considered), target
}

func newILPBuild(s *snapshot, pol objectivePolicy) *ilpBuild {
	inits, target := consideredInitiatives(s)
	return &ilpBuild{
		m:            solver.NewModel("staffplan_" + pol.source),
		s:            s,
		pol:          pol,
		inits:        inits,
		target:       target,
		byMemberWeek: make(map[memberWeek][]int),
		byInit:       make(map[string][]int),
		byInitWeek:   make(map[initWeek][]int),
		yActive:      make(map[initWeek]solver.Var),
		z:            make(map[string]solver.Var),
		pPlanned:     make(map[string]solver.Var),
	}
}

func (b *ilpBuild) addDecisionVariables() {
	for _, init := range b.inits {
		allowed := AllowedPoolMembers(b.s.members, init)
		for w, wk := range b.s.weeks {
			if init.StartAfter != nil && init.StartAfter.After(wk) {
				continue
			}
			for _, m := range b.s.members {
				if _, ok := allowed[m.Name]; !ok {
					continue
				}
				mw := memberWeek{m.Name, wk}
				if _, onPTO := b.s.pto[mw]; onPTO {
					continue
				}
				if _, busy := b.s.busy[mw]; busy {
					continue
				}
				day := calendar.FormatDate(wk)
				y := b.m.AddContinuous(fmt.Sprintf("y__%s__%s__%s", m.Name, init.Name, day), 0, m.WeeklyCapacityPW())
				x := b.m.AddBinary(fmt.Sprintf("x__%s__%s__%s", m.Name, init.Name, day))
				iw := initWeek{init.Name, w}
				if _, ok := b.yActive[iw]; !ok {
					b.yActive[iw] = b.m.AddBinary(fmt.Sprintf("yact__%s__%s", init.Name, day))
				}
				idx := len(b.decisions)
				b.decisions = append(b.decisions, decision{
					member:    m,
					init:      init.Name,
					week:      w,
					y:         y,
					x:         x,
					roadmap:   init.Budget == model.BudgetRoadmap,
					prefMatch: init.PrefSquad != "" && m.SquadLabel == init.PrefSquad,
				})
				b.byMemberWeek[mw] = append(b.byMemberWeek[mw], idx)
				b.byInit[init.Name] = append(b.byInit[init.Name], idx)
				b.byInitWeek[iw] = append(b.byInitWeek[iw], idx)
			}
		}
		if len(b.byInit[init.Name]) > 0 {
			b.z[init.Name] = b.m.AddBinary("z__" + init.Name)
			b.pPlanned[init.Name] = b.m.AddBinary("pplan__" + init.Name)
		}
	}
}

func (b *ilpBuild) addCapacityConstraints() {
	for _, m := range b.s.members {
		for _, wk := range b.s.weeks {
			decs := b.byMemberWeek[memberWeek{m.Name, wk}]
			if len(decs) == 0 {
				continue
			}
			var xs, ys solver.LinExpr
			for _, d := range decs {
				xs = append(xs, solver.Term{Var: b.decisions[d].x, Coef: 1})
				ys = append(ys, solver.Term{Var: b.decisions[d].y, Coef: 1})
			}
			b.m.AddConstraint(xs, solver.LE, 1)
			b.m.AddConstraint(ys, solver.LE, m.WeeklyCapacityPW())
		}
	}
}

func (b *ilpBuild) addTargetConstraints() {
	for _, init := range b.inits {
		decs := b.byInit[init.Name]
		if len(decs) == 0 {
			continue
		}
		target := b.target[init.Name]
		var ys solver.LinExpr
		for _, d := range decs {
			ys = append(ys, solver.Term{Var: b.decisions[d].y, Coef: 1})
		}
		b.m.AddConstraint(ys, solver.LE, target)
		// Completion flips only when the full target is reached.
		withZ := append(cloneExpr(ys), solver.Term{Var: b.z[init.Name], Coef: -target})
		b.m.AddConstraint(withZ, solver.GE, 0)
	}
}

func (b *ilpBuild) addLinkingConstraints() {
	for _, d := range b.decisions {
		yact := b.yActive[initWeek{d.init, d.week}]
		// y is only nonzero on assigned weeks, and any assignment marks
		// the initiative active that week.
		b.m.AddConstraint(solver.LinExpr{{Var: d.y, Coef: 1}, {Var: d.x, Coef: -d.member.WeeklyCapacityPW()}}, solver.LE, 0)
		b.m.AddConstraint(solver.LinExpr{{Var: d.x, Coef: 1}, {Var: yact, Coef: -1}}, solver.LE, 0)
	}
	for _, init := range b.inits {
		p, ok := b.pPlanned[init.Name]
		if !ok {
			continue
		}
		var acts solver.LinExpr
		for w := range b.s.weeks {
			if yact, ok := b.yActive[initWeek{init.Name, w}]; ok {
				b.m.AddConstraint(solver.LinExpr{{Var: yact, Coef: 1}, {Var: p, Coef: -1}}, solver.LE, 0)
				acts = append(acts, solver.Term{Var: yact, Coef: 1})
			}
		}
		// p cannot claim an attempt without at least one active week.
		if len(acts) > 0 {
			acts = append(acts, solver.Term{Var: p, Coef: -1})
			b.m.AddConstraint(acts, solver.GE, 0)
		}
	}
}

// addSquadConstraints forces squad-mates into identical x values per
// (initiative, week), or forbids the squad outright when only a subset of it
// is eligible that week.
func (b *ilpBuild) addSquadConstraints() {
	for _, sq := range squads(b.s.members) {
		if len(sq.members) < 2 {
			continue
		}
		for _, init := range b.inits {
			for w := range b.s.weeks {
				decs := b.byInitWeek[initWeek{init.Name, w}]
				if len(decs) == 0 {
					continue
				}
				xByMember := make(map[string]solver.Var, len(decs))
				for _, d := range decs {
					xByMember[b.decisions[d].member.Name] = b.decisions[d].x
				}
				var present []solver.Var
				for _, m := range sq.members {
					if x, ok := xByMember[m.Name]; ok {
						present = append(present, x)
					}
				}
				switch {
				case len(present) == 0:
					continue
				case len(present) < len(sq.members):
					for _, x := range present {
						b.m.AddConstraint(solver.LinExpr{{Var: x, Coef: 1}}, solver.LE, 0)
					}
				default:
					for i := 1; i < len(present); i++ {
						b.m.AddConstraint(solver.LinExpr{{Var: present[0], Coef: 1}, {Var: present[i], Coef: -1}}, solver.EQ, 0)
					}
				}
			}
		}
	}
}

// addDependencyConstraints encodes precedence edges. In both profiles a
// child may not be active while its dependency still has activity in the
// same or any later week; the preference profile additionally requires the
// dependency to be fully staffed.
func (b *ilpBuild) addDependencyConstraints() {
	for _, child := range b.inits {
		for _, dep := range child.DependsOn {
			pChild, childOk := b.pPlanned[child.Name]
			if pDep, depOk := b.pPlanned[dep]; childOk {
				if depOk {
					b.m.AddConstraint(solver.LinExpr{{Var: pChild, Coef: 1}, {Var: pDep, Coef: -1}}, solver.LE, 0)
				} else {
					b.m.AddConstraint(solver.LinExpr{{Var: pChild, Coef: 1}}, solver.LE, 0)
				}
			}
			for w := range b.s.weeks {
				childAct, ok := b.yActive[initWeek{child.Name, w}]
				if !ok {
					continue
				}
				expr := solver.LinExpr{{Var: childAct, Coef: 1}}
				for t := w; t < len(b.s.weeks); t++ {
					if depAct, ok := b.yActive[initWeek{dep, t}]; ok {
						expr = append(expr, solver.Term{Var: depAct, Coef: 1})
					}
				}
				b.m.AddConstraint(expr, solver.LE, 1)

				if b.pol.strictDependencies {
					if zDep, ok := b.z[dep]; ok {
						b.m.AddConstraint(solver.LinExpr{{Var: childAct, Coef: 1}, {Var: zDep, Coef: -1}}, solver.LE, 0)
					} else {
						b.m.AddConstraint(solver.LinExpr{{Var: childAct, Coef: 1}}, solver.LE, 0)
					}
				}
			}
		}
	}
}

func (b *ilpBuild) buildObjective() {
	pol := b.pol
	numWeeks := len(b.s.weeks)

	initByName := make(map[string]model.Initiative, len(b.inits))
	for _, i := range b.inits {
		initByName[i.Name] = i
	}
	for _, init := range b.inits {
		if z, ok := b.z[init.Name]; ok {
			b.obj = append(b.obj, solver.Term{Var: z, Coef: pol.completionWeight(init.Priority)})
		}
		if p, ok := b.pPlanned[init.Name]; ok && pol.breadthWeight != 0 {
			b.obj = append(b.obj, solver.Term{Var: p, Coef: pol.breadthWeight})
		}
	}
	for _, d := range b.decisions {
		if pol.utilizationWeight != 0 {
			b.obj = append(b.obj, solver.Term{Var: d.y, Coef: pol.utilizationWeight})
		}
		if pol.earlyWeekBonus != 0 {
			b.obj = append(b.obj, solver.Term{Var: d.x, Coef: pol.earlyWeekBonus * float64(numWeeks-d.week)})
		}
		if pol.prefSquadBonus != 0 && d.prefMatch {
			b.obj = append(b.obj, solver.Term{Var: d.x, Coef: pol.prefSquadBonus})
		}
	}
	if pol.activeWeekPenalty != 0 || pol.deadlinePenaltyPerWeek != 0 {
		for iw, yact := range b.yActive {
			if pol.activeWeekPenalty != 0 {
				b.obj = append(b.obj, solver.Term{Var: yact, Coef: -pol.activeWeekPenalty})
			}
			if pol.deadlinePenaltyPerWeek != 0 {
				init := initByName[iw.init]
				if init.RequiredBy != nil && b.s.weeks[iw.week].After(*init.RequiredBy) {
					b.obj = append(b.obj, solver.Term{Var: yact, Coef: -pol.deadlinePenaltyPerWeek})
				}
			}
		}
	}
	if pol.memberTransitionPenalty != 0 {
		b.addMemberTransitionTerms()
	}
	if pol.spanTransitionPenalty != 0 {
		b.addSpanTransitionTerms()
	}
	if pol.roadmapDeviationPenalty != 0 {
		b.addRoadmapDeviationTerm()
	}
	b.m.Maximize(b.obj)
}

// addMemberTransitionTerms linearizes |x[w] - x[w-1]| per member-initiative
// pairing and charges each flip.
func (b *ilpBuild) addMemberTransitionTerms() {
	type pair struct {
		member string
		init   string
	}
	xsByPair := make(map[pair]map[int]solver.Var)
	for _, d := range b.decisions {
		k := pair{d.member.Name, d.init}
		if xsByPair[k] == nil {
			xsByPair[k] = make(map[int]solver.Var)
		}
		xsByPair[k][d.week] = d.x
	}
	for _, init := range b.inits {
		for _, m := range b.s.members {
			xs, ok := xsByPair[pair{m.Name, init.Name}]
			if !ok {
				continue
			}
			b.addTransitionVars(xs, fmt.Sprintf("chg__%s__%s", m.Name, init.Name), b.pol.memberTransitionPenalty)
		}
	}
}

// addSpanTransitionTerms is the initiative-activity analogue.
func (b *ilpBuild) addSpanTransitionTerms() {
	for _, init := range b.inits {
		acts := make(map[int]solver.Var)
		for w := range b.s.weeks {
			if yact, ok := b.yActive[initWeek{init.Name, w}]; ok {
				acts[w] = yact
			}
		}
		if len(acts) == 0 {
			continue
		}
		b.addTransitionVars(acts, "span__"+init.Name, b.pol.spanTransitionPenalty)
	}
}

func (b *ilpBuild) addTransitionVars(vars map[int]solver.Var, name string, penalty float64) {
	for w := 0; w < len(b.s.weeks); w++ {
		cur, curOk := vars[w]
		prev, prevOk := vars[w-1]
		if !curOk && !prevOk {
			continue
		}
		t := b.m.AddContinuous(fmt.Sprintf("%s__%d", name, w), 0, 1)
		up := solver.LinExpr{{Var: t, Coef: -1}}
		down := solver.LinExpr{{Var: t, Coef: -1}}
		if curOk {
			up = append(up, solver.Term{Var: cur, Coef: 1})
			down = append(down, solver.Term{Var: cur, Coef: -1})
		}
		if prevOk {
			up = append(up, solver.Term{Var: prev, Coef: -1})
			down = append(down, solver.Term{Var: prev, Coef: 1})
		}
		b.m.AddConstraint(up, solver.LE, 0)
		b.m.AddConstraint(down, solver.LE, 0)
		b.obj = append(b.obj, solver.Term{Var: t, Coef: -penalty})
	}
}

// addRoadmapDeviationTerm penalizes the Roadmap share of allocated capacity
// drifting from the configured target ratio, two-sided.
func (b *ilpBuild) addRoadmapDeviationTerm() {
	hasRoadmap := false
	for _, d := range b.decisions {
		if d.roadmap {
			hasRoadmap = true
			break
		}
	}
	if !hasRoadmap {
		return
	}
	ratio := b.pol.roadmapTargetRatio
	dev := b.m.AddContinuous("roadmap_dev", 0, math.Inf(1))
	over := solver.LinExpr{{Var: dev, Coef: -1}}
	under := solver.LinExpr{{Var: dev, Coef: -1}}
	for _, d := range b.decisions {
		coef := -ratio
		if d.roadmap {
			coef = 1 - ratio
		}
		over = append(over, solver.Term{Var: d.y, Coef: coef})
		under = append(under, solver.Term{Var: d.y, Coef: -coef})
	}
	b.m.AddConstraint(over, solver.LE, 0)
	b.m.AddConstraint(under, solver.LE, 0)
	b.obj = append(b.obj, solver.Term{Var: dev, Coef: -b.pol.roadmapDeviationPenalty})
}

func cloneExpr(e solver.LinExpr) solver.LinExpr {
	out := make(solver.LinExpr, len(e))
	copy(out, e)
	return out
}

// planILP builds and solves the shared scaffold under the given policy, then
// extracts assignments, the unstaffed report and solver statistics.
func planILP(s *snapshot, pol objectivePolicy, limits solveLimits, idleFillEnabled bool, log logger.Logger) *Result {
	b := newILPBuild(s, pol)
	b.addDecisionVariables()

	res := &Result{Summary: Summary{InitiativesConsidered: len(b.inits)}}

	if len(b.decisions) > 0 {
		b.addCapacityConstraints()
		b.addTargetConstraints()
		b.addLinkingConstraints()
		b.addSquadConstraints()
		b.addDependencyConstraints()
		b.buildObjective()

		log.Debugw("solving ilp model", map[string]any{
			"profile":     pol.source,
			"variables":   b.m.NumVariables(),
			"constraints": b.m.NumConstraints(),
			"decisions":   len(b.decisions),
		})
		sol := b.m.Solve(solver.Options{
			TimeLimit: limits.timeLimit,
			MIPGap:    limits.gap,
			Threads:   limits.threads,
		})
		res.Summary.SolverStatus = sol.Status.String()
		res.Summary.SolverObjective = sol.Objective
		res.Summary.ModelVariables = b.m.NumVariables()
		res.Summary.ModelConstraints = b.m.NumConstraints()

		value := func(v solver.Var) float64 {
			if sol.Values == nil {
				return 0
			}
			return sol.Values[v]
		}
		const eps = 1e-6
		for _, d := range b.decisions {
			if val := value(d.y); val > eps {
				res.Assignments = append(res.Assignments, model.Assignment{
					MemberName:     d.member.Name,
					InitiativeName: d.init,
					WeekStart:      s.weeks[d.week],
					CapacityPW:     model.Ptr(model.Round3(val)),
					Source:         pol.source,
				})
			}
		}
		for _, init := range b.inits {
			zVal := 0.0
			if z, ok := b.z[init.Name]; ok {
				zVal = value(z)
			}
			if zVal >= 0.5 {
				continue
			}
			var assigned float64
			for _, di := range b.byInit[init.Name] {
				assigned += value(b.decisions[di].y)
			}
			res.Unstaffed = append(res.Unstaffed, Unstaffed{
				Initiative:  init.Name,
				RequiredPW:  b.target[init.Name],
				AvailablePW: model.Round3(assigned),
				Reason:      "Not fully staffed in window",
			})
		}
		solved := sol.Status == solver.StatusOptimal || sol.Status == solver.StatusFeasible
		if idleFillEnabled && solved {
			res.Assignments = idleFill(s, b.inits, b.target, res.Assignments)
		}
	} else {
		res.Summary.SolverStatus = solver.StatusOptimal.String()
		for _, init := range b.inits {
			res.Unstaffed = append(res.Unstaffed, Unstaffed{
				Initiative: init.Name,
				RequiredPW: b.target[init.Name],
				Reason:     "Not fully staffed in window",
			})
		}
	}

	planned := make(map[string]struct{})
	var totalPW float64
	for _, a := range res.Assignments {
		planned[a.InitiativeName] = struct{}{}
		if a.CapacityPW != nil {
			totalPW += *a.CapacityPW
		}
	}
	res.Summary.InitiativesPlanned = len(planned)
	res.Summary.InitiativesUnstaffed = len(res.Unstaffed)
	res.Summary.TotalPersonWeeks = model.Round3(totalPW)
	return res
}
