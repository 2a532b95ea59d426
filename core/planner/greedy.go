package planner

import (
	"staffplan/core/logger"
	"staffplan/core/model"
)

// planGreedy allocates capacity week by week in strict rank order. One squad
// at most is added per initiative per week, and an initiative that is not
// fully covered at the end of the window loses all of its assignments —
// the greedy profile has no partial completion.
func planGreedy(s *snapshot, log logger.Logger) *Result {
	targets := s.targets()

	taken := make(map[string]float64, len(targets))
	if !s.recreate {
		// Existing assignments count toward targets at the member's full
		// weekly capacity.
		for _, a := range s.existing {
			if _, ok := targets[a.InitiativeName]; !ok {
				continue
			}
			if cap, ok := s.capacity[a.MemberName]; ok {
				taken[a.InitiativeName] += cap
			}
		}
	}

	busy := make(map[memberWeek]struct{}, len(s.busy))
	for k := range s.busy {
		busy[k] = struct{}{}
	}

	var ranked []model.Initiative
	for _, i := range s.inits {
		if _, ok := targets[i.Name]; ok {
			ranked = append(ranked, i)
		}
	}
	ranked = rankInitiatives(ranked)

	groups := squads(s.members)
	allowedByInit := make(map[string]map[string]struct{}, len(ranked))
	for _, init := range ranked {
		allowedByInit[init.Name] = AllowedPoolMembers(s.members, init)
	}

	var assignments []model.Assignment
	for _, wk := range s.weeks {
		for _, init := range ranked {
			if init.StartAfter != nil && init.StartAfter.After(wk) {
				continue
			}
			if targets[init.Name]-taken[init.Name] <= 1e-9 {
				continue
			}
			allowed := allowedByInit[init.Name]

			for _, sq := range groups {
				ok := true
				for _, m := range sq.members {
					if _, eligible := allowed[m.Name]; !eligible {
						ok = false
						break
					}
					mw := memberWeek{m.Name, wk}
					if _, onPTO := s.pto[mw]; onPTO {
						ok = false
						break
					}
					if _, taken := busy[mw]; taken {
						ok = false
						break
					}
				}
				if !ok {
					continue
				}
				// Assign the whole squad, even when it overshoots the
				// remaining need. Partial squads are never staffed.
				for _, m := range sq.members {
					cap := m.WeeklyCapacityPW()
					assignments = append(assignments, model.Assignment{
						MemberName:     m.Name,
						InitiativeName: init.Name,
						WeekStart:      wk,
						CapacityPW:     model.Ptr(cap),
						Source:         SourceGreedy,
					})
					busy[memberWeek{m.Name, wk}] = struct{}{}
					taken[init.Name] += cap
				}
				break // one squad per initiative per week
			}
		}
	}

	// All-or-nothing completion: drop everything for under-target
	// initiatives and report them unstaffed.
	var unstaffed []Unstaffed
	short := make(map[string]struct{})
	for _, init := range ranked {
		target := targets[init.Name]
		if taken[init.Name]+1e-9 < target {
			short[init.Name] = struct{}{}
			unstaffed = append(unstaffed, Unstaffed{
				Initiative:  init.Name,
				RequiredPW:  target,
				AvailablePW: model.Round3(taken[init.Name]),
				Reason:      "Not enough capacity in window (no partial completion).",
			})
		}
	}
	kept := assignments[:0]
	for _, a := range assignments {
		if _, drop := short[a.InitiativeName]; !drop {
			kept = append(kept, a)
		}
	}
	assignments = kept

	planned := make(map[string]struct{})
	var totalPW float64
	for _, a := range assignments {
		planned[a.InitiativeName] = struct{}{}
		totalPW += *a.CapacityPW
	}
	log.Debugw("greedy plan complete", map[string]any{
		"considered": len(ranked),
		"planned":    len(planned),
		"unstaffed":  len(unstaffed),
	})

	return &Result{
		Assignments: assignments,
		Unstaffed:   unstaffed,
		Summary: Summary{
			InitiativesConsidered: len(ranked),
			InitiativesPlanned:    len(planned),
			InitiativesUnstaffed:  len(unstaffed),
			TotalPersonWeeks:      model.Round3(totalPW),
		},
	}
}
