package planner

import (
	"time"

	"staffplan/core/model"
)

// idleFill hands leftover member-weeks to the neediest eligible initiative.
// It runs after a solve, never disturbs solver assignments, and respects
// pool eligibility, start_after and dependency ordering. Squad atomicity is
// deliberately not enforced here; backfill staffs individuals.
func idleFill(s *snapshot, inits []model.Initiative, targets map[string]float64, assignments []model.Assignment) []model.Assignment {
	const eps = 1e-6

	weekIndex := make(map[time.Time]int, len(s.weeks))
	for w, wk := range s.weeks {
		weekIndex[wk] = w
	}

	busy := make(map[memberWeek]struct{}, len(s.busy)+len(assignments))
	for k := range s.busy {
		busy[k] = struct{}{}
	}
	remaining := make(map[string]float64, len(targets))
	for name, target := range targets {
		remaining[name] = target
	}
	// latest active week per initiative, used for the dependency gate: a
	// child only backfills strictly after its dependency's last activity.
	latest := make(map[string]int)
	noteActivity := func(initName string, w int) {
		if cur, ok := latest[initName]; !ok || w > cur {
			latest[initName] = w
		}
	}
	for _, a := range assignments {
		busy[memberWeek{a.MemberName, a.WeekStart}] = struct{}{}
		if w, ok := weekIndex[a.WeekStart]; ok {
			noteActivity(a.InitiativeName, w)
		}
		if a.CapacityPW != nil {
			remaining[a.InitiativeName] -= *a.CapacityPW
		}
	}

	allowedByInit := make(map[string]map[string]struct{}, len(inits))
	for _, init := range inits {
		allowedByInit[init.Name] = AllowedPoolMembers(s.members, init)
	}

	for w, wk := range s.weeks {
		for _, m := range s.members {
			mw := memberWeek{m.Name, wk}
			if _, onPTO := s.pto[mw]; onPTO {
				continue
			}
			if _, taken := busy[mw]; taken {
				continue
			}

			var pick *model.Initiative
			for idx := range inits {
				init := &inits[idx]
				if remaining[init.Name] <= eps {
					continue
				}
				if _, ok := allowedByInit[init.Name][m.Name]; !ok {
					continue
				}
				if init.StartAfter != nil && init.StartAfter.After(wk) {
					continue
				}
				depsDone := true
				for _, dep := range init.DependsOn {
					last, active := latest[dep]
					if !active || last >= w {
						depsDone = false
						break
					}
				}
				if !depsDone {
					continue
				}
				if pick == nil || idleFillLess(*init, *pick) {
					pick = init
				}
			}
			if pick == nil {
				continue
			}

			amount := model.Round3(min(remaining[pick.Name], m.WeeklyCapacityPW()))
			assignments = append(assignments, model.Assignment{
				MemberName:     m.Name,
				InitiativeName: pick.Name,
				WeekStart:      wk,
				CapacityPW:     model.Ptr(amount),
				Source:         SourceIdleFill,
			})
			busy[mw] = struct{}{}
			remaining[pick.Name] -= amount
			noteActivity(pick.Name, w)
		}
	}
	return assignments
}

// idleFillLess ranks backfill candidates: priority first, earlier deadlines
// next (missing deadlines last), name as the tie break.
func idleFillLess(a, b model.Initiative) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if c := compareDates(a.RequiredBy, b.RequiredBy, true); c != 0 {
		return c < 0
	}
	return a.Name < b.Name
}
