package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"staffplan/core/calendar"
	"staffplan/core/model"
	"staffplan/core/storage"
)

// memberWeek is the composite key for per-member-per-week lookups (PTO,
// busy slots). Weeks are canonical UTC Mondays, safe to compare with ==.
type memberWeek struct {
	member string
	week   time.Time
}

// snapshot is the immutable input of one planning call.
type snapshot struct {
	members  []model.Member
	inits    []model.Initiative
	existing []model.Assignment
	pto      map[memberWeek]struct{}
	busy     map[memberWeek]struct{}
	capacity map[string]float64
	weeks    []time.Time
	recreate bool
}

// loadSnapshot reads one consistent view of the store: active members,
// non-Done initiatives and the PTO/assignment occupancy maps. With recreate
// set, planning history is ignored entirely.
func loadSnapshot(ctx context.Context, adapter storage.Adapter, from, to time.Time, recreate bool) (*snapshot, error) {
	members, err := adapter.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	initiatives, err := adapter.ListInitiatives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list initiatives: %w", err)
	}
	pto, err := adapter.ListPTO(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pto: %w", err)
	}
	existing, err := adapter.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	s := &snapshot{
		pto:      make(map[memberWeek]struct{}, len(pto)),
		busy:     make(map[memberWeek]struct{}),
		capacity: make(map[string]float64),
		weeks:    calendar.Weeks(from, to),
		recreate: recreate,
	}
	for _, m := range members {
		if !m.Active {
			continue
		}
		s.members = append(s.members, m)
		s.capacity[m.Name] = m.WeeklyCapacityPW()
	}
	sort.Slice(s.members, func(i, j int) bool { return s.members[i].Name < s.members[j].Name })

	for _, i := range initiatives {
		if i.IsDone() {
			continue
		}
		s.inits = append(s.inits, i)
	}
	sort.Slice(s.inits, func(i, j int) bool { return s.inits[i].Name < s.inits[j].Name })

	for _, p := range pto {
		s.pto[memberWeek{p.MemberName, calendar.ISOMonday(p.WeekStart)}] = struct{}{}
	}
	s.existing = existing
	if !recreate {
		for _, a := range existing {
			s.busy[memberWeek{a.MemberName, calendar.ISOMonday(a.WeekStart)}] = struct{}{}
		}
	}
	return s, nil
}

// targets returns the effective estimate per plannable initiative.
func (s *snapshot) targets() map[string]float64 {
	t := make(map[string]float64)
	for _, i := range s.inits {
		if est, ok := i.EffectiveEstimatePW(); ok {
			t[i.Name] = est
		}
	}
	return t
}

// squad is an atomic staffing unit: members sharing a label, or a singleton
// for unlabeled members.
type squad struct {
	key     string
	members []model.Member
}

// squads groups members into atomic units, sorted by key for deterministic
// iteration. Unlabeled members form singleton squads keyed by their name.
func squads(members []model.Member) []squad {
	byKey := make(map[string][]model.Member)
	for _, m := range members {
		key := m.SquadLabel
		if key == "" {
			key = m.Name
		}
		byKey[key] = append(byKey[key], m)
	}
	out := make([]squad, 0, len(byKey))
	for key, ms := range byKey {
		sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
		out = append(out, squad{key: key, members: ms})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// rankInitiatives orders initiatives by (priority, required_by, start_after,
// name). Missing deadlines sort last, missing start dates first.
func rankInitiatives(inits []model.Initiative) []model.Initiative {
	ranked := make([]model.Initiative, len(inits))
	copy(ranked, inits)
	sort.SliceStable(ranked, func(a, b int) bool {
		x, y := ranked[a], ranked[b]
		if x.Priority != y.Priority {
			return x.Priority < y.Priority
		}
		if c := compareDates(x.RequiredBy, y.RequiredBy, true); c != 0 {
			return c < 0
		}
		if c := compareDates(x.StartAfter, y.StartAfter, false); c != 0 {
			return c < 0
		}
		return x.Name < y.Name
	})
	return ranked
}

// compareDates orders optional dates; missingLast controls where nil sorts.
func compareDates(a, b *time.Time, missingLast bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		if missingLast {
			return 1
		}
		return -1
	case b == nil:
		if missingLast {
			return -1
		}
		return 1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	default:
		return 0
	}
}
