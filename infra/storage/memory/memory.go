// Package memory provides an in-memory storage adapter, used by tests and as
// the default backend when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"staffplan/core/model"
	"staffplan/core/storage"
)

// Adapter keeps all entities in maps guarded by a mutex. List methods return
// name-sorted copies so callers see a stable order.
type Adapter struct {
	mu          sync.RWMutex
	members     map[string]model.Member
	initiatives map[string]model.Initiative
	pto         map[storage.MemberWeekKey]model.PTORecord
	assignments map[storage.MemberWeekKey]model.Assignment
}

// New returns an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{
		members:     make(map[string]model.Member),
		initiatives: make(map[string]model.Initiative),
		pto:         make(map[storage.MemberWeekKey]model.PTORecord),
		assignments: make(map[storage.MemberWeekKey]model.Assignment),
	}
}

var _ storage.Adapter = (*Adapter)(nil)

func (a *Adapter) ListMembers(context.Context) ([]model.Member, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Member, 0, len(a.members))
	for _, m := range a.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (a *Adapter) UpsertMembers(_ context.Context, members []model.Member) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range members {
		a.members[m.Name] = m
	}
	return nil
}

func (a *Adapter) DeleteMembers(_ context.Context, names []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range names {
		delete(a.members, n)
	}
	return nil
}

func (a *Adapter) ListInitiatives(context.Context) ([]model.Initiative, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Initiative, 0, len(a.initiatives))
	for _, i := range a.initiatives {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (a *Adapter) UpsertInitiatives(_ context.Context, initiatives []model.Initiative) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, i := range initiatives {
		a.initiatives[i.Name] = i
	}
	return nil
}

func (a *Adapter) DeleteInitiatives(_ context.Context, names []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range names {
		delete(a.initiatives, n)
	}
	return nil
}

func (a *Adapter) ListPTO(context.Context) ([]model.PTORecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.PTORecord, 0, len(a.pto))
	for _, p := range a.pto {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MemberName != out[j].MemberName {
			return out[i].MemberName < out[j].MemberName
		}
		return out[i].WeekStart.Before(out[j].WeekStart)
	})
	return out, nil
}

func (a *Adapter) UpsertPTO(_ context.Context, records []model.PTORecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range records {
		a.pto[storage.MemberWeekKey{MemberName: p.MemberName, WeekStart: p.WeekStart}] = p
	}
	return nil
}

func (a *Adapter) DeletePTO(_ context.Context, keys []storage.MemberWeekKey) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range keys {
		delete(a.pto, k)
	}
	return nil
}

func (a *Adapter) ListAssignments(context.Context) ([]model.Assignment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Assignment, 0, len(a.assignments))
	for _, s := range a.assignments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MemberName != out[j].MemberName {
			return out[i].MemberName < out[j].MemberName
		}
		return out[i].WeekStart.Before(out[j].WeekStart)
	})
	return out, nil
}

func (a *Adapter) UpsertAssignments(_ context.Context, assignments []model.Assignment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range assignments {
		a.assignments[storage.MemberWeekKey{MemberName: s.MemberName, WeekStart: s.WeekStart}] = s
	}
	return nil
}

func (a *Adapter) DeleteAssignments(_ context.Context, keys []storage.MemberWeekKey) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range keys {
		delete(a.assignments, k)
	}
	return nil
}

func (a *Adapter) MemberByName(_ context.Context, name string) (*model.Member, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if m, ok := a.members[name]; ok {
		return &m, nil
	}
	return nil, nil
}

func (a *Adapter) InitiativeByName(_ context.Context, name string) (*model.Initiative, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i, ok := a.initiatives[name]; ok {
		return &i, nil
	}
	return nil, nil
}
