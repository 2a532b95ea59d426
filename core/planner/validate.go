package planner

import (
	"context"
	"fmt"
	"sort"

	"staffplan/core/model"
	"staffplan/core/storage"
)

// AllowedPoolMembers returns the names of active members eligible for the
// initiative: everyone when owner_pools is empty, otherwise members whose
// pool is listed.
func AllowedPoolMembers(members []model.Member, init model.Initiative) map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, m := range members {
		if !m.Active {
			continue
		}
		if len(init.OwnerPools) == 0 {
			allowed[m.Name] = struct{}{}
			continue
		}
		for _, p := range init.OwnerPools {
			if m.Pool == p {
				allowed[m.Name] = struct{}{}
				break
			}
		}
	}
	return allowed
}

// ValidateDataset checks the whole store for problems planning would silently
// tolerate: invalid entities, dangling references and dependency cycles.
// Findings come back as messages; the error return covers storage failures.
func ValidateDataset(ctx context.Context, adapter storage.Adapter) ([]string, error) {
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
	assignments, err := adapter.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	var problems []string
	memberNames := make(map[string]struct{}, len(members))
	for _, m := range members {
		if err := m.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
		memberNames[m.Name] = struct{}{}
	}
	initNames := make(map[string][]string, len(initiatives))
	for _, i := range initiatives {
		if err := i.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
		initNames[i.Name] = i.DependsOn
	}
	for _, i := range initiatives {
		for _, dep := range i.DependsOn {
			if _, ok := initNames[dep]; !ok {
				problems = append(problems, fmt.Sprintf("Initiative %s depends on unknown initiative: %s", i.Name, dep))
			}
		}
	}
	for _, cycle := range dependencyCycles(initNames) {
		problems = append(problems, fmt.Sprintf("Dependency cycle involving: %s", cycle))
	}
	for _, p := range pto {
		if _, ok := memberNames[p.MemberName]; !ok {
			problems = append(problems, fmt.Sprintf("PTO for unknown member: %s", p.MemberName))
		}
	}
	refs, err := validateAssignmentRefs(members, initiatives, assignments)
	if err != nil {
		return nil, err
	}
	return append(problems, refs...), nil
}

// dependencyCycles returns one representative node per cycle, sorted.
func dependencyCycles(deps map[string][]string) []string {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(deps))
	var found []string
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return false
		}
		state[name] = visiting
		for _, dep := range deps[name] {
			if _, ok := deps[dep]; !ok {
				continue
			}
			if visit(dep) {
				state[name] = done
				return true
			}
		}
		state[name] = done
		return false
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if state[name] == 0 && visit(name) {
			found = append(found, name)
		}
	}
	return found
}

// ValidateReferences reports assignments referencing unknown members or
// initiatives. Broken references are returned as messages, not errors; the
// error return covers storage failures only.
func ValidateReferences(ctx context.Context, adapter storage.Adapter, assignments []model.Assignment) ([]string, error) {
	members, err := adapter.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	initiatives, err := adapter.ListInitiatives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list initiatives: %w", err)
	}
	return validateAssignmentRefs(members, initiatives, assignments)
}

func validateAssignmentRefs(members []model.Member, initiatives []model.Initiative, assignments []model.Assignment) ([]string, error) {
	memberNames := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberNames[m.Name] = struct{}{}
	}
	initNames := make(map[string]struct{}, len(initiatives))
	for _, i := range initiatives {
		initNames[i.Name] = struct{}{}
	}

	var problems []string
	for _, a := range assignments {
		if _, ok := memberNames[a.MemberName]; !ok {
			problems = append(problems, fmt.Sprintf("Unknown member: %s", a.MemberName))
		}
		if _, ok := initNames[a.InitiativeName]; !ok {
			problems = append(problems, fmt.Sprintf("Unknown initiative: %s", a.InitiativeName))
		}
	}
	return problems, nil
}
