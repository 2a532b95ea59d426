package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"staffplan/core/model"
	"staffplan/core/storage"
)

func openTestDB(t *testing.T) *Adapter {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "staffplan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func date(t *testing.T, y int, m time.Month, d int) time.Time {
	t.Helper()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMemberRoundtrip(t *testing.T) {
	a := openTestDB(t)
	ctx := context.Background()

	in := model.Member{
		Name: "alice", Pool: model.PoolFeature, ContractedHours: 32,
		SquadLabel: "pod", Active: true, Notes: "part-time",
	}
	require.NoError(t, a.UpsertMembers(ctx, []model.Member{in}))

	got, err := a.ListMembers(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Member{in}, got)

	byName, err := a.MemberByName(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, in, *byName)

	missing, err := a.MemberByName(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpsertMemberReplaces(t *testing.T) {
	a := openTestDB(t)
	ctx := context.Background()

	m := model.Member{Name: "alice", Pool: model.PoolFeature, ContractedHours: 40, Active: true}
	require.NoError(t, a.UpsertMembers(ctx, []model.Member{m}))
	m.ContractedHours = 20
	m.Active = false
	require.NoError(t, a.UpsertMembers(ctx, []model.Member{m}))

	got, err := a.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 20, got[0].ContractedHours)
	require.False(t, got[0].Active)
}

func TestInitiativeRoundtripWithOptionalFields(t *testing.T) {
	a := openTestDB(t)
	ctx := context.Background()

	full := model.Initiative{
		Name:       "rollout",
		Phase:      model.PhaseImplementation,
		State:      model.StateInProgress,
		Priority:   1,
		Budget:     model.BudgetRoadmap,
		OwnerPools: []model.Pool{model.PoolFeature, model.PoolQA},
		RequiredBy: model.Ptr(date(t, 2026, time.March, 2)),
		StartAfter: model.Ptr(date(t, 2026, time.January, 5)),
		RomPW:      model.Ptr(4.0),
		GranularPW: model.Ptr(3.5),
		DependsOn:  []string{"build"},
		PrefSquad:  "gold",
		SSOT:       "https://example.test/rollout",
	}
	bare := model.Initiative{Name: "bare", Phase: model.PhaseIdeaDiscovery, State: model.StateOpen, Priority: 5}
	require.NoError(t, a.UpsertInitiatives(ctx, []model.Initiative{full, bare}))

	got, err := a.ListInitiatives(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, bare.Name, got[0].Name)
	require.Equal(t, full, got[1])
	require.Nil(t, got[0].RomPW)
	require.Nil(t, got[0].RequiredBy)

	byName, err := a.InitiativeByName(ctx, "rollout")
	require.NoError(t, err)
	require.Equal(t, full, *byName)

	missing, err := a.InitiativeByName(ctx, "phantom")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPTORoundtripAndDelete(t *testing.T) {
	a := openTestDB(t)
	ctx := context.Background()

	week := date(t, 2026, time.January, 5)
	rec := model.PTORecord{MemberName: "alice", Type: model.PTOHoliday, WeekStart: week, Comment: "skiing"}
	require.NoError(t, a.UpsertPTO(ctx, []model.PTORecord{rec}))

	got, err := a.ListPTO(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.PTORecord{rec}, got)

	require.NoError(t, a.DeletePTO(ctx, []storage.MemberWeekKey{{MemberName: "alice", WeekStart: week}}))
	got, err = a.ListPTO(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAssignmentRoundtrip(t *testing.T) {
	a := openTestDB(t)
	ctx := context.Background()

	week := date(t, 2026, time.January, 5)
	with := model.Assignment{
		MemberName: "alice", InitiativeName: "rollout", WeekStart: week,
		CapacityPW: model.Ptr(0.8), Source: "ilp",
	}
	without := model.Assignment{MemberName: "bob", InitiativeName: "rollout", WeekStart: week}
	require.NoError(t, a.UpsertAssignments(ctx, []model.Assignment{with, without}))

	got, err := a.ListAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Assignment{with, without}, got)

	// Upsert on the (member, week) key swaps the initiative.
	with.InitiativeName = "other"
	require.NoError(t, a.UpsertAssignments(ctx, []model.Assignment{with}))
	got, err = a.ListAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, "other", got[0].InitiativeName)

	require.NoError(t, a.DeleteAssignments(ctx, []storage.MemberWeekKey{{MemberName: "bob", WeekStart: week}}))
	got, err = a.ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
