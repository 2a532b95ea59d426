// Package storage defines the narrow data-access contract the planners read
// their snapshot through. Implementations live under infra/storage.
package storage

import (
	"context"
	"time"

	"staffplan/core/model"
)

// MemberWeekKey identifies a PTO record or an assignment: both are unique per
// (member, week start).
type MemberWeekKey struct {
	MemberName string
	WeekStart  time.Time
}

// Adapter is the external data-access collaborator. Planning reads one
// snapshot through the List methods and never writes; persisting a plan via
// UpsertAssignments is an explicit caller operation.
type Adapter interface {
	ListMembers(ctx context.Context) ([]model.Member, error)
	UpsertMembers(ctx context.Context, members []model.Member) error
	DeleteMembers(ctx context.Context, names []string) error

	ListInitiatives(ctx context.Context) ([]model.Initiative, error)
	UpsertInitiatives(ctx context.Context, initiatives []model.Initiative) error
	DeleteInitiatives(ctx context.Context, names []string) error

	ListPTO(ctx context.Context) ([]model.PTORecord, error)
	UpsertPTO(ctx context.Context, records []model.PTORecord) error
	DeletePTO(ctx context.Context, keys []MemberWeekKey) error

	ListAssignments(ctx context.Context) ([]model.Assignment, error)
	UpsertAssignments(ctx context.Context, assignments []model.Assignment) error
	DeleteAssignments(ctx context.Context, keys []MemberWeekKey) error

	// MemberByName and InitiativeByName return nil when no entity matches.
	MemberByName(ctx context.Context, name string) (*model.Member, error)
	InitiativeByName(ctx context.Context, name string) (*model.Initiative, error)
}
