// Package metrics defines the sink the CLI reports planning runs through.
package metrics

import "time"

// PlanRun describes one completed planning invocation.
type PlanRun struct {
	Algorithm    string
	SolverStatus string
	Unstaffed    int
	Duration     time.Duration
}

// PlanSink records planning runs. Implementations live under infra/metrics.
type PlanSink interface {
	RecordPlanRun(run PlanRun) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordPlanRun(PlanRun) error { return nil }
