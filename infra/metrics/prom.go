package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "staffplan/core/metrics"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPromSink registers planning metrics on the default Prometheus registerer.
func NewPromSink() (coremetrics.PlanSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.PlanSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffplan_plan_runs_total",
		Help: "Total number of planning runs",
	}, []string{"algorithm", "solver_status", "fully_staffed"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staffplan_plan_duration_seconds",
		Help:    "Wall-clock duration of planning runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"algorithm"})

	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{runs: runs, duration: duration}, nil
}

// RecordPlanRun increments the run counter and observes the duration.
func (s *PromSink) RecordPlanRun(run coremetrics.PlanRun) error {
	s.runs.WithLabelValues(run.Algorithm, run.SolverStatus, strconv.FormatBool(run.Unstaffed == 0)).Inc()
	s.duration.WithLabelValues(run.Algorithm).Observe(run.Duration.Seconds())
	return nil
}
