// Package metrics exposes Prometheus collectors for the journal wizard:
// fetch calls, AI pipeline stage runs, and entry creation outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that failed.
	OutcomeError = "error"
)

var (
	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Name:      "fetches_total",
			Help:      "Raw activity fetches, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	stageRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Name:      "pipeline_stage_runs_total",
			Help:      "AI pipeline stage executions, partitioned by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daybook",
			Name:      "pipeline_stage_seconds",
			Help:      "AI pipeline stage latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	entriesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Name:      "entries_created_total",
			Help:      "Journal entry creation attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches daybook collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		fetchesTotal,
		stageRunsTotal,
		stageDurationSeconds,
		entriesCreatedTotal,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveFetch records one raw fetch attempt.
func ObserveFetch(err error) {
	fetchesTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveStage records one pipeline stage run.
func ObserveStage(stage string, duration time.Duration, err error) {
	stageRunsTotal.WithLabelValues(stage, outcome(err)).Inc()
	if duration < 0 {
		duration = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveEntryCreation records one entry creation attempt.
func ObserveEntryCreation(err error) {
	entriesCreatedTotal.WithLabelValues(outcome(err)).Inc()
}
