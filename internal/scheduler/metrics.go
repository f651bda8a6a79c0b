package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/argmaster/cssfinder/internal/model"
)

var (
	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "cssfinder_task_duration_seconds",
			Help: "Wall-clock duration of completed task executions, in seconds.",
			// Searches range from sub-second toy states to multi-hour runs.
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		},
	)

	taskIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cssfinder_task_iterations",
			Help:    "Iterations performed by completed task executions.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		},
	)

	activeTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cssfinder_active_tasks",
			Help: "Number of task executions currently running.",
		},
	)

	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cssfinder_tasks_total",
			Help: "Total number of scheduled task executions.",
		},
		[]string{"mode", "termination"},
	)
)

func init() {
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(taskIterations)
	prometheus.MustRegister(activeTasks)
	prometheus.MustRegister(tasksTotal)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	terminations := []string{
		model.TerminationConverged,
		model.TerminationIterationLimit,
		model.TerminationCancelled,
		model.TerminationError,
	}
	for _, mode := range model.Modes {
		for _, term := range terminations {
			tasksTotal.WithLabelValues(string(mode), term)
		}
	}
}
