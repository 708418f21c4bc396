package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "budgetsync",
			Name:      "sync_passes_total",
			Help:      "Sync passes by result (completed, stopped).",
		},
		[]string{"result"},
	)

	actionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "budgetsync",
			Name:      "action_attempts_total",
			Help:      "Action execution attempts by entity and result.",
		},
		[]string{"entity", "result"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "budgetsync",
			Name:      "queue_depth",
			Help:      "Actions currently queued, failed included.",
		},
	)

	failedActions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "budgetsync",
			Name:      "failed_actions",
			Help:      "Actions at their retry budget awaiting operator action.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncPasses, actionAttempts, queueDepth, failedActions)
	})
}

// IncPass counts a finished sync pass; result is "completed" or "stopped".
func IncPass(result string) {
	syncPasses.WithLabelValues(result).Inc()
}

// IncAttempt counts one action attempt; result is "success" or "failure".
func IncAttempt(entity, result string) {
	actionAttempts.WithLabelValues(entity, result).Inc()
}

// SetQueueDepth updates the queue size gauges.
func SetQueueDepth(total, failed int) {
	queueDepth.Set(float64(total))
	failedActions.Set(float64(failed))
}
