package actions

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricActionRunsTotal       = "inventory_action_runs_total"
	MetricActionDurationSeconds = "inventory_action_duration_seconds"
	MetricActionCompletedTotal  = "inventory_action_completed_events_total"
)

// Metrics counts action runs. It also subscribes to the bus to count delivered events.
type Metrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	completed *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricActionRunsTotal,
			Help: "Action runs by action id and status.",
		}, []string{"action", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricActionDurationSeconds,
			Help:    "Action callback duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricActionCompletedTotal,
			Help: "Completion events seen on the bus by status.",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.duration, m.completed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(action string, status Status, d time.Duration) {
	m.runs.WithLabelValues(action, string(status)).Inc()
	m.duration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) HandleActionCompleted(_ context.Context, event ActionCompletedEvent) error {
	m.completed.WithLabelValues(string(event.Status)).Inc()
	return nil
}
