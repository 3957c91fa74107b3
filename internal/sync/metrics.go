package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nhle/remindly/internal/model"
)

var (
	namespace = "remindly"
	subsystem = "sync"

	passesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passes_total",
			Help:      "Total number of sync passes by outcome",
		},
		[]string{"outcome"},
	)

	rowsPushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_pushed_total",
			Help:      "Total number of rows acknowledged by the server",
		},
		[]string{"table", "op"},
	)

	rowsPulledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_pulled_total",
			Help:      "Total number of remote rows merged into the local store",
		},
		[]string{"table"},
	)

	rowFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "row_failures_total",
			Help:      "Total number of rows left pending after a failed remote write",
		},
		[]string{"table", "op"},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Duration of complete sync passes in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

// Push operations used as the "op" label.
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// Pass outcomes used as the "outcome" label.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeOffline = "offline"
	outcomeQueued  = "queued"
)

func recordPass(result Result, duration time.Duration) {
	passesTotal.WithLabelValues(result.outcome()).Inc()
	if !result.Queued {
		passDuration.Observe(duration.Seconds())
	}
}

func recordPushed(table model.Table, op string) {
	rowsPushedTotal.WithLabelValues(string(table), op).Inc()
}

func recordPulled(table model.Table, n int) {
	rowsPulledTotal.WithLabelValues(string(table)).Add(float64(n))
}

func recordRowFailure(table model.Table, op string) {
	rowFailuresTotal.WithLabelValues(string(table), op).Inc()
}
