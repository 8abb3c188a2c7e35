// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dispatches_total",
			Help: "Total number of schedule dispatches by outcome",
		},
		[]string{"trigger_type", "outcome"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Total number of per-recipient deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notifier_dispatch_duration_seconds",
			Help: "Duration of a full schedule dispatch in seconds",
		},
		[]string{"trigger_type"},
	)

	AudienceSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_audience_size",
			Help:    "Resolved audience size per dispatch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"trigger_type"},
	)

	SchedulesDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_schedules_deactivated_total",
			Help: "Total number of schedules retired by the window evaluator",
		},
	)
)
