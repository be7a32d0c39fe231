package mailbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_mailbox_enqueued_total",
		Help: "Actions enqueued, by action name.",
	}, []string{"action"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_mailbox_dropped_total",
		Help: "Actions dropped because their conversation was deleted.",
	}, []string{"action"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chalkboard_mailbox_depth",
		Help: "Actions currently waiting in the mailbox.",
	})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chalkboard_mailbox_run_seconds",
		Help:    "Action run time in seconds, by action name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)
