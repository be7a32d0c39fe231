package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_generations_total",
		Help: "Assistant turns by outcome (ok, error, dropped).",
	}, []string{"result"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chalkboard_generation_seconds",
		Help:    "Wall time of successful assistant turns.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
