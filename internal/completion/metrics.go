package completion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var skippedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chalkboard_stream_frames_skipped_total",
	Help: "Malformed SSE frames skipped while streaming completions.",
})
