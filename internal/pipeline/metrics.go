package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediafetch_pipeline_runs_total",
		Help: "Number of pipeline runs by terminal state",
	}, []string{"outcome"})

	bytesStreamedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_pipeline_bytes_streamed_total",
		Help: "Total bytes relayed from terminal stages to response sinks",
	})

	stagesLaunchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_pipeline_stages_launched_total",
		Help: "Number of stage processes launched",
	})
)

func recordRun(outcome State, bytes int64) {
	runsTotal.WithLabelValues(outcome.String()).Inc()
	if bytes > 0 {
		bytesStreamedTotal.Add(float64(bytes))
	}
}
