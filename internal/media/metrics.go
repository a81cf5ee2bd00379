package media

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mediafetch_resolve_duration_seconds",
	Help:    "Duration of metadata resolution calls in seconds",
	Buckets: prometheus.ExponentialBuckets(0.1, 2.0, 10), // 0.1s .. ~51.2s
}, []string{"outcome"})

func observeResolve(d time.Duration, ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	resolveDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
