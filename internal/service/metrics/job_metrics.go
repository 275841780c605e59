package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	JobLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tarlab",
			Subsystem: "jobs",
			Name:      "latency_seconds",
			Help:      "Latency of asynchronous estimation jobs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"source", "variant"},
	)

	JobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tarlab",
			Subsystem: "jobs",
			Name:      "errors_total",
			Help:      "Failed asynchronous estimation jobs",
		},
		[]string{"source", "kind"},
	)
)

// Register adds the job collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(JobLatency, JobErrors)
	})
}
