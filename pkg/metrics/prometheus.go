package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	estimations  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	candidates   *prometheus.HistogramVec
	evaluations  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		estimations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarlab_estimations_total",
				Help: "Threshold searches by variant and outcome",
			},
			[]string{"variant", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tarlab_estimation_duration_seconds",
				Help:    "Wall time of threshold searches",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"variant"},
		),
		candidates: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tarlab_candidates",
				Help:    "Size of the admissible candidate set searched",
				Buckets: prometheus.ExponentialBuckets(4, 2, 12),
			},
			[]string{"variant"},
		),
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarlab_regressions_evaluated_total",
				Help: "Regressions fitted by the grid searches",
			},
			[]string{"variant"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarlab_cache_lookups_total",
				Help: "Result cache lookups",
			},
			[]string{"result"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarlab_messages_sent_total",
				Help: "Messages published to the broker",
			},
			[]string{"topic"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarlab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tarlab_operation_duration_seconds",
				Help:    "Duration of supporting operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEstimation records one finished search.
func (r *Recorder) RecordEstimation(variant, outcome string, seconds float64, candidates, evaluations int) {
	r.estimations.WithLabelValues(variant, outcome).Inc()
	r.duration.WithLabelValues(variant).Observe(seconds)
	if candidates > 0 {
		r.candidates.WithLabelValues(variant).Observe(float64(candidates))
		r.evaluations.WithLabelValues(variant).Add(float64(evaluations))
	}
}

// RecordCacheLookup records a result cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordMessageSent records a message published to topic.
func (r *Recorder) RecordMessageSent(topic string) {
	r.messagesSent.WithLabelValues(topic).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
