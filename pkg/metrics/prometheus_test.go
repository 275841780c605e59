package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordEstimation("constant", "ok", 0.2, 120, 120)
	r.RecordEstimation("constant", "ok", 0.1, 100, 100)
	r.RecordEstimation("timevarying", "no_admissible_threshold", 0.01, 0, 0)
	r.RecordCacheLookup(true)
	r.RecordCacheLookup(false)
	r.RecordCacheLookup(false)
	r.RecordError("store")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.estimations.WithLabelValues("constant", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.estimations.WithLabelValues("timevarying", "no_admissible_threshold")))
	assert.Equal(t, 220.0, testutil.ToFloat64(r.evaluations.WithLabelValues("constant")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration.WithLabelValues("timevarying").(prometheus.Histogram)))
}
