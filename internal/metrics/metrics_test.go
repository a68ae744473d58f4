package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobFinished("completed", 2*time.Second)
	m.JobFinished("failed", time.Second)
	m.JobFinished("completed", time.Second)
	m.ChunksClassified("bart", 5)
	m.ObserveInference("classify", "bart", 10*time.Millisecond, nil)
	m.ObserveInference("classify", "bart", 10*time.Millisecond, errors.New("boom"))
	m.QueueRejected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.chunks.WithLabelValues("bart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inferenceCalls.WithLabelValues("classify", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueRejected))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobFinished("completed", time.Second)
		m.ChunksClassified("x", 1)
		m.ObserveInference("embed", "", time.Millisecond, nil)
		m.QueueRejected()
	})
}
