// Package metrics holds the Prometheus collectors for the classification
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docclass"

type Metrics struct {
	jobs           *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	chunks         *prometheus.CounterVec
	inferenceCalls *prometheus.CounterVec
	inferenceTime  *prometheus.HistogramVec
	queueRejected  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "jobs_total",
				Help:      "Classification jobs by final status.",
			},
			[]string{"status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "job_duration_seconds",
				Help:      "Time from job start to final status.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "chunks_classified_total",
				Help:      "Chunks classified, by model.",
			},
			[]string{"model"},
		),
		inferenceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inference",
				Name:      "requests_total",
				Help:      "Inference backend calls by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		inferenceTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "inference",
				Name:      "request_duration_seconds",
				Help:      "Inference backend call latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		queueRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "rejected_total",
				Help:      "Jobs that could not be enqueued.",
			},
		),
	}
	reg.MustRegister(m.jobs, m.jobDuration, m.chunks, m.inferenceCalls, m.inferenceTime, m.queueRejected)
	return m
}

// JobFinished records a job reaching status after d.
func (m *Metrics) JobFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ChunksClassified(model string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.chunks.WithLabelValues(model).Add(float64(n))
}

func (m *Metrics) QueueRejected() {
	if m == nil {
		return
	}
	m.queueRejected.Inc()
}

// ObserveInference matches inference.CallObserver.
func (m *Metrics) ObserveInference(op, _ string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.inferenceCalls.WithLabelValues(op, outcome).Inc()
	m.inferenceTime.WithLabelValues(op).Observe(d.Seconds())
}
