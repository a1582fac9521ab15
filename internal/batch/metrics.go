package batch

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry                *prometheus.Registry
	batchesTotal            prometheus.Counter
	rejectedBatchesTotal    *prometheus.CounterVec
	jobsTotal               *prometheus.CounterVec
	jobDuration             *prometheus.HistogramVec
	activeJobs              prometheus.Gauge
	pollAttemptsTotal       prometheus.Counter
	credentialInvalidations prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veostudio_batches_total",
			Help: "Total batches accepted for generation.",
		}),
		rejectedBatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veostudio_batches_rejected_total",
			Help: "Total batch submissions rejected before any job was created.",
		}, []string{"reason"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veostudio_jobs_total",
			Help: "Total generation jobs by model and final status.",
		}, []string{"model", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veostudio_job_duration_seconds",
			Help:    "Time from submission to a terminal status for each job.",
			Buckets: []float64{5, 15, 30, 60, 90, 120, 180, 300, 600},
		}, []string{"model", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "veostudio_active_jobs",
			Help: "Current number of job lifecycles in flight.",
		}),
		pollAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veostudio_poll_attempts_total",
			Help: "Total status polls against remote operations.",
		}),
		credentialInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veostudio_credential_invalidations_total",
			Help: "Total job failures that reported an invalid or expired credential.",
		}),
	}

	registry.MustRegister(
		m.batchesTotal,
		m.rejectedBatchesTotal,
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.pollAttemptsTotal,
		m.credentialInvalidations,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
