package metrics

import (
	"context"
	"fmt"
	"net/http"

	"moodle-sync/core/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run statuses.
const (
	StatusOK           = "ok"
	StatusRecordErrors = "record_errors"
	StatusFailed       = "failed"
)

// Metrics records the outcome of sync runs.
type Metrics struct {
	registry    *prometheus.Registry
	handler     http.Handler
	runs        *prometheus.CounterVec
	records     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	lastErrors  *prometheus.GaugeVec
	textfile    string
}

// New registers the sync collectors on a private registry.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	ns := cfg.Namespace

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "runs_total",
		Help:      "Sync runs by kind and status",
	}, []string{"kind", "status"})

	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "records_total",
		Help:      "Records processed by kind and outcome",
	}, []string{"kind", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "run_duration_seconds",
		Help:      "Duration of sync runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"kind"})

	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last run that completed without record errors",
	}, []string{"kind"})

	lastErrors := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "last_run_errors",
		Help:      "Record errors of the most recent run",
	}, []string{"kind"})

	registry.MustRegister(runs, records, duration, lastSuccess, lastErrors)

	return &Metrics{
		registry:    registry,
		handler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		runs:        runs,
		records:     records,
		duration:    duration,
		lastSuccess: lastSuccess,
		lastErrors:  lastErrors,
		textfile:    cfg.TextfilePath,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Publish records a finished run and refreshes the textfile when configured.
func (m *Metrics) Publish(_ context.Context, report *reconcile.Report) error {
	if m == nil || report == nil {
		return nil
	}
	kind := string(report.Kind)

	status := StatusOK
	if report.HasErrors() {
		status = StatusRecordErrors
	}
	m.runs.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(report.Duration().Seconds())
	for outcome, n := range report.Counts() {
		if n > 0 {
			m.records.WithLabelValues(kind, outcome).Add(float64(n))
		}
	}
	m.lastErrors.WithLabelValues(kind).Set(float64(report.Summary.Errors))
	if status == StatusOK {
		m.lastSuccess.WithLabelValues(kind).Set(float64(report.FinishedAt.Unix()))
	}
	return m.flush()
}

// Failed records a run that aborted before producing a report.
func (m *Metrics) Failed(kind reconcile.Kind) error {
	if m == nil {
		return nil
	}
	m.runs.WithLabelValues(string(kind), StatusFailed).Inc()
	return m.flush()
}

func (m *Metrics) flush() error {
	if m.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
