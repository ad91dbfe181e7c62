package provisioning

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-run provisioning metrics on a private registry so a
// run can be exported to a node-exporter textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	lastRunSuccess prometheus.Gauge
	lastRunTime    prometheus.Gauge
}

// NewMetrics creates and registers the provisioning metrics for plan.
func NewMetrics(plan string) *Metrics {
	labels := prometheus.Labels{"plan": plan}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "petprov",
				Name:        "actions_total",
				Help:        "Actions handled by kind and result",
				ConstLabels: labels,
			},
			[]string{"kind", "result"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "petprov",
				Name:        "action_duration_seconds",
				Help:        "Duration of guard plus effect per action kind",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(0.005, 4, 8), // 5ms to ~82s
			},
			[]string{"kind"},
		),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "petprov",
			Name:        "last_run_success",
			Help:        "1 if the last run completed without error",
			ConstLabels: labels,
		}),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "petprov",
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run finished",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.actionsTotal, m.actionDuration, m.lastRunSuccess, m.lastRunTime)
	return m
}

// ObserveOutcome records one handled action.
func (m *Metrics) ObserveOutcome(o Outcome) {
	m.actionsTotal.WithLabelValues(o.Kind, string(o.Status)).Inc()
	m.actionDuration.WithLabelValues(o.Kind).Observe(o.Duration.Seconds())
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(success bool, at time.Time) {
	if success {
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}
	m.lastRunTime.Set(float64(at.Unix()))
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in text exposition format to path,
// atomically, for the node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
