// Package metrics exposes Prometheus collectors for the trigger engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tripwire"

// Trigger check results.
const (
	ResultFired       = "fired"
	ResultNotFired    = "not_fired"
	ResultRateLimited = "rate_limited"
	ResultError       = "error"
)

// Registry holds every engine collector. A nil *Registry is valid and records nothing.
type Registry struct {
	gatherer prometheus.Gatherer

	TriggerChecksTotal   *prometheus.CounterVec
	ExecutionsTotal      *prometheus.CounterVec
	ExecutionDuration    *prometheus.HistogramVec
	ActionFailuresTotal  *prometheus.CounterVec
	SummaryStrategyTotal *prometheus.CounterVec
	GeofenceTransitions  *prometheus.CounterVec
	DedupPrunedTotal     prometheus.Counter
	InFlightExecutions   prometheus.Gauge
}

// NewRegistry registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated from the default registry.
func NewRegistry(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		gatherer: reg,
		TriggerChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trigger_checks_total",
				Help:      "Trigger evaluations by kind and result",
			},
			[]string{"kind", "result"},
		),
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Finished pipeline executions by trigger kind and status",
			},
			[]string{"kind", "status"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of pipeline executions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ActionFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_failures_total",
				Help:      "Failed actions by type",
			},
			[]string{"type"},
		),
		SummaryStrategyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "summary_strategy_total",
				Help:      "Summaries produced by each fallback strategy",
			},
			[]string{"strategy"},
		),
		GeofenceTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geofence_transitions_total",
				Help:      "Geofence transitions received by type and whether any trigger matched",
			},
			[]string{"transition", "matched"},
		),
		DedupPrunedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dedup_pruned_total",
				Help:      "Dedup records removed by retention pruning",
			},
		),
		InFlightExecutions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "executions_in_flight",
				Help:      "Pipeline executions currently running",
			},
		),
	}
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}

	return r.gatherer
}

func (r *Registry) TriggerChecked(kind, result string) {
	if r == nil {
		return
	}

	r.TriggerChecksTotal.WithLabelValues(kind, result).Inc()
}

func (r *Registry) ExecutionFinished(kind string, success bool, duration time.Duration) {
	if r == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	r.ExecutionsTotal.WithLabelValues(kind, status).Inc()
	r.ExecutionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (r *Registry) ActionFailed(actionType string) {
	if r == nil {
		return
	}

	r.ActionFailuresTotal.WithLabelValues(actionType).Inc()
}

// SummaryProduced matches the summarize.Chain OnResult hook.
func (r *Registry) SummaryProduced(strategy string) {
	if r == nil {
		return
	}

	r.SummaryStrategyTotal.WithLabelValues(strategy).Inc()
}

func (r *Registry) GeofenceTransition(transition string, matched bool) {
	if r == nil {
		return
	}

	label := "false"
	if matched {
		label = "true"
	}

	r.GeofenceTransitions.WithLabelValues(transition, label).Inc()
}

func (r *Registry) DedupPruned(count int) {
	if r == nil || count <= 0 {
		return
	}

	r.DedupPrunedTotal.Add(float64(count))
}

func (r *Registry) ExecutionStarted() {
	if r == nil {
		return
	}

	r.InFlightExecutions.Inc()
}

func (r *Registry) ExecutionDone() {
	if r == nil {
		return
	}

	r.InFlightExecutions.Dec()
}
