// Package prom ships a Prometheus metrics plugin for triggerflow.
//
// The plugin listens on the engine's lifecycle hooks and exposes
// counters and gauges on a Prometheus registerer, for deployments that
// scrape Prometheus instead of wiring an OpenTelemetry pipeline.
package prom

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/plugin"
)

// Plugin records engine lifecycle activity as Prometheus metrics.
type Plugin struct {
	plugin.Nop

	detections   *prometheus.CounterVec
	jobsStarted  *prometheus.CounterVec
	jobsSettled  *prometheus.CounterVec
	jobsInFlight prometheus.Gauge
	hookErrors   *prometheus.CounterVec
	logsByLevel  *prometheus.CounterVec
}

// New creates the plugin and registers its metrics on reg. Passing nil
// uses the default registerer.
func New(reg prometheus.Registerer) *Plugin {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Plugin{
		detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_detections_total",
			Help: "Detector verdicts by event and outcome.",
		}, []string{"event", "detected"}),
		jobsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_jobs_started_total",
			Help: "Job executions started, by event and job.",
		}, []string{"event", "job"}),
		jobsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_jobs_settled_total",
			Help: "Job executions settled, by event, job and outcome.",
		}, []string{"event", "job", "outcome"}),
		jobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "triggerflow_jobs_in_flight",
			Help: "Job executions currently running.",
		}),
		hookErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_errors_total",
			Help: "Errors surfaced through the error hook, by event.",
		}, []string{"event"}),
		logsByLevel: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triggerflow_log_records_total",
			Help: "Scoped log records mirrored to plugins, by level.",
		}, []string{"level"}),
	}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "prometheus-metrics" }

// OnAfterDetect counts detector verdicts.
func (p *Plugin) OnAfterDetect(_ context.Context, hc *plugin.Context) error {
	p.detections.WithLabelValues(hc.EventName, strconv.FormatBool(hc.Detected)).Inc()
	return nil
}

// OnBeforeJob counts job starts and tracks in-flight executions.
func (p *Plugin) OnBeforeJob(_ context.Context, hc *plugin.Context) error {
	p.jobsStarted.WithLabelValues(hc.EventName, hc.JobName).Inc()
	p.jobsInFlight.Inc()
	return nil
}

// OnAfterJob counts settled jobs by outcome.
func (p *Plugin) OnAfterJob(_ context.Context, hc *plugin.Context) error {
	p.jobsInFlight.Dec()
	outcome := "completed"
	if hc.Err != nil {
		outcome = "failed"
	}
	p.jobsSettled.WithLabelValues(hc.EventName, hc.JobName, outcome).Inc()
	return nil
}

// OnError counts surfaced errors.
func (p *Plugin) OnError(_ context.Context, hc *plugin.Context) error {
	p.hookErrors.WithLabelValues(hc.EventName).Inc()
	return nil
}

// OnLog counts mirrored log records by level.
func (p *Plugin) OnLog(_ context.Context, hc *plugin.Context) error {
	p.logsByLevel.WithLabelValues(hc.Level.String()).Inc()
	return nil
}
