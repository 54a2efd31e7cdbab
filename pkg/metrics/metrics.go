// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	Transitions   *prometheus.CounterVec
	StageChanges  *prometheus.CounterVec
	OutboxJobs    *prometheus.CounterVec
	ChatConnected prometheus.Gauge
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotlight_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spotlight_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotlight_webinar_transitions_total",
			Help: "Webinar status transitions by target status and result.",
		}, []string{"to", "result"}),
		StageChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotlight_attendance_stage_changes_total",
			Help: "Attendance funnel stage writes by stage.",
		}, []string{"stage"}),
		OutboxJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotlight_outbox_jobs_total",
			Help: "Worker jobs processed by queue and result.",
		}, []string{"queue", "result"}),
		ChatConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spotlight_chat_connections",
			Help: "Open chat websocket connections on this instance.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.Transitions, m.StageChanges, m.OutboxJobs, m.ChatConnected)
	}
	return m
}

// Nop returns unregistered collectors for tests and optional wiring.
func Nop() *Metrics {
	return New(nil)
}
