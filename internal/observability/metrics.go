// Package observability carries the prometheus metrics, the health flag the
// readiness endpoint reports, and optional sentry error telemetry.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus instruments shared by the engine, the
// dispatcher, and the ingest subscriber.
type Metrics struct {
	TicksTotal       prometheus.Counter
	TicksSkipped     prometheus.Counter
	PassFailures     prometheus.Counter
	RulesDisabled    prometheus.Counter
	AlertsTriggered  *prometheus.CounterVec
	AlertsResolved   *prometheus.CounterVec
	Escalations      prometheus.Counter
	NotifyAttempts   *prometheus.CounterVec
	NotifyQueueDepth prometheus.Gauge
	NotifyDropped    prometheus.Counter
	StatusEvents     *prometheus.CounterVec
}

// NewMetrics registers all instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_engine_ticks_total",
			Help: "Evaluation passes started.",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_engine_ticks_skipped_total",
			Help: "Ticks skipped because the previous pass was still running.",
		}),
		PassFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_engine_pass_failures_total",
			Help: "Evaluation passes abandoned due to store errors.",
		}),
		RulesDisabled: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_engine_rules_disabled_total",
			Help: "Rules persistently disabled by validation or scope policy.",
		}),
		AlertsTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_alerts_triggered_total",
			Help: "Alert instances created, by severity.",
		}, []string{"severity"}),
		AlertsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_alerts_resolved_total",
			Help: "Alert instances resolved, by kind (manual or auto).",
		}, []string{"kind"}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_alerts_escalated_total",
			Help: "Alert instances escalated.",
		}),
		NotifyAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_notification_attempts_total",
			Help: "Notification delivery attempts, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		NotifyQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_notification_queue_depth",
			Help: "Jobs waiting in the notification queue.",
		}),
		NotifyDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_notification_dropped_total",
			Help: "Notification jobs dropped because the queue was full.",
		}),
		StatusEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_status_events_total",
			Help: "Device status events ingested, by outcome.",
		}, []string{"outcome"}),
	}
}
