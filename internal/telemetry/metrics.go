// Package telemetry exposes Prometheus collectors for the sentinel's jobs and
// decision pipeline, and the HTTP endpoint that serves them.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_job_runs_total",
			Help: "Scheduled job runs by outcome",
		},
		[]string{"job", "status"}, // status: ok/error/panic
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_job_duration_seconds",
			Help:    "Scheduled job run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		},
		[]string{"job"},
	)

	// Pipeline
	PipelineSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_pipeline_skipped_total",
			Help: "Decision ticks skipped before completion",
		},
		[]string{"reason"}, // reason: busy/insufficient_data
	)

	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_anomalies_total",
			Help: "Anomaly events emitted by severity",
		},
		[]string{"severity"},
	)

	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_health_status",
			Help: "Current health status (0=ok, 1=warning, 2=critical)",
		},
	)

	OverloadRisk = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_overload_risk",
			Help: "Current overload risk level (0=low .. 3=critical)",
		},
	)

	// Notifications
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_notifications_total",
			Help: "Notification attempts by result",
		},
		[]string{"result"}, // result: dispatched/sent/throttled/failed/dropped/spooled
	)

	// Event channel
	EventBusDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_eventbus_depth",
			Help: "Events waiting in the sample queue",
		},
	)

	SamplesStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_samples_stored_total",
			Help: "Metric samples persisted to the store",
		},
	)
)
