// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_event_mutations_total",
		Help: "Event create/update/delete/bulk operations by outcome.",
	}, []string{"action", "status"})

	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_task_runs_total",
		Help: "Periodic task runs by outcome (ok, failed, skipped).",
	}, []string{"task", "outcome"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calendar_task_duration_seconds",
		Help:    "Wall time of periodic task runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	OccurrencesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_occurrences_generated_total",
		Help: "Occurrences materialized from recurring templates.",
	})

	RemindersDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_reminders_total",
		Help: "Reminder delivery attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	EventsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_events_purged_total",
		Help: "Events removed by the retention sweeper.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calendar_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
