package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Generator ───────────────────────────────────────────────────────────────

	GeneratorTasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "generator",
		Name:      "tasks_created_total",
		Help:      "Total tasks materialized from recurring schedules.",
	}, []string{"firm_id"})

	GeneratorSchedulesDeactivated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "generator",
		Name:      "schedules_deactivated_total",
		Help:      "Total schedules deactivated because their end condition was met.",
	})

	GeneratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "generator",
		Name:      "failures_total",
		Help:      "Per-schedule generation failures, labelled by reason class.",
	}, []string{"reason"})

	GeneratorConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "generator",
		Name:      "conflicts_total",
		Help:      "Version conflicts lost to a concurrent runner (benign).",
	})

	GeneratorRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recurflow",
		Subsystem: "generator",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one full generation pass.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// ─── API ─────────────────────────────────────────────────────────────────────

	APISchedulesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "api",
		Name:      "schedules_created_total",
		Help:      "Total recurring schedules created through the API.",
	})

	APIManualRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "api",
		Name:      "manual_runs_total",
		Help:      "Manual Generate Now triggers, labelled by outcome.",
	}, []string{"outcome"})

	// ─── Notifier ────────────────────────────────────────────────────────────────

	NotifierDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "notifier",
		Name:      "delivered_total",
		Help:      "Notifications delivered, labelled by channel.",
	}, []string{"channel"})

	NotifierFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recurflow",
		Subsystem: "notifier",
		Name:      "failed_total",
		Help:      "Notification deliveries that exhausted their retries.",
	}, []string{"channel"})
)
