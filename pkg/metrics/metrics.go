// Package metrics provides Prometheus metrics for the matcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchOutcomesTotal tracks classified lines by status and method
	MatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "match",
			Name:      "outcomes_total",
			Help:      "Total number of matched import lines by status and method",
		},
		[]string{"status", "method"},
	)

	// MatchErrorsTotal tracks lines that failed to match by error kind
	MatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "match",
			Name:      "errors_total",
			Help:      "Total number of import lines that failed to match",
		},
		[]string{"kind"},
	)

	// MatchDuration tracks per-line evaluation duration in seconds
	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vine",
			Subsystem: "match",
			Name:      "line_duration_seconds",
			Help:      "Duration of one import line match in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"status"},
	)

	// MappingConflictsTotal tracks rejected SKU mapping writes
	MappingConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "mapping",
			Name:      "conflicts_total",
			Help:      "Total number of SKU mapping compare-and-set conflicts",
		},
		[]string{"origin"},
	)

	// ReviewResolutionsTotal tracks review resolutions
	ReviewResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "review",
			Name:      "resolutions_total",
			Help:      "Total number of review queue resolutions",
		},
		[]string{"resolution", "override"},
	)

	// ReviewItemsOpenedTotal tracks review items opened
	ReviewItemsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "review",
			Name:      "items_opened_total",
			Help:      "Total number of review queue items opened",
		},
		[]string{"match_status"},
	)

	// CatalogRebuildsTotal tracks catalog index rebuilds by outcome
	CatalogRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "catalog",
			Name:      "rebuilds_total",
			Help:      "Total number of catalog index rebuilds",
		},
		[]string{"status"},
	)

	// CatalogEntities tracks the size of the current catalog snapshot
	CatalogEntities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vine",
			Subsystem: "catalog",
			Name:      "entities",
			Help:      "Number of entities in the current catalog snapshot",
		},
	)

	// QueueJobsInFlight tracks lines currently being processed by the worker pool
	QueueJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vine",
			Subsystem: "queue",
			Name:      "jobs_in_flight",
			Help:      "Number of import lines currently being processed",
		},
	)

	// QueueJobsProcessed tracks lines processed from the queue
	QueueJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total number of import lines processed from the queue",
		},
		[]string{"status"},
	)

	// ConsumerMessagesTotal tracks import line messages read from Kafka by outcome
	ConsumerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Total number of import line messages read from Kafka",
		},
		[]string{"outcome"},
	)
)
