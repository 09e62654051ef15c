// Package metrics exposes the indexer's operational counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_events_processed_total",
		Help: "Events applied to the entity store, by event type",
	}, []string{"type"})

	EventsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_events_skipped_total",
		Help: "Events skipped without handler execution (duplicate, unknown type, undecodable)",
	}, []string{"reason"})

	HandlerNoOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_handler_noops_total",
		Help: "Handler invocations that were no-ops because a required referent was missing",
	}, []string{"handler"})

	HandlerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_handler_errors_total",
		Help: "Handler invocations that failed, by event type",
	}, []string{"type"})

	InvariantViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_invariant_violations_total",
		Help: "Decrements that would have driven a balance negative",
	})

	AuxReadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_aux_read_failures_total",
		Help: "Chain-gateway state lookups that failed",
	})
)
