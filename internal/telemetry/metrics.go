package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandate_wizard_stage_transitions_total",
		Help: "Wizard stage transitions by source and target stage.",
	}, []string{"from", "to"})

	StaleLookupsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mandate_wizard_stale_lookups_discarded_total",
		Help: "Customer lookup responses dropped because a newer request superseded them.",
	})

	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_api_calls_total",
		Help: "Calls to the payments API by operation and result.",
	}, []string{"operation", "result"})

	ExternalCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payments_api_call_duration_seconds",
		Help:    "Latency of payments API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ListFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refreshable_list_fetches_total",
		Help: "List fetches by list and result.",
	}, []string{"list", "result"})

	ListTicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refreshable_list_ticks_skipped_total",
		Help: "Fetches skipped because another fetch for the list was in flight.",
	}, []string{"list"})
)
