package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cvtabs_fetches_total",
		Help: "Search requests sent, by outcome",
	}, []string{"outcome"})
	CoalescedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvtabs_fetches_coalesced_total",
		Help: "Fetch calls that joined an identical in-flight request",
	})
	PageAdjustments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvtabs_page_adjustments_total",
		Help: "Fetches whose page was past the end of the result set",
	})
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cvtabs_fetch_duration_seconds",
		Help:    "Search request latency",
		Buckets: prometheus.DefBuckets,
	})
	PersistenceOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cvtabs_persistence_operations_total",
		Help: "Session persistence calls, by operation and outcome",
	}, []string{"operation", "outcome"})
)

// Outcome label values.
const (
	OutcomeCommitted = "committed"
	OutcomeDiscarded = "discarded"
	OutcomeAdjusted  = "adjusted"
	OutcomeFailed    = "failed"
	OutcomeOK        = "ok"
	OutcomeConflict  = "conflict"
)
