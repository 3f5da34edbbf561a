package services

import "github.com/prometheus/client_golang/prometheus"

// Context lookup sources, used as the "source" label.
const (
	SourceReset      = "reset"       // gate reported a lull; no context carried over
	SourceCache      = "cache"       // fresh hot-cache hit
	SourceStore      = "store"       // durable store supplied the last entry
	SourceNone       = "none"        // no history for the user
	SourceStoreError = "store_error" // durable read failed; degraded to no history
)

var (
	contextLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_context_lookups_total",
			Help: "Context resolutions by the tier that supplied the prior context.",
		},
		[]string{"source"},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_resolutions_total",
			Help: "Message resolutions by terminal state.",
		},
		[]string{"state"},
	)

	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_context_invalidations_total",
			Help: "Context invalidations by hot-cache scope.",
		},
		[]string{"scope"},
	)

	completionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_completion_duration_seconds",
			Help:    "Latency of completion backend calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)
)

func init() {
	prometheus.MustRegister(contextLookups, resolutions, invalidations, completionLatency)
}
