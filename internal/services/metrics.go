package services

import "github.com/prometheus/client_golang/prometheus"

// Search outcomes used as the "outcome" label of recipe_search_total.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

var (
	// searchTotal counts searches by outcome.
	searchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_search_total",
			Help: "Total number of recipe searches by outcome.",
		},
		[]string{"outcome"},
	)

	// searchCandidates records how many recipes the structured query returned
	// before ingredient filtering.
	searchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipe_search_candidates",
			Help:    "Recipes returned by the structured query, before ingredient filtering.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1..16384
		},
	)

	// searchMatches records the final result size.
	searchMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipe_search_matches",
			Help:    "Recipes returned by a search after ingredient filtering.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(searchTotal, searchCandidates, searchMatches)
}
