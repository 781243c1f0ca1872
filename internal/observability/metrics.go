package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_pooling", Name: "matches_total", Help: "Requests that produced at least one ranked match"})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_pooling", Name: "match_latency_seconds", Help: "Match pipeline latency seconds"})

	CandidatesScored   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_pooling", Name: "candidates_scored_total", Help: "Candidate offers run through the compatibility scorer"})
	CandidatesRejected = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_pooling", Name: "candidates_rejected_total", Help: "Candidates rejected as malformed or below the score threshold"})

	MatchCacheHits   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_pooling", Name: "match_cache_hits_total", Help: "Match result cache hits"})
	MatchCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_pooling", Name: "match_cache_misses_total", Help: "Match result cache misses"})

	RoutesOptimized = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_pooling", Name: "routes_optimized_total", Help: "Successful route optimizations"})

	// SequencerFallbacks counts the sequencer's no-legal-candidate branch.
	// Input validation should make it unreachable; any increment means an
	// invariant bug and deserves an alert.
	SequencerFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_pooling", Name: "sequencer_fallback_total", Help: "Sequencer fallbacks to input order (invariant violation)"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_pooling", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_pooling",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
