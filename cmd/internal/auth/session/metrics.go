package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twidder_session_cache_hits_total",
		Help: "Token resolutions served from the in-memory session cache.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twidder_session_cache_misses_total",
		Help: "Token resolutions that fell back to a durable-store scan.",
	})

	sessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twidder_sessions_expired_total",
		Help: "Sessions lazily evicted on first access past expiration.",
	})
)
