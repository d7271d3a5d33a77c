package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_requests_total",
			Help: "Total number of orchestrated requests by terminal state",
		},
		[]string{"provider", "level", "terminal"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_request_duration_seconds",
			Help:    "End-to-end request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"level"},
	)

	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_attempts_total",
			Help: "Total number of provider attempts by outcome",
		},
		[]string{"provider", "level", "outcome"},
	)

	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_attempt_duration_seconds",
			Help:    "Single provider attempt duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_cache_evictions_total",
			Help: "Total number of cache evictions by reason",
		},
		[]string{"reason"},
	)

	EmergencyServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_emergency_served_total",
			Help: "Total number of requests answered by the emergency responder",
		},
	)

	ProviderHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_provider_health",
			Help: "Provider health state (0=healthy, 1=degraded, 2=unavailable)",
		},
		[]string{"provider"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_provider_errors_total",
			Help: "Total number of provider errors by type",
		},
		[]string{"provider", "error_type"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_rate_limit_hits_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"client"},
	)

	QuotaExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_quota_exhausted_total",
			Help: "Total number of candidate skips due to exhausted daily quota",
		},
		[]string{"provider"},
	)
)

func RecordRequest(provider, level, terminal string, durationSec float64) {
	RequestsTotal.WithLabelValues(provider, level, terminal).Inc()
	RequestDuration.WithLabelValues(level).Observe(durationSec)
}

func RecordAttempt(provider, level, outcome string, durationSec float64) {
	AttemptsTotal.WithLabelValues(provider, level, outcome).Inc()
	AttemptDuration.WithLabelValues(provider).Observe(durationSec)
}

func RecordCacheHit()  { CacheHits.Inc() }
func RecordCacheMiss() { CacheMisses.Inc() }

func RecordCacheEviction(reason string) {
	CacheEvictions.WithLabelValues(reason).Inc()
}

func RecordEmergency() { EmergencyServed.Inc() }

func RecordProviderError(provider, errorType string) {
	ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

func RecordRateLimitHit(client string) {
	RateLimitHits.WithLabelValues(client).Inc()
}

func RecordQuotaExhausted(provider string) {
	QuotaExhausted.WithLabelValues(provider).Inc()
}

func SetProviderHealth(provider, status string) {
	var v float64
	switch status {
	case "degraded":
		v = 1
	case "unavailable":
		v = 2
	}
	ProviderHealth.WithLabelValues(provider).Set(v)
}
