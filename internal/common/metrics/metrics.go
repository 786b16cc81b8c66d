package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_provider_fetches_total",
			Help: "Total number of upstream provider fetches by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "advisor_provider_fetch_duration_seconds",
			Help: "Duration of upstream provider fetches in seconds",
		},
		[]string{"provider"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_cache_hits_total",
			Help: "Cache hits by provider",
		},
		[]string{"provider"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_cache_misses_total",
			Help: "Cache misses by provider",
		},
		[]string{"provider"},
	)

	CacheCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_cache_coalesced_waits_total",
			Help: "Callers that joined an in-flight fetch instead of issuing their own",
		},
		[]string{"provider"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_rate_limit_rejections_total",
			Help: "Acquisitions that exceeded the bounded wait",
		},
		[]string{"provider"},
	)

	ReportsAssembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_reports_assembled_total",
			Help: "Feasibility reports assembled by confidence tier",
		},
		[]string{"confidence"},
	)
)
