package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "integration_framework"

var (
	rateLimitWaitBuckets = []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

	// OutboundRequestsTotal counts data calls issued through rate-limited
	// clients, labelled by final HTTP status class.
	OutboundRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_requests_total",
		Help:      "Outbound platform API requests.",
	}, []string{"integration", "status"})

	RateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rate_limit_wait_seconds",
		Help:      "Time requests spent waiting on the per-connection quota gate.",
		Buckets:   rateLimitWaitBuckets,
	}, []string{"integration"})

	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Refresh-token grants attempted, by outcome.",
	}, []string{"integration", "status"})

	TokenExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_exchanges_total",
		Help:      "Authorization-code grants attempted, by outcome.",
	}, []string{"integration", "status"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Inbound webhook events ingested.",
	}, []string{"integration", "verified"})

	SyncJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_jobs_total",
		Help:      "Sync jobs recorded, by kind and terminal status.",
	}, []string{"kind", "status"})
)
