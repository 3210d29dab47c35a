package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "governor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "governor_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)

	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_rate_limit_rejections_total",
			Help: "Requests rejected by a rate limiter, by limiter prefix.",
		},
		[]string{"limiter"},
	)

	AccessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_access_decisions_total",
			Help: "Access decisions by tier, request type and denial code (empty code = allowed).",
		},
		[]string{"tier", "request_type", "code"},
	)

	ConversationsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "governor_retention_conversations_deleted_total",
			Help: "Total number of conversations removed by the retention engine.",
		},
	)

	RetentionItemFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "governor_retention_item_failures_total",
			Help: "Conversations whose deletion transaction failed.",
		},
	)

	RetentionNotifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "governor_retention_notify_failures_total",
			Help: "Post-commit notifications that could not be delivered.",
		},
	)

	RetentionSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "governor_retention_sweep_duration_seconds",
			Help:    "Duration of a full all-users retention sweep.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)

	BillingCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_billing_cache_lookups_total",
			Help: "Subscription tier cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		RateLimitRejectionsTotal,
		AccessDecisionsTotal,
		ConversationsDeletedTotal,
		RetentionItemFailuresTotal,
		RetentionNotifyFailuresTotal,
		RetentionSweepDuration,
		BillingCacheLookupsTotal,
	)
}
