package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	PlansCreated       prometheus.Counter
	PlansConsumed      prometheus.Counter
	PlansExpired       prometheus.Counter
	CommitsTotal       *prometheus.CounterVec
	RecordsMutated     *prometheus.CounterVec
	GuardrailDenials   *prometheus.CounterVec
	IdempotentReplays  prometheus.Counter
	PurgesThrottled    prometheus.Counter
	PlatformErrors     prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PlansCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_plans_created_total",
			Help: "Total number of bulk plans prepared",
		}),
		PlansConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_plans_consumed_total",
			Help: "Total number of plans consumed by commits",
		}),
		PlansExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_plans_expired_total",
			Help: "Total number of plans evicted after their TTL elapsed",
		}),
		CommitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_commits_total",
			Help: "Total number of commit calls by action and outcome",
		}, []string{"action", "outcome"}),
		RecordsMutated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_records_mutated_total",
			Help: "Total number of per-record mutations by outcome",
		}, []string{"outcome"}),
		GuardrailDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_guardrail_denials_total",
			Help: "Total number of guardrail rejections by check",
		}, []string{"check"}),
		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_idempotent_replays_total",
			Help: "Total number of commit calls short-circuited by a known idempotency key",
		}),
		PurgesThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_purges_throttled_total",
			Help: "Total number of cache purge requests rejected by the throttle",
		}),
		PlatformErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_platform_errors_total",
			Help: "Total number of non-2xx responses from the commerce platform",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storegate_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
