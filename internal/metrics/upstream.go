package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every ytproxy metric.
const Namespace = "ytproxy"

// Upstream Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream API attempts",
		},
		// result: ok, quota_exceeded, status_error, transport_error, decode_error
		[]string{"operation", "result"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream API attempt duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	UpstreamQuotaChargedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_quota_charged_total",
			Help:      "Quota units charged to keys",
		},
		[]string{"operation"},
	)

	KeyExpirationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "key_expirations_total",
			Help:      "Keys marked exhausted after the upstream rejected them",
		},
	)

	KeysExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "keys_exhausted_total",
			Help:      "Requests rejected because no key had enough budget",
		},
		[]string{"operation"},
	)

	QuotaResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quota_resets_total",
			Help:      "Scheduled daily budget resets",
		},
	)

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "response_cache_total",
			Help:      "Upstream response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registerOnce sync.Once

// Register registers HTTP and upstream metrics. Must be called once from main.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			UpstreamRequestsTotal,
			UpstreamRequestDuration,
			UpstreamQuotaChargedTotal,
			KeyExpirationsTotal,
			KeysExhaustedTotal,
			QuotaResetsTotal,
			ResponseCacheTotal,
		)
	})
}
