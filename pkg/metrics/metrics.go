package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// PasswordResets counts reset handshake steps (request|consume) by result.
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_password_resets_total",
			Help: "Total number of password reset requests and consumptions",
		},
		[]string{"stage", "result"},
	)

	// BVNVerifications counts BVN workflow steps (request|submit) by result.
	BVNVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_bvn_verifications_total",
			Help: "Total number of BVN verification requests and submissions",
		},
		[]string{"stage", "result"},
	)

	// HTTPRequests counts served requests by route template and status class.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "class"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountd_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result maps an error to the result label used by the counters above.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
