// Package metrics provides Prometheus collectors for the dispatch pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	promDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_dispatch_requests_total",
			Help: "Total dispatch requests by path and outcome",
		},
		[]string{"path", "outcome"},
	)
	promGatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_dispatch_gateway_calls_total",
			Help: "Total calls to the push gateway by status",
		},
		[]string{"status"},
	)
	promLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_dispatch_token_lookup_failures_total",
			Help: "Total token store lookups that errored and were degraded to empty results",
		},
	)
	promResolvedTargets = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_dispatch_resolved_targets",
			Help:    "Number of provider tokens resolved per dispatch",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
)

func init() {
	prometheus.MustRegister(
		promDispatches,
		promGatewayCalls,
		promLookupFailures,
		promResolvedTargets,
	)
}

// IncDispatch records the outcome of a dispatch request.
// path is "generic" or "message"; outcome is "sent", "no_recipients", "rejected" or "error".
func IncDispatch(path, outcome string) {
	promDispatches.WithLabelValues(path, outcome).Inc()
}

// IncGatewayCall records a push gateway call result.
func IncGatewayCall(status string) {
	promGatewayCalls.WithLabelValues(status).Inc()
}

// IncLookupFailure records a token store lookup that errored.
func IncLookupFailure() {
	promLookupFailures.Inc()
}

// ObserveResolvedTargets records how many tokens a dispatch resolved to.
func ObserveResolvedTargets(n int) {
	promResolvedTargets.Observe(float64(n))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
