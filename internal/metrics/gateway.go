// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "joscan_backend_request_duration_seconds",
		Help:    "Latency of requests to the ticketing backend",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 10), // 10ms .. ~5s
	}, []string{"operation", "status"})

	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joscan_backend_requests_total",
		Help: "Requests to the ticketing backend by result",
	}, []string{"operation", "result"}) // result=ok|http_error|network_error|circuit_open
)

// ObserveGatewayRequest records one backend round trip. status is 0 when no
// response was received.
func ObserveGatewayRequest(operation string, status int, result string, d time.Duration) {
	gatewayRequestDuration.WithLabelValues(operation, strconv.Itoa(status)).Observe(d.Seconds())
	gatewayRequestsTotal.WithLabelValues(operation, result).Inc()
}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "joscan_breaker_state",
		Help: "Circuit breaker state per component: 0 closed, 1 half-open, 2 open",
	}, []string{"component"})

	breakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joscan_breaker_opened_total",
		Help: "Times a circuit breaker opened, by the state it left",
	}, []string{"component", "from"})
)

var breakerLevels = map[string]float64{"closed": 0, "half-open": 1, "open": 2}

// ObserveBreakerTransition records a breaker moving from one state to
// another. Unknown states leave the gauge untouched.
func ObserveBreakerTransition(component, from, to string) {
	if v, ok := breakerLevels[to]; ok {
		breakerState.WithLabelValues(component).Set(v)
	}
	if to == "open" {
		breakerOpenedTotal.WithLabelValues(component, from).Inc()
	}
}
