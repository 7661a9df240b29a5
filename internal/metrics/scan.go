// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joscan_scan_outcomes_total",
		Help: "Classified scan outcomes by operation",
	}, []string{"operation", "outcome"}) // operation=lookup|validate

	scanFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "joscan_scan_validate_fallback_total",
		Help: "Validate responses accepted only because they carried a ticket and a validation record",
	})

	scanDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joscan_scan_dropped_total",
		Help: "Submits dropped because a backend call was already in flight",
	}, []string{"operation"})

	scanDebouncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "joscan_scan_camera_debounced_total",
		Help: "Decoded camera payloads suppressed by the debounce window",
	})

	scanRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joscan_scan_rejected_total",
		Help: "Submits rejected before reaching the backend",
	}, []string{"reason"}) // reason=empty|missing_user_key|no_current_token

	consolesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "joscan_consoles_active",
		Help: "Operator consoles currently held by the registry",
	})
)

// RecordScanOutcome counts one classified outcome.
func RecordScanOutcome(operation, outcome string, fallback bool) {
	scanOutcomesTotal.WithLabelValues(operation, outcome).Inc()
	if fallback {
		scanFallbackTotal.Inc()
	}
}

func IncScanDropped(operation string) { scanDroppedTotal.WithLabelValues(operation).Inc() }
func IncCameraDebounced()             { scanDebouncedTotal.Inc() }
func IncScanRejected(reason string)   { scanRejectedTotal.WithLabelValues(reason).Inc() }
func SetConsolesActive(n int)         { consolesActive.Set(float64(n)) }
