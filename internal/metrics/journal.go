// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	journalWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "joscan_journal_write_errors_total",
		Help: "Scan journal entries that could not be stored",
	})

	statsCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joscan_stats_cache_total",
		Help: "Journal statistics cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joscan_config_reloads_total",
		Help: "Configuration reload attempts by outcome",
	}, []string{"outcome"})
)

func IncJournalWriteError()          { journalWriteErrors.Inc() }
func IncStatsCache(hit bool)         { statsCacheTotal.WithLabelValues(hitLabel(hit)).Inc() }
func IncConfigReload(outcome string) { configReloadsTotal.WithLabelValues(outcome).Inc() }

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
