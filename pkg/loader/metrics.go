package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLoadPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockqueue",
		Subsystem: "loader",
		Name:      "load_passes_total",
		Help:      "Total number of loader passes by outcome.",
	}, []string{"outcome"})

	metricPreloadCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockqueue",
		Subsystem: "loader",
		Name:      "preload_count",
		Help:      "Current adaptive preload fan-out of the pull strategy.",
	})

	metricPreloadedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockqueue",
		Subsystem: "loader",
		Name:      "preloaded_items",
		Help:      "Number of preload items currently pending fetch.",
	})

	metricFetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockqueue",
		Subsystem: "loader",
		Name:      "fetch_retries_total",
		Help:      "Total number of immediate fetch retries performed.",
	})

	metricBackoffRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockqueue",
		Subsystem: "loader",
		Name:      "backoff_retries_total",
		Help:      "Total number of backoff-delayed retries after a failed load pass.",
	})
)
