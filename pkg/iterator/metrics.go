package iterator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBatchesHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockqueue",
		Subsystem: "iterator",
		Name:      "batches_handled_total",
		Help:      "Total number of batches handed to the consumer, by outcome.",
	}, []string{"outcome"})

	metricBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockqueue",
		Subsystem: "iterator",
		Name:      "last_batch_size",
		Help:      "Number of blocks in the most recently handled batch.",
	})

	metricWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockqueue",
		Subsystem: "iterator",
		Name:      "empty_queue_waits_total",
		Help:      "Total number of times the iterator waited on an empty queue.",
	})
)
