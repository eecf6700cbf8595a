package blocksqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockqueue",
		Name:      "queue_length",
		Help:      "Current number of blocks stored in the queue.",
	})

	metricQueueCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockqueue",
		Name:      "queue_capacity_slots",
		Help:      "Current ring capacity in slots.",
	})

	metricQueueBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockqueue",
		Name:      "queue_bytes",
		Help:      "Current number of bytes stored in the queue.",
	})

	metricQueueLastHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockqueue",
		Name:      "queue_last_height",
		Help:      "Height of the most recently enqueued block.",
	})

	metricResizesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockqueue",
		Name:      "queue_resizes_total",
		Help:      "Total number of ring resizes performed.",
	})

	metricEnqueueErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockqueue",
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of failed enqueue calls by error kind.",
	}, []string{"kind"})
)
