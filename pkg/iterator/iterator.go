// Package iterator hands FIFO batches of enqueued blocks to a consumer and
// advances only once the consumer explicitly confirms it has retired them.
package iterator

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/services"

	"github.com/nodebridge/blockqueue/pkg/blocksqueue"
	"github.com/nodebridge/blockqueue/pkg/provider"
)

// Iterator drives a single consumer over a BlocksQueue: on each pass it
// takes a size-bounded batch from the head, hands it to the consumer, and
// then waits until the consumer confirms before taking the next one.
type Iterator struct {
	services.Service

	cfg      Config
	queue    *blocksqueue.BlocksQueue
	consumer provider.Consumer
	logger   log.Logger

	signal *notifier
}

// New constructs an Iterator.
func New(cfg Config, queue *blocksqueue.BlocksQueue, consumer provider.Consumer, logger log.Logger) *Iterator {
	it := &Iterator{
		cfg:      cfg,
		queue:    queue,
		consumer: consumer,
		logger:   logger,
		signal:   newNotifier(),
	}
	it.Service = services.NewBasicService(nil, it.running, nil)
	return it
}

func (it *Iterator) running(ctx context.Context) error {
	level.Info(it.logger).Log("msg", "iterator starting")

	for {
		if ctx.Err() != nil {
			return nil
		}

		batch := it.queue.GetBatchUpToSize(it.cfg.BlocksBatchSize)
		if len(batch) == 0 {
			metricWaitsTotal.Inc()
			if err := it.signal.Wait(ctx); err != nil {
				return nil
			}
			continue
		}

		requestID := uuid.NewString()
		err := it.consumer.HandleBatch(ctx, provider.Batch{Blocks: batch, RequestID: requestID})
		if err != nil {
			metricBatchesHandledTotal.WithLabelValues("failed").Inc()
			level.Error(it.logger).Log("msg", "handleBatch failed, surfacing to supervisor", "request_id", requestID, "err", err)
			return err
		}

		metricBatchesHandledTotal.WithLabelValues("success").Inc()
		metricBatchSize.Set(float64(len(batch)))

		if err := it.signal.Wait(ctx); err != nil {
			return nil
		}
	}
}

// ConfirmProcessedBatch dequeues hashes from the queue head in the given
// order and wakes the iterator loop, whether or not the dequeue fully
// succeeded, so a partially-wrong confirmation can never stall the loop.
func (it *Iterator) ConfirmProcessedBatch(hashes []string) (int, error) {
	n, err := it.queue.Dequeue(hashes)
	it.signal.Notify()
	return n, err
}

// ResolveNextBatch wakes a waiting iterator loop without dequeuing
// anything, for callers (e.g. the loader, after an enqueue) that want to
// prompt an immediate re-check of the queue head.
func (it *Iterator) ResolveNextBatch() {
	it.signal.Notify()
}
