package app

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/nodebridge/blockqueue/pkg/iterator"
	"github.com/nodebridge/blockqueue/pkg/provider"
)

// loggingConsumer is the bundled reference provider.Consumer: it logs each
// batch and immediately confirms it. A real indexer plugs in its own
// HandleBatch and decides when to call ConfirmProcessedBatch; this
// implementation exists so the binary has a runnable default end to end.
type loggingConsumer struct {
	logger log.Logger
	it     *iterator.Iterator
}

func newLoggingConsumer(logger log.Logger) *loggingConsumer {
	return &loggingConsumer{logger: logger}
}

// bindIterator wires the consumer back to the iterator it confirms against.
// Needed because the Iterator and its Consumer are constructed together but
// each needs a reference to the other.
func (c *loggingConsumer) bindIterator(it *iterator.Iterator) {
	c.it = it
}

func (c *loggingConsumer) HandleBatch(_ context.Context, batch provider.Batch) error {
	hashes := make([]string, len(batch.Blocks))
	for i, b := range batch.Blocks {
		hashes[i] = b.Hash
	}

	level.Info(c.logger).Log(
		"msg", "handling batch",
		"request_id", batch.RequestID,
		"count", len(batch.Blocks),
	)

	_, err := c.it.ConfirmProcessedBatch(hashes)
	return err
}
