package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-kit/log"

	"github.com/nodebridge/blockqueue/pkg/block"
	"github.com/nodebridge/blockqueue/pkg/blocksqueue"
	"github.com/nodebridge/blockqueue/pkg/provider"
)

// ErrAlreadySubscribed is returned by PushStrategy.Load when called while a
// subscription is already active.
var ErrAlreadySubscribed = errors.New("push strategy: already subscribed")

// PushStrategy performs a single catch-up fetch, then consumes a live
// new-block subscription, enqueuing each delivery under the queue's
// fullness and terminating-height guards.
type PushStrategy struct {
	cfg      Config
	queue    *blocksqueue.BlocksQueue
	provider provider.Provider
	logger   log.Logger

	mu         sync.Mutex
	sub        provider.Subscription
	subscribed bool
}

// NewPushStrategy constructs a PushStrategy.
func NewPushStrategy(cfg Config, queue *blocksqueue.BlocksQueue, p provider.Provider, logger log.Logger) *PushStrategy {
	return &PushStrategy{cfg: cfg, queue: queue, provider: p, logger: logger}
}

// Load performs the catch-up fetch, then blocks consuming the live
// subscription until a delivery fails or ctx is cancelled. Subscription has
// no end-of-stream signal, so a subscription that stops delivering is not
// detected: Load then stays blocked until ctx is done. Every exit path tears
// down the subscription.
func (s *PushStrategy) Load(ctx context.Context, networkHeight uint64) error {
	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return ErrAlreadySubscribed
	}
	s.mu.Unlock()

	if err := s.catchUp(ctx, networkHeight); err != nil {
		return err
	}

	errCh := make(chan error, 1)

	sub, err := s.provider.SubscribeToNewBlocks(ctx, func(b *block.Block) {
		s.onBlock(b, errCh)
	})
	if err != nil {
		return fmt.Errorf("push strategy subscribe: %w", err)
	}

	s.mu.Lock()
	s.sub = sub
	s.subscribed = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.sub != nil {
			s.sub.Unsubscribe()
		}
		s.sub = nil
		s.subscribed = false
		s.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// onBlock is the subscription delivery callback. It applies the queue's
// terminating-height and fullness guards before enqueuing, unsubscribing
// and reporting any failure on errCh.
func (s *PushStrategy) onBlock(b *block.Block, errCh chan<- error) {
	if s.queue.IsMaxHeightReached() {
		return
	}
	if s.queue.IsQueueFull() {
		s.reportAndUnsubscribe(blocksqueue.ErrQueueFullFor(s.queue.CurrentBytes(), s.queue.MaxQueueBytes()), errCh)
		return
	}
	if err := s.queue.Enqueue(b); err != nil {
		s.reportAndUnsubscribe(err, errCh)
	}
}

func (s *PushStrategy) reportAndUnsubscribe(err error, errCh chan<- error) {
	select {
	case errCh <- err:
	default:
	}
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.mu.Unlock()
}

func (s *PushStrategy) catchUp(ctx context.Context, networkHeight uint64) error {
	lastHeight := s.queue.LastHeight()

	heights := make([]uint64, 0)
	for h := lastHeight + 1; h <= int64(networkHeight); h++ {
		heights = append(heights, uint64(h))
	}
	if len(heights) == 0 {
		return nil
	}

	blocks, err := s.provider.GetManyBlocksByHeights(ctx, heights, s.cfg.FullTransactions, s.cfg.VerifyMerkle)
	if err != nil {
		return fmt.Errorf("push strategy catch-up fetch: %w", err)
	}

	// Sorted descending, then walked in reverse: mirrors the pop-from-end
	// consumption pattern while still enqueuing in ascending height order.
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i] == nil || blocks[j] == nil {
			return blocks[j] == nil && blocks[i] != nil
		}
		return blocks[i].Height > blocks[j].Height
	})

	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if b == nil {
			continue
		}
		if int64(b.Height) <= s.queue.LastHeight() {
			continue
		}
		if err := s.queue.Enqueue(b); err != nil {
			return err
		}
	}
	return nil
}

// Stop tears down any active subscription.
func (s *PushStrategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	s.subscribed = false
}
