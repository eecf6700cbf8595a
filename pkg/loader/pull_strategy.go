package loader

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/time/rate"

	"github.com/nodebridge/blockqueue/pkg/block"
	"github.com/nodebridge/blockqueue/pkg/blocksqueue"
	"github.com/nodebridge/blockqueue/pkg/provider"
)

// preloadItem is a lightweight descriptor staged before a block's full
// body is fetched.
type preloadItem struct {
	Hash   string
	Height uint64
	Size   int
}

// PullStrategy polls the provider for what blocks exist beyond the queue's
// last height, then fetches and enqueues them in reply-byte-bounded
// batches, adapting its preload fan-out to observed end-to-end timing.
type PullStrategy struct {
	cfg              Config
	queue            *blocksqueue.BlocksQueue
	provider         provider.Provider
	logger           log.Logger
	defaultBlockSize int

	// pollLimiter paces this strategy's own stats-preload calls,
	// independent of whatever rate limiting the provider transport
	// applies underneath.
	pollLimiter *rate.Limiter

	preloadedItems  []preloadItem
	maxPreloadCount int

	lastDuration     time.Duration
	previousDuration time.Duration
}

// NewPullStrategy constructs a PullStrategy. defaultBlockSize is used to
// size preload items whose stats omit total_size.
func NewPullStrategy(cfg Config, queue *blocksqueue.BlocksQueue, p provider.Provider, logger log.Logger, defaultBlockSize int) *PullStrategy {
	return &PullStrategy{
		cfg:              cfg,
		queue:            queue,
		provider:         p,
		logger:           logger,
		defaultBlockSize: defaultBlockSize,
		pollLimiter:      rate.NewLimiter(rate.Limit(8), 8),
		maxPreloadCount:  cfg.BasePreloadCount,
	}
}

// Load runs one preload-then-fetch pass: it tops up preloadedItems if
// empty, then drains reply-byte-bounded prefixes into the queue until
// either preloadedItems is exhausted or the queue is overloaded.
func (s *PullStrategy) Load(ctx context.Context, networkHeight uint64) error {
	start := time.Now()
	s.adaptPreloadCount()

	if len(s.preloadedItems) == 0 {
		if err := s.preload(ctx, networkHeight); err != nil {
			return err
		}
	}

	for len(s.preloadedItems) > 0 && !s.queue.IsQueueOverloaded(0) {
		if err := s.loadAndEnqueueOnce(ctx); err != nil {
			return err
		}
	}

	s.previousDuration = s.lastDuration
	s.lastDuration = time.Since(start)
	return nil
}

// Stop discards any pending preload state. PullStrategy holds no
// background tasks of its own.
func (s *PullStrategy) Stop() {
	s.preloadedItems = nil
}

// adaptPreloadCount is a multiplicative increase / multiplicative decrease
// controller tracking end-to-end load-pass latency.
func (s *PullStrategy) adaptPreloadCount() {
	if s.previousDuration <= 0 || s.lastDuration <= 0 {
		return
	}
	ratio := float64(s.lastDuration) / float64(s.previousDuration)
	switch {
	case ratio > 1.2:
		s.maxPreloadCount = int(math.Round(float64(s.maxPreloadCount) * 1.25))
	case ratio < 0.8:
		s.maxPreloadCount = maxInt(1, int(math.Round(float64(s.maxPreloadCount)*0.75)))
	}
	metricPreloadCount.Set(float64(s.maxPreloadCount))
}

func (s *PullStrategy) preload(ctx context.Context, networkHeight uint64) error {
	lastHeight := s.queue.LastHeight()

	heights := make([]uint64, 0, s.maxPreloadCount)
	for h := lastHeight + 1; h <= int64(networkHeight) && len(heights) < s.maxPreloadCount; h++ {
		heights = append(heights, uint64(h))
	}
	if len(heights) == 0 {
		return nil
	}

	if err := s.pollLimiter.Wait(ctx); err != nil {
		return err
	}

	stats, err := s.provider.GetManyBlocksStatsByHeights(ctx, heights)
	if err != nil {
		return err
	}

	for _, st := range stats {
		if st.Hash == "" {
			return provider.ErrMalformedStats
		}
		size := s.defaultBlockSize
		if st.HasTotalSize {
			size = st.TotalSize
		}
		s.preloadedItems = append(s.preloadedItems, preloadItem{
			Hash: st.Hash, Height: st.Height, Size: size,
		})
	}

	sort.Slice(s.preloadedItems, func(i, j int) bool {
		return s.preloadedItems[i].Height < s.preloadedItems[j].Height
	})
	metricPreloadedItems.Set(float64(len(s.preloadedItems)))
	return nil
}

// loadAndEnqueueOnce fetches and enqueues the longest reply-byte-bounded
// prefix of preloadedItems. On a persistent fetch failure over a
// multi-item prefix it degrades gracefully by retrying with half the
// prefix before surfacing the error, rather than discarding the whole
// fetch.
func (s *PullStrategy) loadAndEnqueueOnce(ctx context.Context) error {
	prefix, rest := splitPrefixBySize(s.preloadedItems, s.cfg.MaxRpcReplyBytes, s.cfg.SafetyFactor)
	s.preloadedItems = rest

	blocks, err := s.fetchWithRetry(ctx, heightsOf(prefix))
	if err != nil && len(prefix) > 1 {
		half := prefix[:(len(prefix)+1)/2]
		remainder := prefix[len(half):]
		s.preloadedItems = append(append([]preloadItem{}, remainder...), s.preloadedItems...)

		level.Warn(s.logger).Log("msg", "retrying fetch with half the prefix after persistent failure", "prefix", len(prefix), "retry_size", len(half), "err", err)
		blocks, err = s.fetchWithRetry(ctx, heightsOf(half))
		prefix = half
	}
	if err != nil {
		return err
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i] == nil || blocks[j] == nil {
			return blocks[j] == nil && blocks[i] != nil
		}
		return blocks[i].Height < blocks[j].Height
	})

	for _, b := range blocks {
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

func (s *PullStrategy) fetchWithRetry(ctx context.Context, heights []uint64) ([]*block.Block, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.FetchRetries; attempt++ {
		blocks, err := s.provider.GetManyBlocksByHeights(ctx, heights, s.cfg.FullTransactions, s.cfg.VerifyMerkle)
		if err == nil {
			return blocks, nil
		}
		lastErr = err
		if attempt < s.cfg.FetchRetries {
			metricFetchRetriesTotal.Inc()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	return nil, lastErr
}

// splitPrefixBySize returns the longest prefix of items whose cumulative
// size*safetyFactor fits within maxBytes, always including at least the
// first item even if it alone exceeds the budget.
func splitPrefixBySize(items []preloadItem, maxBytes int, safetyFactor float64) (prefix, rest []preloadItem) {
	if len(items) == 0 {
		return nil, nil
	}

	total := 0.0
	n := 0
	for ; n < len(items); n++ {
		next := total + float64(items[n].Size)*safetyFactor
		if n > 0 && next > float64(maxBytes) {
			break
		}
		total = next
	}
	if n == 0 {
		n = 1
	}
	return items[:n], items[n:]
}

func heightsOf(items []preloadItem) []uint64 {
	heights := make([]uint64, len(items))
	for i, it := range items {
		heights[i] = it.Height
	}
	return heights
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
