package loader

import (
	"context"
	"errors"
	"flag"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodebridge/blockqueue/pkg/block"
	"github.com/nodebridge/blockqueue/pkg/blocksqueue"
	"github.com/nodebridge/blockqueue/pkg/provider"
)

type fakeProvider struct {
	mu sync.Mutex

	height uint64
	stats  map[uint64]block.Stats
	blocks map[uint64]*block.Block

	statsErr, blocksErr error
	blocksCalls         int
	failBlocksCalls     int // first N calls to GetManyBlocksByHeights fail
}

func (f *fakeProvider) GetBlockHeight(context.Context) (uint64, error) {
	return f.height, nil
}

func (f *fakeProvider) GetManyBlocksStatsByHeights(_ context.Context, heights []uint64) ([]provider.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	out := make([]provider.Stats, 0, len(heights))
	for _, h := range heights {
		if st, ok := f.stats[h]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeProvider) GetManyBlocksByHeights(_ context.Context, heights []uint64, _, _ bool) ([]*block.Block, error) {
	f.mu.Lock()
	f.blocksCalls++
	shouldFail := f.blocksCalls <= f.failBlocksCalls
	f.mu.Unlock()

	if shouldFail {
		return nil, f.blocksErr
	}

	out := make([]*block.Block, 0, len(heights))
	for _, h := range heights {
		if b, ok := f.blocks[h]; ok {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProvider) SubscribeToNewBlocks(context.Context, func(*block.Block)) (provider.Subscription, error) {
	return nil, nil
}

func defaultLoaderConfig() Config {
	var cfg Config
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))
	return cfg
}

func TestPullStrategyBatchesUnderReplyBudget(t *testing.T) {
	cfg := defaultLoaderConfig()
	cfg.MaxRpcReplyBytes = 10_000
	cfg.BasePreloadCount = 4
	cfg.FullTransactions = false

	var qcfg blocksqueue.Config
	qcfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))
	qcfg.MaxQueueSize = 1 << 30
	q := blocksqueue.NewBlocksQueue(qcfg, 0)

	fp := &fakeProvider{
		height: 3,
		stats: map[uint64]block.Stats{
			1: {Hash: "h1", Height: 1, TotalSize: 2000, HasTotalSize: true},
			2: {Hash: "h2", Height: 2, TotalSize: 2000, HasTotalSize: true},
			3: {Hash: "h3", Height: 3, TotalSize: 2000, HasTotalSize: true},
		},
		blocks: map[uint64]*block.Block{
			1: {Height: 1, Hash: "h1", Size: 2000},
			2: {Height: 2, Hash: "h2", Size: 2000},
			3: {Height: 3, Hash: "h3", Size: 2000},
		},
	}

	strat := NewPullStrategy(cfg, q, fp, log.NewNopLogger(), 1024)
	require.NoError(t, strat.preload(context.Background(), 3))
	require.Len(t, strat.preloadedItems, 3)

	require.NoError(t, strat.loadAndEnqueueOnce(context.Background()))

	assert.Equal(t, 2, q.Len(), "2*2000*2.1=8400 <= 10000 budget admits heights 1 and 2 only")
	assert.Len(t, strat.preloadedItems, 1, "height 3 stays preloaded for the next pass")
	assert.Equal(t, uint64(3), strat.preloadedItems[0].Height)

	require.NoError(t, strat.Load(context.Background(), 3))
	assert.Equal(t, 3, q.Len(), "a full load pass drains the remaining preloaded item")
	assert.Empty(t, strat.preloadedItems)
}

func TestPullStrategyDefaultsMissingTotalSize(t *testing.T) {
	cfg := defaultLoaderConfig()

	var qcfg blocksqueue.Config
	qcfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))
	q := blocksqueue.NewBlocksQueue(qcfg, -1)

	fp := &fakeProvider{
		height: 0,
		stats: map[uint64]block.Stats{
			0: {Hash: "h0", Height: 0},
		},
		blocks: map[uint64]*block.Block{
			0: {Height: 0, Hash: "h0", Size: 1024},
		},
	}

	strat := NewPullStrategy(cfg, q, fp, log.NewNopLogger(), 4096)
	require.NoError(t, strat.preload(context.Background(), 0))
	require.Len(t, strat.preloadedItems, 1)
	assert.Equal(t, 4096, strat.preloadedItems[0].Size, "missing total_size falls back to the default block size")
}

func TestPullStrategyRejectsMalformedStats(t *testing.T) {
	cfg := defaultLoaderConfig()

	var qcfg blocksqueue.Config
	qcfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))
	q := blocksqueue.NewBlocksQueue(qcfg, -1)

	fp := &fakeProvider{
		height: 0,
		stats: map[uint64]block.Stats{
			0: {Hash: "", Height: 0},
		},
	}

	strat := NewPullStrategy(cfg, q, fp, log.NewNopLogger(), 1024)
	err := strat.preload(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrMalformedStats)
}

func TestPullStrategyDegradesToHalfPrefixOnPersistentFailure(t *testing.T) {
	cfg := defaultLoaderConfig()
	cfg.MaxRpcReplyBytes = 100_000
	cfg.FetchRetries = 1

	var qcfg blocksqueue.Config
	qcfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))
	q := blocksqueue.NewBlocksQueue(qcfg, -1)

	fp := &fakeProvider{
		height: 3,
		stats: map[uint64]block.Stats{
			0: {Hash: "h0", Height: 0, TotalSize: 10, HasTotalSize: true},
			1: {Hash: "h1", Height: 1, TotalSize: 10, HasTotalSize: true},
			2: {Hash: "h2", Height: 2, TotalSize: 10, HasTotalSize: true},
			3: {Hash: "h3", Height: 3, TotalSize: 10, HasTotalSize: true},
		},
		blocks: map[uint64]*block.Block{
			0: {Height: 0, Hash: "h0", Size: 10},
			1: {Height: 1, Hash: "h1", Size: 10},
			2: {Height: 2, Hash: "h2", Size: 10},
			3: {Height: 3, Hash: "h3", Size: 10},
		},
		blocksErr:       errors.New("boom"),
		failBlocksCalls: 2, // first full-prefix attempt (with its retry) fails
	}

	strat := NewPullStrategy(cfg, q, fp, log.NewNopLogger(), 1024)
	require.NoError(t, strat.Load(context.Background(), 3))
	assert.Greater(t, q.Len(), 0, "half-prefix retry should have enqueued at least the first half")
}
