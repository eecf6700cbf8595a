package memprovider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodebridge/blockqueue/pkg/block"
)

func TestProviderAdvancesHeightOnSchedule(t *testing.T) {
	p := New(Config{BlockTime: 5 * time.Millisecond, MaxBlockBytes: 1024})
	defer p.Close()

	require.Eventually(t, func() bool {
		h, err := p.GetBlockHeight(context.Background())
		require.NoError(t, err)
		return h >= 2
	}, time.Second, time.Millisecond)
}

func TestProviderStatsAndBlocksAgreeOnFabricatedHeights(t *testing.T) {
	p := New(Config{BlockTime: 5 * time.Millisecond, MinBlockBytes: 100, MaxBlockBytes: 200})
	defer p.Close()

	require.Eventually(t, func() bool {
		h, _ := p.GetBlockHeight(context.Background())
		return h >= 1
	}, time.Second, time.Millisecond)

	stats, err := p.GetManyBlocksStatsByHeights(context.Background(), []uint64{0, 1, 999})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(stats), 2, "height 999 has not been fabricated yet")

	blocks, err := p.GetManyBlocksByHeights(context.Background(), []uint64{0, 999}, true, false)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.NotNil(t, blocks[0])
	assert.Nil(t, blocks[1], "a height beyond the tip yields a nil entry, not an error")
	assert.NotEmpty(t, blocks[0].RawHex, "the provider's own copy still carries the transient payload; only the queue strips it")
}

func TestProviderSubscriptionDeliversAndUnsubscribes(t *testing.T) {
	p := New(Config{BlockTime: 5 * time.Millisecond, MaxBlockBytes: 1024})
	defer p.Close()

	var mu sync.Mutex
	var delivered []*block.Block

	sub, err := p.SubscribeToNewBlocks(context.Background(), func(b *block.Block) {
		mu.Lock()
		delivered = append(delivered, b)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) >= 2
	}, time.Second, time.Millisecond)

	sub.Unsubscribe()

	mu.Lock()
	countAtUnsubscribe := len(delivered)
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, countAtUnsubscribe, len(delivered), "no further deliveries after Unsubscribe")
}
