// Package memprovider implements an in-memory, synthetic
// provider.Provider: it fabricates a deterministic chain of blocks that
// grows on a fixed cadence. It exists so the ingestion core can be run and
// demonstrated end-to-end without a real node. A production deployment
// supplies its own provider.Provider backed by a real RPC/WebSocket
// transport.
package memprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodebridge/blockqueue/pkg/block"
	"github.com/nodebridge/blockqueue/pkg/provider"
)

// Config configures the synthetic chain.
type Config struct {
	// BlockTime is how often the synthetic chain height advances.
	BlockTime time.Duration
	// MinBlockBytes and MaxBlockBytes bound the uniformly distributed size
	// of each fabricated block.
	MinBlockBytes int
	MaxBlockBytes int
}

// Provider is a synthetic, in-memory implementation of provider.Provider.
// It is safe for concurrent use.
type Provider struct {
	cfg Config

	mu     sync.Mutex
	height uint64
	blocks map[uint64]*block.Block

	subMu sync.Mutex
	subs  map[*subscription]struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Provider seeded with a single block at height 0, and
// starts a background goroutine that advances the chain every cfg.BlockTime
// until the returned Provider's Close method is called.
func New(cfg Config) *Provider {
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = time.Second
	}
	if cfg.MaxBlockBytes <= 0 {
		cfg.MaxBlockBytes = 4096
	}
	if cfg.MinBlockBytes <= 0 || cfg.MinBlockBytes > cfg.MaxBlockBytes {
		cfg.MinBlockBytes = cfg.MaxBlockBytes / 4
	}

	p := &Provider{
		cfg:    cfg,
		blocks: make(map[uint64]*block.Block),
		subs:   make(map[*subscription]struct{}),
		stop:   make(chan struct{}),
	}
	p.blocks[0] = p.fabricate(0)

	p.wg.Add(1)
	go p.run()
	return p
}

// Close stops the background chain-advance goroutine. Pending subscriptions
// are not notified; callers must Unsubscribe themselves.
func (p *Provider) Close() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Provider) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.BlockTime)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.advance()
		}
	}
}

func (p *Provider) advance() {
	p.mu.Lock()
	p.height++
	b := p.fabricate(p.height)
	p.blocks[p.height] = b
	p.mu.Unlock()

	p.subMu.Lock()
	for s := range p.subs {
		s.deliver(b)
	}
	p.subMu.Unlock()
}

func (p *Provider) fabricate(height uint64) *block.Block {
	size := p.cfg.MinBlockBytes
	if span := p.cfg.MaxBlockBytes - p.cfg.MinBlockBytes; span > 0 {
		size += int(height%uint64(span+1)) // deterministic, not random: reproducible runs
	}
	return &block.Block{
		Height: height,
		Hash:   fmt.Sprintf("synthetic-%d", height),
		Size:   size,
		RawHex: fmt.Sprintf("%x", height), // transient payload the core's Clean must strip
	}
}

// GetBlockHeight returns the current synthetic chain tip.
func (p *Provider) GetBlockHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height, nil
}

// GetManyBlocksStatsByHeights returns stats for whichever of the requested
// heights have been fabricated so far.
func (p *Provider) GetManyBlocksStatsByHeights(ctx context.Context, heights []uint64) ([]provider.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]provider.Stats, 0, len(heights))
	for _, h := range heights {
		b, ok := p.blocks[h]
		if !ok {
			continue
		}
		out = append(out, provider.Stats{Hash: b.Hash, Height: b.Height, TotalSize: b.Size, HasTotalSize: true})
	}
	return out, nil
}

// GetManyBlocksByHeights returns the fabricated blocks for heights, aligned
// with the input slice; a height not yet fabricated yields a nil entry.
func (p *Provider) GetManyBlocksByHeights(ctx context.Context, heights []uint64, _ bool, _ bool) ([]*block.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*block.Block, len(heights))
	for i, h := range heights {
		if b, ok := p.blocks[h]; ok {
			cp := *b
			out[i] = &cp
		}
	}
	return out, nil
}

// SubscribeToNewBlocks registers onBlock to be called, from the provider's
// internal goroutine, every time the synthetic chain advances.
func (p *Provider) SubscribeToNewBlocks(ctx context.Context, onBlock func(*block.Block)) (provider.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &subscription{p: p, onBlock: onBlock}
	p.subMu.Lock()
	p.subs[s] = struct{}{}
	p.subMu.Unlock()
	return s, nil
}

type subscription struct {
	p       *Provider
	onBlock func(*block.Block)

	once sync.Once
}

func (s *subscription) deliver(b *block.Block) {
	cp := *b
	s.onBlock(&cp)
}

// Unsubscribe removes this subscription from its provider. Safe to call
// more than once.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.p.subMu.Lock()
		delete(s.p.subs, s)
		s.p.subMu.Unlock()
	})
}
