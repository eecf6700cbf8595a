// Package blocksqueue implements the bounded, height-monotonic FIFO block
// queue described by the ingestion core: a circular buffer with O(1)
// enqueue/dequeue/lookup, indexed by both height and hash, whose capacity
// is planned by a CapacityPlanner to keep memory use under a byte budget.
package blocksqueue

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/nodebridge/blockqueue/pkg/block"
)

// emergencyGrowCap bounds the emergency grow performed when the ring fills
// up before the planner's EMA has stabilized (e.g. at startup, or after a
// burst of unexpectedly small blocks).
const emergencyGrowCap = 100_000

// BlocksQueue is a bounded FIFO of blocks keyed by height and hash, backed
// by a circular buffer whose capacity is adjusted by a CapacityPlanner.
// All methods are safe for concurrent use; mutations are serialized by a
// single exclusive lock, since callers assume a single writer at a time.
type BlocksQueue struct {
	cfg     Config
	planner *CapacityPlanner

	mu sync.Mutex

	ring        []*block.Block
	heightIndex map[uint64]int
	hashIndex   map[string]int

	head, tail, count int
	currentBytes      int
	lastHeight        int64

	metricCount  *atomic.Int64
	metricBytes  *atomic.Int64
	metricCap    *atomic.Int64
	metricHeight *atomic.Int64
}

// NewBlocksQueue constructs an empty queue seeded with initialLastHeight
// (commonly -1 for a fresh chain, or the last height known to the consumer
// on restart).
func NewBlocksQueue(cfg Config, initialLastHeight int64) *BlocksQueue {
	planner := NewCapacityPlanner(cfg.Planner, cfg.BlockSize)
	capacity := planner.DesiredSlots(cfg.MaxQueueSize)
	if capacity < 1 {
		capacity = 1
	}

	q := &BlocksQueue{
		cfg:         cfg,
		planner:     planner,
		ring:        make([]*block.Block, capacity),
		heightIndex: make(map[uint64]int, capacity),
		hashIndex:   make(map[string]int, capacity),
		lastHeight:  initialLastHeight,

		metricCount:  atomic.NewInt64(0),
		metricBytes:  atomic.NewInt64(0),
		metricCap:    atomic.NewInt64(int64(capacity)),
		metricHeight: atomic.NewInt64(initialLastHeight),
	}
	metricQueueCapacity.Set(float64(capacity))
	metricQueueLastHeight.Set(float64(initialLastHeight))
	return q
}

// Enqueue inserts block at the tail. It fails without mutating state if the
// hash is a duplicate, the height is not lastHeight+1, the max height has
// been reached, the ring cannot absorb one more block even after an
// emergency grow, or the byte budget would be exceeded.
func (q *BlocksQueue) Enqueue(b *block.Block) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.hashIndex[b.Hash]; exists {
		return errDuplicateHash(b.Hash, b.Height)
	}

	q.planner.Observe(b.Size)
	if need, target := q.planner.ShouldResize(ResizeInput{
		Now:             time.Now(),
		MaxQueueBytes:   q.cfg.MaxQueueSize,
		CurrentCapacity: len(q.ring),
		CurrentCount:    q.count,
	}); need {
		q.resize(target)
		q.planner.MarkResized(time.Now())
		metricResizesTotal.Inc()
	}

	if int64(b.Height) != q.lastHeight+1 {
		metricEnqueueErrorsTotal.WithLabelValues(string(KindNonConsecutiveHeight)).Inc()
		return errNonConsecutiveHeight(b.Height, q.lastHeight)
	}
	if uint64(q.lastHeight+1) > q.cfg.MaxBlockHeight {
		metricEnqueueErrorsTotal.WithLabelValues(string(KindMaxHeightReached)).Inc()
		return errMaxHeightReached(q.lastHeight, q.cfg.MaxBlockHeight)
	}

	if q.count == len(q.ring) {
		target := q.planner.DesiredSlots(q.cfg.MaxQueueSize)
		emergency := q.count + 1
		if target > emergency {
			emergency = target
		}
		if doubled := minInt(len(q.ring)*2, emergencyGrowCap); doubled > emergency {
			emergency = doubled
		}
		if emergency > len(q.ring) {
			q.resize(emergency)
			q.planner.MarkResized(time.Now())
			metricResizesTotal.Inc()
		}
		if q.count == len(q.ring) {
			metricEnqueueErrorsTotal.WithLabelValues(string(KindCapacityExceeded)).Inc()
			return errCapacityExceeded(q.count, len(q.ring))
		}
	}

	if q.currentBytes+b.Size > q.cfg.MaxQueueSize {
		metricEnqueueErrorsTotal.WithLabelValues(string(KindByteBudgetExceeded)).Inc()
		return errByteBudgetExceeded(q.currentBytes, b.Size, q.cfg.MaxQueueSize)
	}

	b.Clean()

	q.ring[q.tail] = b
	q.heightIndex[b.Height] = q.tail
	q.hashIndex[b.Hash] = q.tail
	q.tail = (q.tail + 1) % len(q.ring)
	q.count++
	q.currentBytes += b.Size
	q.lastHeight = int64(b.Height)

	q.publishMetrics()
	return nil
}

// Dequeue removes blocks by hash, in the given order, starting from the
// queue head. It stops and returns the error at the first hash that is
// either unknown or not currently at the head; blocks removed before that
// point remain removed. The returned count is always accurate for what was
// actually removed.
func (q *BlocksQueue) Dequeue(hashes []string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for _, hash := range hashes {
		slot, ok := q.hashIndex[hash]
		if !ok {
			q.publishMetrics()
			return removed, errNotFound(hash)
		}
		if slot != q.head {
			q.publishMetrics()
			return removed, errNotAtHead(hash, q.headHashLocked())
		}

		blk := q.ring[q.head]
		delete(q.heightIndex, blk.Height)
		delete(q.hashIndex, blk.Hash)
		q.ring[q.head] = nil
		q.head = (q.head + 1) % len(q.ring)
		q.count--
		q.currentBytes -= blk.Size
		removed++
	}

	q.publishMetrics()
	return removed, nil
}

func (q *BlocksQueue) headHashLocked() string {
	if q.count == 0 {
		return ""
	}
	return q.ring[q.head].Hash
}

// FirstBlock returns the block at the FIFO head, if any.
func (q *BlocksQueue) FirstBlock() (*block.Block, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil, false
	}
	return q.ring[q.head], true
}

// FetchByHeight returns the stored block at height h, if present.
func (q *BlocksQueue) FetchByHeight(h uint64) (*block.Block, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	slot, ok := q.heightIndex[h]
	if !ok {
		return nil, false
	}
	return q.ring[slot], true
}

// FindByHashes returns the subset of hashes currently stored, in
// unspecified order.
func (q *BlocksQueue) FindByHashes(hashes []string) []*block.Block {
	q.mu.Lock()
	defer q.mu.Unlock()

	found := make([]*block.Block, 0, len(hashes))
	for _, h := range hashes {
		if slot, ok := q.hashIndex[h]; ok {
			found = append(found, q.ring[slot])
		}
	}
	return found
}

// GetBatchUpToSize returns the longest FIFO prefix whose cumulative size is
// at most maxBytes. If the queue is non-empty the result always contains
// at least one block, even if that block alone exceeds maxBytes, to
// guarantee forward progress for the iterator.
func (q *BlocksQueue) GetBatchUpToSize(maxBytes int) []*block.Block {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	batch := make([]*block.Block, 0, q.count)
	total := 0
	idx := q.head
	for i := 0; i < q.count; i++ {
		blk := q.ring[idx]
		if len(batch) > 0 && total+blk.Size > maxBytes {
			break
		}
		batch = append(batch, blk)
		total += blk.Size
		idx = (idx + 1) % len(q.ring)
	}
	return batch
}

// Clear empties the queue's contents but retains lastHeight and the ring's
// current capacity.
func (q *BlocksQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearLocked()
	q.publishMetrics()
}

func (q *BlocksQueue) clearLocked() {
	for i := range q.ring {
		q.ring[i] = nil
	}
	q.heightIndex = make(map[uint64]int, len(q.ring))
	q.hashIndex = make(map[string]int, len(q.ring))
	q.head, q.tail, q.count, q.currentBytes = 0, 0, 0, 0
}

// Reorganize clears the queue and sets lastHeight to newLastHeight. It is
// idempotent: calling it twice with the same height is equivalent to
// calling it once.
func (q *BlocksQueue) Reorganize(newLastHeight int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearLocked()
	q.lastHeight = newLastHeight
	q.publishMetrics()
}

// IsQueueFull reports whether the byte budget has been reached.
func (q *BlocksQueue) IsQueueFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentBytes >= q.cfg.MaxQueueSize
}

// IsQueueOverloaded reports whether adding extraBytes more would exceed the
// byte budget.
func (q *BlocksQueue) IsQueueOverloaded(extraBytes int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentBytes+extraBytes > q.cfg.MaxQueueSize
}

// IsMaxHeightReached reports whether lastHeight has reached the configured
// terminating height.
func (q *BlocksQueue) IsMaxHeightReached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastHeight >= 0 && uint64(q.lastHeight) >= q.cfg.MaxBlockHeight
}

// LastHeight returns the height of the most recently accepted enqueue, or
// the initial/reorganize-supplied value if the queue is empty.
func (q *BlocksQueue) LastHeight() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastHeight
}

// Len returns the number of blocks currently stored (FIFO occupancy, not
// ring capacity).
func (q *BlocksQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// CurrentBytes returns the sum of sizes of blocks currently stored.
func (q *BlocksQueue) CurrentBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentBytes
}

// QueueStats is a snapshot of the queue's occupancy counters.
type QueueStats struct {
	Count      int64
	Bytes      int64
	Capacity   int64
	LastHeight int64
}

// Stats returns the occupancy counters as last published by a queue
// operation, without taking the queue lock, for observability surfaces that
// must not contend with the enqueue/dequeue hot path. The fields are loaded
// one at a time, so a snapshot taken while an operation is publishing may
// mix values from before and after it. A failed Enqueue publishes nothing,
// even when it resized the ring first.
func (q *BlocksQueue) Stats() QueueStats {
	return QueueStats{
		Count:      q.metricCount.Load(),
		Bytes:      q.metricBytes.Load(),
		Capacity:   q.metricCap.Load(),
		LastHeight: q.metricHeight.Load(),
	}
}

// MaxQueueBytes returns the configured hard byte budget.
func (q *BlocksQueue) MaxQueueBytes() int {
	return q.cfg.MaxQueueSize
}

// Capacity returns the ring's current physical capacity in slots.
func (q *BlocksQueue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ring)
}

// resize reallocates the ring to newCapacity, preserving FIFO order and
// rebuilding both indexes from scratch. Callers must hold q.mu and ensure
// newCapacity >= q.count.
func (q *BlocksQueue) resize(newCapacity int) {
	if newCapacity < q.count {
		newCapacity = q.count
	}

	newRing := make([]*block.Block, newCapacity)
	newHeightIndex := make(map[uint64]int, q.count)
	newHashIndex := make(map[string]int, q.count)

	idx := q.head
	for i := 0; i < q.count; i++ {
		blk := q.ring[idx]
		newRing[i] = blk
		newHeightIndex[blk.Height] = i
		newHashIndex[blk.Hash] = i
		idx = (idx + 1) % len(q.ring)
	}

	q.ring = newRing
	q.heightIndex = newHeightIndex
	q.hashIndex = newHashIndex
	q.head = 0
	q.tail = q.count % newCapacity
}

func (q *BlocksQueue) publishMetrics() {
	q.metricCount.Store(int64(q.count))
	q.metricBytes.Store(int64(q.currentBytes))
	q.metricCap.Store(int64(len(q.ring)))
	q.metricHeight.Store(q.lastHeight)

	metricQueueLength.Set(float64(q.count))
	metricQueueBytes.Set(float64(q.currentBytes))
	metricQueueCapacity.Set(float64(len(q.ring)))
	metricQueueLastHeight.Set(float64(q.lastHeight))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
