package blocksqueue

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Kind identifies the taxonomy a queue error belongs to, independent of the
// Go error type carrying it. Callers should match on kind with errors.Is
// against the sentinel below, not on message text.
type Kind string

const (
	KindDuplicateHash        Kind = "duplicate_hash"
	KindNonConsecutiveHeight Kind = "non_consecutive_height"
	KindNotFound             Kind = "not_found"
	KindNotAtHead            Kind = "not_at_head"
	KindMaxHeightReached     Kind = "max_height_reached"
	KindCapacityExceeded     Kind = "capacity_exceeded"
	KindByteBudgetExceeded   Kind = "byte_budget_exceeded"
	KindQueueFull            Kind = "queue_full"
)

// Error is the structured error returned by every BlocksQueue operation
// that can fail. It carries the offending identifier and the counters an
// operator or test needs to diagnose the failure without re-deriving them.
type Error struct {
	Kind Kind
	// Msg is a human-readable, stable-enough-to-match-in-tests message.
	Msg string

	Height   uint64
	Hash     string
	Count    int
	Bytes    int
	Capacity int
	Budget   int
}

func (e *Error) Error() string {
	return e.Msg
}

// Is allows errors.Is(err, ErrNotFound) style matching against the sentinel
// kind values below.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// Sentinels usable with errors.Is(err, blocksqueue.ErrNotFound).
var (
	ErrDuplicateHash        = &Error{Kind: KindDuplicateHash}
	ErrNonConsecutiveHeight = &Error{Kind: KindNonConsecutiveHeight}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrNotAtHead            = &Error{Kind: KindNotAtHead}
	ErrMaxHeightReached     = &Error{Kind: KindMaxHeightReached}
	ErrCapacityExceeded     = &Error{Kind: KindCapacityExceeded}
	ErrByteBudgetExceeded   = &Error{Kind: KindByteBudgetExceeded}
	ErrQueueFull            = &Error{Kind: KindQueueFull}
)

func errDuplicateHash(hash string, height uint64) error {
	return &Error{
		Kind: KindDuplicateHash,
		Msg:  fmt.Sprintf("Duplicate block hash: %s, height: %d", hash, height),
		Hash: hash, Height: height,
	}
}

func errNonConsecutiveHeight(blockHeight uint64, lastHeight int64) error {
	return &Error{
		Kind:   KindNonConsecutiveHeight,
		Msg:    fmt.Sprintf("Block height: %d, Queue last height: %d", blockHeight, lastHeight),
		Height: blockHeight,
	}
}

func errMaxHeightReached(lastHeight int64, maxHeight uint64) error {
	return &Error{
		Kind:   KindMaxHeightReached,
		Msg:    fmt.Sprintf("Queue last height %d has reached max block height %d", lastHeight, maxHeight),
		Height: maxHeight,
	}
}

func errCapacityExceeded(count, capacity int) error {
	return &Error{
		Kind:     KindCapacityExceeded,
		Msg:      fmt.Sprintf("Queue ring is full: count %d, capacity %d", count, capacity),
		Count:    count,
		Capacity: capacity,
	}
}

func errByteBudgetExceeded(currentBytes, blockSize, budget int) error {
	return &Error{
		Kind:   KindByteBudgetExceeded,
		Msg:    fmt.Sprintf("Enqueue would exceed byte budget: current %s, block %s, budget %s", humanize.Bytes(uint64(currentBytes)), humanize.Bytes(uint64(blockSize)), humanize.Bytes(uint64(budget))),
		Bytes:  currentBytes + blockSize,
		Budget: budget,
	}
}

func errNotFound(hash string) error {
	return &Error{
		Kind: KindNotFound,
		Msg:  fmt.Sprintf("Block not found for hash: %s", hash),
		Hash: hash,
	}
}

func errNotAtHead(hash string, headHash string) error {
	return &Error{
		Kind: KindNotAtHead,
		Msg:  fmt.Sprintf("Block %s is not at queue head (head is %s)", hash, headHash),
		Hash: hash,
	}
}

// ErrQueueFullFor builds a QueueFull error for a push-strategy subscriber
// that observed the queue full before attempting an enqueue.
func ErrQueueFullFor(currentBytes, budget int) error {
	return &Error{
		Kind:   KindQueueFull,
		Msg:    fmt.Sprintf("Queue is full: current %s, budget %s", humanize.Bytes(uint64(currentBytes)), humanize.Bytes(uint64(budget))),
		Bytes:  currentBytes,
		Budget: budget,
	}
}
