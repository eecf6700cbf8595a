// Package provider defines the narrow interface the ingestion core consumes
// from a blockchain node. Transport, rate limiting and response
// normalization live entirely on the implementing side; the core only ever
// sees this contract.
package provider

import (
	"context"
	"errors"

	"github.com/nodebridge/blockqueue/pkg/block"
)

// Kind identifies the taxonomy a transport or lifecycle error belongs to.
type Kind string

const (
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderTimeout     Kind = "provider_timeout"
	KindProviderRateLimited Kind = "provider_rate_limited"
	KindMalformedStats      Kind = "malformed_stats"
	KindCancelled           Kind = "cancelled"
)

// Error is the structured error a Provider implementation or the loading
// strategies return for transport and lifecycle failures.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

var (
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrProviderTimeout     = &Error{Kind: KindProviderTimeout}
	ErrProviderRateLimited = &Error{Kind: KindProviderRateLimited}
	ErrMalformedStats      = &Error{Kind: KindMalformedStats}
	ErrCancelled           = &Error{Kind: KindCancelled}
)

// NewError builds a Provider-facing error of the given kind. Transport
// implementations use this to classify failures the core's retry and
// backoff logic can distinguish from one another.
func NewError(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Stats is a lightweight, partially-populated block descriptor returned by
// GetManyBlocksStatsByHeights. Hash and Height are required; TotalSize may
// be absent, which HasTotalSize distinguishes from a reported zero.
type Stats = block.Stats

// Provider is the minimal capability set the core requires from a
// blockchain node. Implementations own all transport, rate limiting and
// response normalization.
type Provider interface {
	// GetBlockHeight returns the provider's current view of the chain tip.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// GetManyBlocksStatsByHeights returns lightweight stats for the given
	// heights. Order is not guaranteed to match the input; entries for
	// heights the provider cannot describe may be omitted.
	GetManyBlocksStatsByHeights(ctx context.Context, heights []uint64) ([]Stats, error)

	// GetManyBlocksByHeights fetches full blocks for the given heights.
	// The returned slice is aligned with heights; a nil entry marks a
	// height the provider could not produce a block for.
	GetManyBlocksByHeights(ctx context.Context, heights []uint64, fullTransactions bool, verifyMerkle bool) ([]*block.Block, error)

	// SubscribeToNewBlocks opens a push subscription, used only by the
	// push loading strategy. The returned Subscription must be closed by
	// the caller on every exit path.
	SubscribeToNewBlocks(ctx context.Context, onBlock func(*block.Block)) (Subscription, error)
}

// Subscription is a live handle to a provider's new-block notification
// stream.
type Subscription interface {
	Unsubscribe()
}

// Consumer is the downstream collaborator the Iterator hands batches to.
// HandleBatch must eventually be followed (on success) by the consumer
// calling Iterator.ConfirmProcessedBatch with the hashes it intends to
// retire, which dequeues them and wakes the Iterator; the Iterator does not
// do this on the consumer's behalf.
type Consumer interface {
	HandleBatch(ctx context.Context, batch Batch) error
}

// Batch is the unit of work the Iterator hands to a Consumer.
type Batch struct {
	Blocks    []*block.Block
	RequestID string
}
