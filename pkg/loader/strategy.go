package loader

import "context"

// LoadingStrategy drives the queue forward against a given network height.
// Implementations hold no background goroutines of their own: Load is
// called by the Loader's control loop, and Stop is called once on shutdown.
type LoadingStrategy interface {
	// Load fetches and enqueues whatever blocks are due given the
	// provider's current network height, returning once it has made as
	// much progress as it can in one pass.
	Load(ctx context.Context, networkHeight uint64) error
	// Stop releases any strategy-held resources (subscriptions, pending
	// preload state). It is safe to call Stop without a prior Load.
	Stop()
}
