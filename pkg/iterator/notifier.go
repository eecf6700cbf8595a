package iterator

import (
	"context"
	"sync"
)

// notifier is a one-shot signal with level semantics: if Notify is called
// before the next Wait, that Wait returns immediately instead of blocking.
// This avoids the lost-wakeup hazard of a plain channel send racing a
// not-yet-waiting receiver.
type notifier struct {
	mu      sync.Mutex
	ch      chan struct{}
	pending bool
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{}, 1)}
}

// Notify arms the signal. A concurrent or future Wait call returns as soon
// as it observes it; redundant Notify calls before a Wait collapse into a
// single pending signal.
func (n *notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending {
		return
	}
	n.pending = true
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Notify has been called, or ctx is done, whichever
// comes first.
func (n *notifier) Wait(ctx context.Context) error {
	select {
	case <-n.ch:
		n.mu.Lock()
		n.pending = false
		n.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
