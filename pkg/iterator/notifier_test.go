package iterator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierWaitReturnsImmediatelyIfAlreadyNotified(t *testing.T) {
	n := newNotifier()
	n.Notify()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, n.Wait(ctx), "a pending notify must not be lost")
}

func TestNotifierWaitBlocksUntilNotified(t *testing.T) {
	n := newNotifier()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.Wait(ctx) }()

	select {
	case <-done:
		t.Fatal("Wait returned before Notify was called")
	case <-time.After(20 * time.Millisecond):
	}

	n.Notify()
	require.NoError(t, <-done)
}

func TestNotifierWaitHonorsContextCancellation(t *testing.T) {
	n := newNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Wait(ctx)
	assert.Error(t, err)
}

func TestNotifierCollapsesRedundantNotifies(t *testing.T) {
	n := newNotifier()
	n.Notify()
	n.Notify()
	n.Notify()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, n.Wait(ctx))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.Error(t, n.Wait(ctx2), "redundant notifies must not queue up extra wakeups")
}
