package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"

	"github.com/nodebridge/blockqueue/pkg/blocksqueue"
	"github.com/nodebridge/blockqueue/pkg/provider"
)

// FatalError wraps a strategy or provider error that the Loader must not
// retry: configuration and authentication failures fall in this class.
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Loader owns the lifecycle of the active LoadingStrategy: it drives the
// outer read-network-height / load / idle loop and restarts the strategy
// with exponential backoff after a transient failure.
type Loader struct {
	services.Service

	cfg      Config
	queue    *blocksqueue.BlocksQueue
	provider provider.Provider
	logger   log.Logger
	strategy LoadingStrategy

	// onProgress, if set, is invoked after every successful Load pass so a
	// waiting iterator can be woken immediately instead of idling for its
	// own empty-queue wait.
	onProgress func()
}

// OnProgress registers fn to run after each successful load pass.
func (l *Loader) OnProgress(fn func()) { l.onProgress = fn }

// New constructs a Loader with the strategy selected by cfg.StrategyName.
func New(cfg Config, queue *blocksqueue.BlocksQueue, p provider.Provider, logger log.Logger, defaultBlockSize int) (*Loader, error) {
	var strategy LoadingStrategy
	switch cfg.StrategyName {
	case StrategyPull, "":
		strategy = NewPullStrategy(cfg, queue, p, logger, defaultBlockSize)
	case StrategyPush:
		strategy = NewPushStrategy(cfg, queue, p, logger)
	default:
		return nil, fmt.Errorf("loader: unknown strategy %q", cfg.StrategyName)
	}

	l := &Loader{cfg: cfg, queue: queue, provider: p, logger: logger, strategy: strategy}
	l.Service = services.NewBasicService(nil, l.running, l.stopping)
	return l, nil
}

func (l *Loader) running(ctx context.Context) error {
	level.Info(l.logger).Log("msg", "loader starting", "strategy", l.cfg.StrategyName)

	boff := backoff.New(ctx, l.cfg.Backoff)

	for {
		if ctx.Err() != nil {
			return nil
		}

		networkHeight, err := l.provider.GetBlockHeight(ctx)
		if err == nil {
			err = l.strategy.Load(ctx, networkHeight)
		}

		if err == nil {
			boff.Reset()
			metricLoadPassesTotal.WithLabelValues("success").Inc()
			st := l.queue.Stats()
			level.Debug(l.logger).Log("msg", "load pass complete", "queue_len", st.Count, "queue_bytes", st.Bytes, "last_height", st.LastHeight)
			if l.onProgress != nil {
				l.onProgress()
			}

			if l.queue.IsMaxHeightReached() {
				level.Info(l.logger).Log("msg", "max block height reached, loader exiting")
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.cfg.BlockTime):
			}
			continue
		}

		metricLoadPassesTotal.WithLabelValues("failed").Inc()

		var fatal *FatalError
		if errors.As(err, &fatal) {
			level.Error(l.logger).Log("msg", "loader stopping on fatal error", "err", fatal.Err)
			return fatal.Err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}

		level.Warn(l.logger).Log("msg", "load pass failed, backing off", "err", err, "attempt", boff.NumRetries())
		metricBackoffRetriesTotal.Inc()

		boff.Wait()
		if boff.Err() != nil {
			return boff.Err()
		}
	}
}

func (l *Loader) stopping(failure error) error {
	l.strategy.Stop()
	if failure != nil {
		level.Error(l.logger).Log("msg", "loader stopped with error", "err", failure)
	}
	return nil
}
