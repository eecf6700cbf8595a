// Package app wires the ingestion core's components, BlocksQueue, Loader
// and Iterator, together with a Provider and Consumer into a runnable
// process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nodebridge/blockqueue/cmd/blockqueue/build"
	"github.com/nodebridge/blockqueue/pkg/blocksqueue"
	"github.com/nodebridge/blockqueue/pkg/iterator"
	"github.com/nodebridge/blockqueue/pkg/loader"
	"github.com/nodebridge/blockqueue/pkg/provider/memprovider"
	util_log "github.com/nodebridge/blockqueue/pkg/util/log"
)

// App is the root datastructure: it owns the queue, the provider, and the
// two long-running services (Loader, Iterator) that move blocks from one
// to the other.
type App struct {
	cfg Config

	queue    *blocksqueue.BlocksQueue
	provider *memprovider.Provider
	loaderS  *loader.Loader
	iterS    *iterator.Iterator
	consumer *loggingConsumer

	httpServer *http.Server
}

// New constructs an App from cfg. It does not start anything; call Run.
func New(cfg Config) (*App, error) {
	util_log.SetLevel(cfg.LogLevel)

	queue := blocksqueue.NewBlocksQueue(cfg.Queue, -1)

	prov := memprovider.New(cfg.Provider)

	ld, err := loader.New(cfg.Loader, queue, prov, util_log.Logger, cfg.Queue.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to construct loader: %w", err)
	}

	// The consumer logs once per batch, which at high chain throughput is
	// the noisiest line in the process; cap it rather than flood stderr.
	consumer := newLoggingConsumer(util_log.NewRateLimitedLogger(10, util_log.Logger))
	it := iterator.New(cfg.Iterator, queue, consumer, util_log.Logger)
	consumer.bindIterator(it)

	// Wake the iterator's empty-queue wait as soon as the loader makes
	// progress. That wait has no poll or timeout of its own, so without this
	// hook the iterator would not notice newly enqueued blocks.
	ld.OnProgress(it.ResolveNextBatch)

	a := &App{
		cfg:      cfg,
		queue:    queue,
		provider: prov,
		loaderS:  ld,
		iterS:    it,
		consumer: consumer,
	}
	a.httpServer = a.newInternalServer()
	return a, nil
}

func (a *App) newInternalServer() *http.Server {
	r := mux.NewRouter()
	r.Path("/ready").Methods("GET").HandlerFunc(a.readyHandler)
	r.Path("/metrics").Methods("GET").Handler(promhttp.Handler())
	return &http.Server{Addr: a.cfg.Server.HTTPListenAddr, Handler: r}
}

func (a *App) readyHandler(w http.ResponseWriter, _ *http.Request) {
	if a.loaderS.State() != services.Running || a.iterS.State() != services.Running {
		http.Error(w, "services are not Running", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready\n"))
}

// Run starts the loader and iterator services, serves the internal HTTP
// server, and blocks until a termination signal arrives or a service fails.
func (a *App) Run() error {
	sm, err := services.NewManager(a.loaderS, a.iterS)
	if err != nil {
		return fmt.Errorf("failed to build service manager: %w", err)
	}

	healthy := func() { level.Info(util_log.Logger).Log("msg", "blockqueue started", "version", build.Version) }
	stopped := func() { level.Info(util_log.Logger).Log("msg", "blockqueue stopped") }
	failed := func(s services.Service) {
		level.Error(util_log.Logger).Log("msg", "service failed, stopping manager", "err", s.FailureCase())
		sm.StopAsync()
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, failed))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		level.Info(util_log.Logger).Log("msg", "signal received, shutting down")
		if a.cfg.ShutdownDelay > 0 {
			time.Sleep(a.cfg.ShutdownDelay)
		}
		sm.StopAsync()
	}()

	go func() {
		level.Info(util_log.Logger).Log("msg", "internal server listening", "addr", a.cfg.Server.HTTPListenAddr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(util_log.Logger).Log("msg", "internal server error", "err", err)
		}
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		return fmt.Errorf("failed to start service manager: %w", err)
	}

	err = sm.AwaitStopped(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(shutdownCtx)
	a.provider.Close()

	return err
}
