package app

import (
	"flag"
	"time"

	"github.com/nodebridge/blockqueue/pkg/blocksqueue"
	"github.com/nodebridge/blockqueue/pkg/iterator"
	"github.com/nodebridge/blockqueue/pkg/loader"
	"github.com/nodebridge/blockqueue/pkg/provider/memprovider"
)

// ServerConfig configures the small internal HTTP server that exposes
// /ready and /metrics. The core has no gRPC surface to serve, so a full
// dskit/server is not needed here.
type ServerConfig struct {
	HTTPListenAddr string `yaml:"http_listen_address"`
}

// RegisterFlagsAndApplyDefaults registers the server's flags under prefix.
func (c *ServerConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.HTTPListenAddr = "127.0.0.1:3400"
	f.StringVar(&c.HTTPListenAddr, prefix+"server.http-listen-address", c.HTTPListenAddr, "Address the internal /ready and /metrics server listens on.")
}

// Config is the root configuration for the blockqueue binary: it aggregates
// every component's config struct behind the same RegisterFlagsAndApplyDefaults
// convention used throughout this repo.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Server   ServerConfig       `yaml:"server"`
	Queue    blocksqueue.Config `yaml:"queue"`
	Loader   loader.Config      `yaml:"loader"`
	Iterator iterator.Config    `yaml:"iterator"`
	Provider memprovider.Config `yaml:"synthetic_provider"`

	// ShutdownDelay, if set, delays stopping the services after a signal is
	// received. Readiness is not changed during the delay: /ready keeps
	// reporting ready for as long as the services are still Running.
	ShutdownDelay time.Duration `yaml:"shutdown_delay"`
}

// RegisterFlagsAndApplyDefaults registers every component's flags under
// prefix and seeds the whole config with its defaults.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.LogLevel = "info"
	f.StringVar(&c.LogLevel, prefix+"log-level", c.LogLevel, "Logging level: debug, info, warn or error.")
	f.DurationVar(&c.ShutdownDelay, prefix+"shutdown-delay", 0, "Delay between receiving a shutdown signal and stopping services.")

	c.Server.RegisterFlagsAndApplyDefaults(prefix, f)
	c.Queue.RegisterFlagsAndApplyDefaults(prefix+"queue.", f)
	c.Loader.RegisterFlagsAndApplyDefaults(prefix+"loader.", f)
	c.Iterator.RegisterFlagsAndApplyDefaults(prefix+"iterator.", f)

	c.Provider.BlockTime = time.Second
	c.Provider.MinBlockBytes = 512
	c.Provider.MaxBlockBytes = 65_536
	f.DurationVar(&c.Provider.BlockTime, prefix+"synthetic-provider.block-time", c.Provider.BlockTime, "Cadence at which the bundled synthetic provider advances its chain. Replace with a real provider.Provider for production use.")
	f.IntVar(&c.Provider.MinBlockBytes, prefix+"synthetic-provider.min-block-bytes", c.Provider.MinBlockBytes, "Lower bound on fabricated block size.")
	f.IntVar(&c.Provider.MaxBlockBytes, prefix+"synthetic-provider.max-block-bytes", c.Provider.MaxBlockBytes, "Upper bound on fabricated block size.")
}
