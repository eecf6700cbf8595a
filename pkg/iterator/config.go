package iterator

import "flag"

// Config configures the Iterator.
type Config struct {
	// BlocksBatchSize is the byte target passed to
	// BlocksQueue.GetBatchUpToSize on each iteration.
	BlocksBatchSize int `yaml:"blocks_batch_size"`
}

// RegisterFlagsAndApplyDefaults registers the iterator's flags under
// prefix and seeds the struct with its defaults.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.BlocksBatchSize = 4 << 20 // 4MiB

	f.IntVar(&c.BlocksBatchSize, prefix+"blocks-batch-size", c.BlocksBatchSize, "Byte target for a single batch handed to the consumer.")
}
