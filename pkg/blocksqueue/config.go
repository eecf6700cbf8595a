package blocksqueue

import "flag"

// Config configures a BlocksQueue instance.
type Config struct {
	// MaxQueueSize is the hard byte budget for the queue (maxQueueBytes).
	MaxQueueSize int `yaml:"max_queue_size"`
	// BlockSize seeds the capacity planner's EMA before any block has been
	// observed.
	BlockSize int `yaml:"block_size"`
	// MaxBlockHeight is the terminating height; enqueuing past it fails
	// with MaxHeightReached.
	MaxBlockHeight uint64 `yaml:"max_block_height"`

	Planner PlannerConfig `yaml:"planner"`
}

// RegisterFlagsAndApplyDefaults registers the queue's flags under prefix
// and seeds the struct with its defaults.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.MaxQueueSize = 512 << 20 // 512MiB
	c.BlockSize = 1 << 20      // 1MiB
	c.MaxBlockHeight = ^uint64(0) >> 1

	f.IntVar(&c.MaxQueueSize, prefix+"max-queue-size", c.MaxQueueSize, "Hard byte budget for the in-memory block queue.")
	f.IntVar(&c.BlockSize, prefix+"block-size", c.BlockSize, "Initial block-size estimate in bytes, used to seed the capacity planner.")
	f.Uint64Var(&c.MaxBlockHeight, prefix+"max-block-height", c.MaxBlockHeight, "Terminating height; enqueuing beyond it fails.")

	c.Planner.RegisterFlagsAndApplyDefaults(prefix+"queue.", f)
}
