package loader

import (
	"flag"
	"fmt"
	"time"

	"github.com/grafana/dskit/backoff"
)

// StrategyName selects which LoadingStrategy the Loader drives.
type StrategyName string

const (
	StrategyPull StrategyName = "pull"
	StrategyPush StrategyName = "push"
)

// Config configures the Loader and both loading strategies.
type Config struct {
	StrategyName StrategyName `yaml:"strategy_name"`

	// MaxRpcReplyBytes bounds the total size of raw provider responses in
	// a single fetch.
	MaxRpcReplyBytes int `yaml:"max_rpc_reply_bytes"`
	// SafetyFactor inflates the preload item's reported size to account
	// for provider response overhead when sizing a fetch prefix.
	SafetyFactor float64 `yaml:"safety_factor"`
	// BasePreloadCount seeds the pull strategy's adaptive preload count.
	BasePreloadCount int `yaml:"base_preload_count"`
	// FetchRetries bounds the number of immediate (no backoff) retries the
	// pull strategy performs on a single fetch before surfacing the error.
	FetchRetries int `yaml:"fetch_retries"`
	// FullTransactions and VerifyMerkle are passed through to
	// GetManyBlocksByHeights.
	FullTransactions bool `yaml:"full_transactions"`
	VerifyMerkle     bool `yaml:"verify_merkle"`

	// BlockTime is the loader's idle delay between successful load passes.
	BlockTime time.Duration `yaml:"block_time"`

	Backoff backoff.Config `yaml:"backoff"`
}

// RegisterFlagsAndApplyDefaults registers the loader's flags under prefix
// and seeds the struct with its defaults.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.StrategyName = StrategyPull
	c.MaxRpcReplyBytes = 10 << 20 // 10MiB
	c.SafetyFactor = 2.1
	c.BasePreloadCount = 32
	c.FetchRetries = 3
	c.FullTransactions = true
	c.VerifyMerkle = false
	c.BlockTime = 2 * time.Second

	c.Backoff = backoff.Config{
		MinBackoff: 500 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		MaxRetries: 0, // retry forever; the loader only gives up on fatal errors
	}

	f.Var(newStrategyNameValue(&c.StrategyName), prefix+"strategy-name", "Loading strategy to drive: pull or push.")
	f.IntVar(&c.MaxRpcReplyBytes, prefix+"max-rpc-reply-bytes", c.MaxRpcReplyBytes, "Upper bound on total provider reply size per fetch.")
	f.Float64Var(&c.SafetyFactor, prefix+"safety-factor", c.SafetyFactor, "Multiplier applied to preload item sizes when budgeting a fetch prefix.")
	f.IntVar(&c.BasePreloadCount, prefix+"base-preload-count", c.BasePreloadCount, "Initial preload fan-out for the pull strategy.")
	f.IntVar(&c.FetchRetries, prefix+"fetch-retries", c.FetchRetries, "Immediate retries for a single block fetch before surfacing the error.")
	f.BoolVar(&c.FullTransactions, prefix+"full-transactions", c.FullTransactions, "Request full transaction bodies from the provider.")
	f.BoolVar(&c.VerifyMerkle, prefix+"verify-merkle", c.VerifyMerkle, "Request merkle verification from the provider.")
	f.DurationVar(&c.BlockTime, prefix+"block-time", c.BlockTime, "Idle delay between loader passes.")
	f.DurationVar(&c.Backoff.MinBackoff, prefix+"backoff.min-period", c.Backoff.MinBackoff, "Minimum delay before retrying a failed load pass.")
	f.DurationVar(&c.Backoff.MaxBackoff, prefix+"backoff.max-period", c.Backoff.MaxBackoff, "Maximum delay before retrying a failed load pass.")
	f.IntVar(&c.Backoff.MaxRetries, prefix+"backoff.max-retries", c.Backoff.MaxRetries, "Maximum number of retries before giving up (0 = retry forever).")
}

type strategyNameValue struct{ dest *StrategyName }

func newStrategyNameValue(dest *StrategyName) *strategyNameValue { return &strategyNameValue{dest} }

func (v *strategyNameValue) String() string {
	if v.dest == nil {
		return ""
	}
	return string(*v.dest)
}

func (v *strategyNameValue) Set(s string) error {
	switch StrategyName(s) {
	case StrategyPull, StrategyPush:
		*v.dest = StrategyName(s)
		return nil
	default:
		return fmt.Errorf("unknown loader strategy %q, want %q or %q", s, StrategyPull, StrategyPush)
	}
}
