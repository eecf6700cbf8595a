package blocksqueue

import (
	"flag"
	"math"
	"time"
)

// PlannerConfig configures the CapacityPlanner. Defaults match the ones a
// fresh ring should start with before any observations arrive.
type PlannerConfig struct {
	MinSlots int `yaml:"min_slots"`
	MaxSlots int `yaml:"max_slots"`

	MinAvgBytes int `yaml:"min_avg_bytes"`
	MaxAvgBytes int `yaml:"max_avg_bytes"`

	Alpha float64 `yaml:"alpha"`

	GrowThreshold   float64 `yaml:"grow_threshold"`
	ShrinkThreshold float64 `yaml:"shrink_threshold"`

	ResizeCooldown time.Duration `yaml:"resize_cooldown"`
}

// RegisterFlagsAndApplyDefaults registers the planner's flags under prefix
// and seeds the struct with its defaults, following the flagext.Registerer
// convention used across this repo's config structs.
func (c *PlannerConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.MinSlots = 1
	c.MaxSlots = 100_000
	c.MinAvgBytes = 256
	c.MaxAvgBytes = 65_536
	c.Alpha = 0.05
	c.GrowThreshold = 0.30
	c.ShrinkThreshold = 0.40
	c.ResizeCooldown = 10 * time.Second

	f.IntVar(&c.MinSlots, prefix+"planner.min-slots", c.MinSlots, "Hard lower bound on ring capacity.")
	f.IntVar(&c.MaxSlots, prefix+"planner.max-slots", c.MaxSlots, "Hard upper bound on ring capacity.")
	f.IntVar(&c.MinAvgBytes, prefix+"planner.min-avg-bytes", c.MinAvgBytes, "Lower clamp on the block-size EMA.")
	f.IntVar(&c.MaxAvgBytes, prefix+"planner.max-avg-bytes", c.MaxAvgBytes, "Upper clamp on the block-size EMA.")
	f.Float64Var(&c.Alpha, prefix+"planner.alpha", c.Alpha, "EMA smoothing factor in (0, 1].")
	f.Float64Var(&c.GrowThreshold, prefix+"planner.grow-threshold", c.GrowThreshold, "Fractional deviation of desired capacity above current required to grow.")
	f.Float64Var(&c.ShrinkThreshold, prefix+"planner.shrink-threshold", c.ShrinkThreshold, "Fractional deviation of desired capacity below current required to shrink.")
	f.DurationVar(&c.ResizeCooldown, prefix+"planner.resize-cooldown", c.ResizeCooldown, "Minimum wall time between ring resizes.")
}

// ResizeInput is the snapshot CapacityPlanner.ShouldResize needs from the
// queue to decide whether a resize is due.
type ResizeInput struct {
	Now             time.Time
	MaxQueueBytes   int
	CurrentCapacity int
	CurrentCount    int
}

// CapacityPlanner tracks an exponential moving average of observed block
// sizes and turns it into a ring-capacity recommendation, resisting thrash
// via thresholds and a cooldown. It is not safe for concurrent use; callers
// serialize access (BlocksQueue does so under its own lock).
type CapacityPlanner struct {
	cfg PlannerConfig

	ema          float64
	lastResizeAt time.Time
}

// NewCapacityPlanner seeds the EMA with seedBytes, clamped to the
// configured [MinAvgBytes, MaxAvgBytes] range.
func NewCapacityPlanner(cfg PlannerConfig, seedBytes int) *CapacityPlanner {
	return &CapacityPlanner{
		cfg: cfg,
		ema: clampFloat(float64(seedBytes), float64(cfg.MinAvgBytes), float64(cfg.MaxAvgBytes)),
	}
}

// EMA returns the current smoothed average block size in bytes.
func (p *CapacityPlanner) EMA() float64 {
	return p.ema
}

// Observe folds a newly seen block size into the EMA. The sample is
// clamped to [1, 4*MaxAvgBytes] before folding so a single pathological
// block cannot swing the average out of a recoverable range in one step.
func (p *CapacityPlanner) Observe(sampleBytes int) {
	sample := clampFloat(float64(sampleBytes), 1, 4*float64(p.cfg.MaxAvgBytes))
	p.ema = p.cfg.Alpha*sample + (1-p.cfg.Alpha)*p.ema
	p.ema = clampFloat(p.ema, float64(p.cfg.MinAvgBytes), float64(p.cfg.MaxAvgBytes))
}

// DesiredSlots computes the ring capacity that would keep
// capacity * EMA approximately at maxQueueBytes, clamped to [MinSlots, MaxSlots].
func (p *CapacityPlanner) DesiredSlots(maxQueueBytes int) int {
	denom := math.Max(1, p.ema)
	desired := int(math.Floor(float64(maxQueueBytes) / denom))
	return clampInt(desired, p.cfg.MinSlots, p.cfg.MaxSlots)
}

// ShouldResize reports whether the ring should be resized given in, and if
// so the target slot count. The target never drops below CurrentCount, so
// applying it can never discard stored blocks.
func (p *CapacityPlanner) ShouldResize(in ResizeInput) (need bool, targetSlots int) {
	if !p.lastResizeAt.IsZero() && in.Now.Sub(p.lastResizeAt) < p.cfg.ResizeCooldown {
		return false, in.CurrentCapacity
	}

	desired := p.DesiredSlots(in.MaxQueueBytes)

	needGrow := desired > int(math.Floor(float64(in.CurrentCapacity)*(1+p.cfg.GrowThreshold)))
	needShrink := desired < int(math.Ceil(float64(in.CurrentCapacity)*(1-p.cfg.ShrinkThreshold))) && desired >= in.CurrentCount

	if !needGrow && !needShrink {
		return false, in.CurrentCapacity
	}

	target := desired
	if in.CurrentCount > target {
		target = in.CurrentCount
	}
	return true, target
}

// MarkResized records that a resize happened at now, restarting the
// cooldown window.
func (p *CapacityPlanner) MarkResized(now time.Time) {
	p.lastResizeAt = now
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
