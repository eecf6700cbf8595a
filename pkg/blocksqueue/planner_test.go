package blocksqueue

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPlannerConfig() PlannerConfig {
	var cfg PlannerConfig
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))
	return cfg
}

func TestCapacityPlannerObserveClampsEMA(t *testing.T) {
	cfg := defaultPlannerConfig()
	cfg.MinAvgBytes = 256
	cfg.MaxAvgBytes = 65_536
	p := NewCapacityPlanner(cfg, 1024)

	p.Observe(1_000_000)
	assert.LessOrEqual(t, p.EMA(), float64(cfg.MaxAvgBytes))

	for i := 0; i < 1000; i++ {
		p.Observe(1)
	}
	assert.GreaterOrEqual(t, p.EMA(), float64(cfg.MinAvgBytes))
}

func TestCapacityPlannerReactsToSampleDistribution(t *testing.T) {
	cfg := defaultPlannerConfig()
	cfg.MaxSlots = 1000
	cfg.MinSlots = 1
	p := NewCapacityPlanner(cfg, 1024)

	const budget = 65_536
	d0 := p.DesiredSlots(budget)

	for i := 0; i < 50; i++ {
		p.Observe(8192)
	}
	d1 := p.DesiredSlots(budget)
	assert.Less(t, d1, d0, "larger observed blocks should shrink desired capacity")

	for i := 0; i < 100; i++ {
		p.Observe(256)
	}
	d2 := p.DesiredSlots(budget)
	assert.Greater(t, d2, d1, "smaller observed blocks should grow desired capacity")
}

func TestCapacityPlannerResizeCooldownAndOccupancyClamp(t *testing.T) {
	cfg := defaultPlannerConfig()
	p := NewCapacityPlanner(cfg, 2048)

	now := time.Now()
	need, target := p.ShouldResize(ResizeInput{
		Now:             now,
		MaxQueueBytes:   100 * 2048,
		CurrentCapacity: 100,
		CurrentCount:    80,
	})
	require.False(t, need, "within thresholds, no resize should be requested")
	assert.Equal(t, 100, target)

	for i := 0; i < 200; i++ {
		p.Observe(65_536)
	}
	later := now.Add(6 * time.Second)
	need, target = p.ShouldResize(ResizeInput{
		Now:             later,
		MaxQueueBytes:   100 * 2048,
		CurrentCapacity: 100,
		CurrentCount:    80,
	})
	if need {
		assert.GreaterOrEqual(t, target, 80)
	}

	p.MarkResized(later)
	need, _ = p.ShouldResize(ResizeInput{
		Now:             later.Add(1 * time.Second),
		MaxQueueBytes:   100 * 2048,
		CurrentCapacity: target,
		CurrentCount:    80,
	})
	assert.False(t, need, "cooldown should suppress a resize right after markResized")
}

func TestCapacityPlannerShouldResizeNeverDropsBelowOccupancy(t *testing.T) {
	cfg := defaultPlannerConfig()
	cfg.ResizeCooldown = 0
	p := NewCapacityPlanner(cfg, 8)

	for i := 0; i < 500; i++ {
		p.Observe(1)
	}

	_, target := p.ShouldResize(ResizeInput{
		Now:             time.Now(),
		MaxQueueBytes:   1 << 20,
		CurrentCapacity: 10,
		CurrentCount:    9000,
	})
	assert.GreaterOrEqual(t, target, 9000)
}
