package engine

import "time"

// maxTicksPerFrame caps the catch-up burst a slow frame can trigger
// (spec.md §4.8: "capping at 8 ticks per frame to avoid runaway").
const maxTicksPerFrame = 8

// Driver decouples the tick rate from real time (spec.md §4.8): it
// accumulates elapsed wall-clock time, scaled by the simulation speed
// factor, and fires whole ticks out of the accumulator.
type Driver struct {
	engine      *Engine
	accumulator time.Duration
}

// NewDriver returns a Driver for e.
func NewDriver(e *Engine) *Driver {
	return &Driver{engine: e}
}

// Advance feeds dt of wall-clock time into the accumulator and fires
// as many ticks as it can afford, up to maxTicksPerFrame. It returns
// the number of ticks actually run.
func (drv *Driver) Advance(dt time.Duration) int {
	speed := drv.engine.Speed
	if speed <= 0 {
		speed = 1
	}
	drv.accumulator += time.Duration(float64(dt) * speed)
	ticks := int(drv.accumulator / tickDuration)
	if ticks > maxTicksPerFrame {
		ticks = maxTicksPerFrame
	}
	for i := 0; i < ticks; i++ {
		drv.engine.Tick()
	}
	drv.accumulator -= time.Duration(ticks) * tickDuration
	if drv.accumulator < 0 {
		drv.accumulator = 0
	}
	return ticks
}
