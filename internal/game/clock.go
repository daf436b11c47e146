package game

import (
	"math"
	"time"
)

const (
	DEFAULT_STEP_INTERVAL = 50 * time.Millisecond
	DEFAULT_STEP_GROWTH   = 0.01
)

// Curve maps time spent in the active phase to a multiplier. The multiplier
// grows by Growth every Step and is a pure function of elapsed time, so every
// reader at the same instant sees the same value.
type Curve struct {
	Step    time.Duration
	Growth  float64
	Ceiling float64
}

func DefaultCurve() Curve {
	return Curve{
		Step:    DEFAULT_STEP_INTERVAL,
		Growth:  DEFAULT_STEP_GROWTH,
		Ceiling: DEFAULT_CRASH_CEILING,
	}
}

// Multiplier returns the multiplier after elapsed time, clamped to
// [1, min(crashPoint, Ceiling)].
func (c Curve) Multiplier(elapsed time.Duration, crashPoint float64) float64 {
	limit := c.limit(crashPoint)
	if elapsed <= 0 || c.Step <= 0 {
		return MIN_MULTIPLIER
	}
	steps := int64(elapsed / c.Step)
	m := roundCents(MIN_MULTIPLIER + float64(steps)*c.Growth)
	if m > limit {
		return limit
	}
	return m
}

// TimeToReach is the earliest elapsed time at which Multiplier reaches target.
func (c Curve) TimeToReach(target float64) time.Duration {
	if target <= MIN_MULTIPLIER || c.Growth <= 0 {
		return 0
	}
	steps := math.Ceil((target-MIN_MULTIPLIER)/c.Growth - 1e-9)
	return time.Duration(steps) * c.Step
}

func (c Curve) limit(crashPoint float64) float64 {
	limit := crashPoint
	if c.Ceiling >= MIN_MULTIPLIER && c.Ceiling < limit {
		limit = c.Ceiling
	}
	if limit < MIN_MULTIPLIER {
		limit = MIN_MULTIPLIER
	}
	return limit
}
