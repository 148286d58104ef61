// Package throttle implements the Throttle Controller (spec.md section
// 4.5): a trailing sleep-ratio EMA that pushes the global minimum
// audibility threshold up when the scheduler is falling behind and eases
// it back down once it has recovered slack.
package throttle

import "github.com/gitter-badger/hifi/internal/mixer"

// trailingFrames is the EMA window (spec.md: TRAILING_FRAMES = 100) and
// also the minimum number of ticks between two throttle decisions.
const trailingFrames = 100

const (
	emaAlpha              = 1.0 / trailingFrames
	struggleThreshold     = 0.10
	backOffThreshold      = 0.20
	backOffStep           = 0.02
	struggleClimbFraction = 0.5
)

// Controller holds the throttle state that evolves once per tick.
type Controller struct {
	trailingSleepRatio         float64
	performanceThrottlingRatio float64
	framesSinceEvent           int

	minAudibilityThreshold float64
}

// New returns a Controller at rest: no throttling, and the audibility
// threshold at its floor (invariant I5).
func New() *Controller {
	c := &Controller{}
	c.minAudibilityThreshold = mixer.LoudnessToDistanceRatio / 2
	return c
}

// Update folds one tick's realized sleep duration into the trailing
// average and, once at least trailingFrames ticks have passed since the
// last change, lets the controller act on it (every tick until it does). sleepUsecs is the duration actually slept this tick; negative values
// (a TickOverrun) are clamped to zero per spec.md section 4.5.
func (c *Controller) Update(sleepUsecs int64) {
	if sleepUsecs < 0 {
		sleepUsecs = 0
	}
	ratio := float64(sleepUsecs) / float64(mixer.BufferSendIntervalUsecs)
	c.trailingSleepRatio = (1-emaAlpha)*c.trailingSleepRatio + emaAlpha*ratio

	c.framesSinceEvent++
	if c.framesSinceEvent < trailingFrames {
		return
	}

	changed := false
	switch {
	case c.trailingSleepRatio <= struggleThreshold:
		c.performanceThrottlingRatio += struggleClimbFraction * (1 - c.performanceThrottlingRatio)
		changed = true
	case c.trailingSleepRatio >= backOffThreshold && c.performanceThrottlingRatio > 0:
		c.performanceThrottlingRatio -= backOffStep
		if c.performanceThrottlingRatio < 0 {
			c.performanceThrottlingRatio = 0
		}
		changed = true
	}

	if changed {
		c.framesSinceEvent = 0
		c.minAudibilityThreshold = mixer.LoudnessToDistanceRatio / (2 * (1 - c.performanceThrottlingRatio))
	}
}

// MinAudibilityThreshold is the current global audibility gate (invariant
// I5): monotone non-decreasing in PerformanceThrottlingRatio (P6).
func (c *Controller) MinAudibilityThreshold() float64 {
	return c.minAudibilityThreshold
}

// PerformanceThrottlingRatio is the current throttling scalar in [0,1).
func (c *Controller) PerformanceThrottlingRatio() float64 {
	return c.performanceThrottlingRatio
}

// TrailingSleepRatio exposes the raw EMA, useful for diagnostics and the
// admin API.
func (c *Controller) TrailingSleepRatio() float64 {
	return c.trailingSleepRatio
}
