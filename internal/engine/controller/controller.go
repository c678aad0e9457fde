package controller

import (
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
)

// defaultDecrementStep is used when releasing an event that has no driving
// rule left (manual events, deleted rules).
const defaultDecrementStep = 0.1

// StepResult is the outcome of advancing the controller one tick.
type StepResult struct {
	Multiplier      float64
	ReleaseComplete bool // current reached the release target; close the event
}

// Controller steps the current multiplier of one zone toward a target value
// at the evaluation cadence, never moving more than one step per tick and
// never exceeding min(rule max, global cap). It is owned by a single zone
// worker and must not be shared across goroutines.
type Controller struct {
	current  float64
	target   float64
	lastTick time.Time
	manual   bool
}

func New() *Controller {
	return &Controller{current: 1.0, target: 1.0}
}

func (c *Controller) Current() float64 {
	return c.current
}

func (c *Controller) Target() float64 {
	return c.target
}

func (c *Controller) LastTick() time.Time {
	return c.lastTick
}

func (c *Controller) IsManual() bool {
	return c.manual
}

// Advance applies one evaluator decision. rule may be nil for release ticks
// whose driving rule is gone.
func (c *Controller) Advance(action types.Decision, rule *models.SurgeRule, settings models.PricingSettings, now time.Time) StepResult {
	c.lastTick = now

	switch action {
	case types.ShouldTrigger, types.ShouldEscalate:
		c.manual = false
		c.target = escalationTarget(rule, settings)
		c.stepToward(incrementStep(rule), decrementStep(rule))
		return StepResult{Multiplier: c.current}

	case types.ShouldHold:
		return StepResult{Multiplier: c.current}

	case types.ShouldRelease:
		c.manual = false
		c.target = releaseTarget(rule)
		// A release only ever steps down; an event released before reaching
		// its base is already at or below the target and closes immediately.
		if c.current > c.target {
			c.current -= decrementStep(rule)
			if c.current < c.target {
				c.current = c.target
			}
		}
		done := c.current <= c.target || c.current <= 1.0
		return StepResult{Multiplier: c.current, ReleaseComplete: done}

	default: // NoAction
		return StepResult{Multiplier: c.current}
	}
}

// SetManual pins the controller at an operator-requested multiplier, clamped
// to the global cap. Subsequent automatic ticks leave it untouched until the
// event is deactivated.
func (c *Controller) SetManual(multiplier float64, settings models.PricingSettings) float64 {
	c.manual = true
	c.current = settings.ClampMultiplier(multiplier)
	c.target = c.current
	return c.current
}

// Reset returns the controller to its idle state after an event closes.
func (c *Controller) Reset() {
	c.current = 1.0
	c.target = 1.0
	c.manual = false
}

// stepToward moves current one bounded step toward target, never
// overshooting it in either direction.
func (c *Controller) stepToward(inc, dec float64) {
	switch {
	case c.current < c.target:
		c.current += inc
		if c.current > c.target {
			c.current = c.target
		}
	case c.current > c.target:
		c.current -= dec
		if c.current < c.target {
			c.current = c.target
		}
	}
}

func escalationTarget(rule *models.SurgeRule, settings models.PricingSettings) float64 {
	if rule == nil {
		return settings.ClampMultiplier(1.0)
	}
	return settings.ClampMultiplier(rule.Multiplier.MaxMultiplier)
}

func releaseTarget(rule *models.SurgeRule) float64 {
	if rule == nil {
		return 1.0
	}
	return rule.Multiplier.BaseMultiplier
}

func incrementStep(rule *models.SurgeRule) float64 {
	if rule == nil {
		return defaultDecrementStep
	}
	return rule.Multiplier.IncrementStep
}

func decrementStep(rule *models.SurgeRule) float64 {
	if rule == nil {
		return defaultDecrementStep
	}
	return rule.Multiplier.DecrementStep
}
