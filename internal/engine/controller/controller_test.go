package controller

import (
	"math"
	"testing"
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
)

func settings(maxGlobal float64) models.PricingSettings {
	s := models.DefaultPricingSettings()
	s.MaxGlobalMultiplier = maxGlobal
	return s
}

func steppingRule(maxMultiplier float64) *models.SurgeRule {
	return &models.SurgeRule{
		Name:     "stepping",
		IsActive: true,
		Multiplier: models.PricingMultiplier{
			BaseMultiplier:     1.2,
			MaxMultiplier:      maxMultiplier,
			IncrementStep:      0.1,
			DecrementStep:      0.2,
			EvaluationInterval: 30 * time.Second,
		},
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAdvance_RampsOneStepPerTickToRuleMax(t *testing.T) {
	c := New()
	rule := steppingRule(2.5)
	cfg := settings(3.0)
	now := time.Now()

	got := c.Advance(types.ShouldTrigger, rule, cfg, now)
	if !closeTo(got.Multiplier, 1.1) {
		t.Fatalf("first tick must step 1.0 -> 1.1, got %.4f", got.Multiplier)
	}

	// 1.0 to 2.5 in 0.1 steps is 15 ticks; drive a few extra to prove the
	// multiplier saturates instead of overshooting.
	for i := 0; i < 20; i++ {
		got = c.Advance(types.ShouldEscalate, rule, cfg, now.Add(time.Duration(i)*time.Second))
		if got.Multiplier > 2.5+1e-9 {
			t.Fatalf("tick %d overshot the rule max: %.4f", i, got.Multiplier)
		}
	}
	if !closeTo(got.Multiplier, 2.5) {
		t.Fatalf("ramp must saturate at the rule max, got %.4f", got.Multiplier)
	}
}

func TestAdvance_GlobalCapClampsRuleMax(t *testing.T) {
	c := New()
	rule := steppingRule(5.0)
	cfg := settings(3.0)
	now := time.Now()

	var got StepResult
	for i := 0; i < 60; i++ {
		got = c.Advance(types.ShouldEscalate, rule, cfg, now)
	}
	if !closeTo(got.Multiplier, 3.0) {
		t.Fatalf("global cap must bound the target, got %.4f", got.Multiplier)
	}
}

func TestAdvance_HoldFreezesMultiplier(t *testing.T) {
	c := New()
	rule := steppingRule(2.5)
	cfg := settings(3.0)
	now := time.Now()

	c.Advance(types.ShouldTrigger, rule, cfg, now)
	before := c.Current()

	got := c.Advance(types.ShouldHold, rule, cfg, now.Add(time.Second))
	if !closeTo(got.Multiplier, before) {
		t.Fatalf("hold must not move the multiplier: %.4f -> %.4f", before, got.Multiplier)
	}
}

func TestAdvance_ReleaseStepsDownToBaseThenCompletes(t *testing.T) {
	c := New()
	rule := steppingRule(2.5)
	cfg := settings(3.0)
	now := time.Now()

	for i := 0; i < 20; i++ {
		c.Advance(types.ShouldEscalate, rule, cfg, now)
	}

	prev := c.Current()
	var got StepResult
	for i := 0; i < 30; i++ {
		got = c.Advance(types.ShouldRelease, rule, cfg, now)
		if got.Multiplier > prev+1e-9 {
			t.Fatalf("release must only ever step down: %.4f -> %.4f", prev, got.Multiplier)
		}
		prev = got.Multiplier
		if got.ReleaseComplete {
			break
		}
	}

	if !got.ReleaseComplete {
		t.Fatalf("release never completed, stuck at %.4f", got.Multiplier)
	}
	if !closeTo(got.Multiplier, rule.Multiplier.BaseMultiplier) {
		t.Fatalf("release must settle at the base multiplier, got %.4f", got.Multiplier)
	}
}

func TestAdvance_ReleaseBeforeRampCompletesImmediately(t *testing.T) {
	c := New()
	rule := steppingRule(2.5)
	cfg := settings(3.0)
	now := time.Now()

	// One trigger tick puts current at 1.1, below the 1.2 base target.
	c.Advance(types.ShouldTrigger, rule, cfg, now)

	got := c.Advance(types.ShouldRelease, rule, cfg, now.Add(time.Second))
	if !got.ReleaseComplete {
		t.Fatalf("an event already at or below its release target must close immediately")
	}
}

func TestAdvance_ReleaseWithoutRuleTargetsNeutral(t *testing.T) {
	c := New()
	cfg := settings(3.0)
	now := time.Now()

	c.SetManual(1.5, cfg)

	var got StepResult
	for i := 0; i < 10; i++ {
		got = c.Advance(types.ShouldRelease, nil, cfg, now)
		if got.ReleaseComplete {
			break
		}
	}
	if !got.ReleaseComplete {
		t.Fatalf("rule-less release must still complete")
	}
	if !closeTo(got.Multiplier, 1.0) {
		t.Fatalf("rule-less release must settle at 1.0, got %.4f", got.Multiplier)
	}
}

func TestSetManual_ClampsToGlobalCap(t *testing.T) {
	c := New()
	cfg := settings(3.0)

	if got := c.SetManual(2.4, cfg); !closeTo(got, 2.4) {
		t.Fatalf("manual multiplier within the cap must stick, got %.4f", got)
	}
	if !c.IsManual() {
		t.Fatalf("controller must be marked manual after SetManual")
	}

	if got := c.SetManual(4.2, cfg); !closeTo(got, 3.0) {
		t.Fatalf("manual multiplier must clamp to the global cap, got %.4f", got)
	}
}

func TestReset_ReturnsToNeutral(t *testing.T) {
	c := New()
	cfg := settings(3.0)

	c.SetManual(2.0, cfg)
	c.Reset()

	if !closeTo(c.Current(), 1.0) || !closeTo(c.Target(), 1.0) || c.IsManual() {
		t.Fatalf("reset must restore the idle state: current=%.4f target=%.4f manual=%v",
			c.Current(), c.Target(), c.IsManual())
	}
}

func TestAdvance_NoActionLeavesStateAlone(t *testing.T) {
	c := New()
	cfg := settings(3.0)

	got := c.Advance(types.NoAction, nil, cfg, time.Now())
	if !closeTo(got.Multiplier, 1.0) {
		t.Fatalf("no action on an idle controller must stay at 1.0, got %.4f", got.Multiplier)
	}
}
