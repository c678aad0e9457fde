package postgres

import (
	"testing"
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
)

func TestRuleDoc_CarriesDurationsAsNanoseconds(t *testing.T) {
	maxDur := 45 * time.Minute
	cooldown := 10 * time.Minute

	rule := &models.SurgeRule{
		Name: "rush",
		Conditions: models.TriggerConditions{
			DemandThreshold: 50, SupplyThreshold: 10, DemandSupplyRatio: 3.0,
		},
		Multiplier: models.PricingMultiplier{
			BaseMultiplier: 1.2, MaxMultiplier: 2.5,
			IncrementStep: 0.1, DecrementStep: 0.2,
			EvaluationInterval: 30 * time.Second,
		},
		TimeRestrictions: []models.TimeRestriction{{
			DaysOfWeek: []time.Weekday{time.Friday, time.Saturday},
			StartTime:  "18:00",
			EndTime:    "02:00",
		}},
		MaxDuration:    &maxDur,
		CooldownPeriod: &cooldown,
	}

	doc, err := ruleToDoc(rule)
	if err != nil {
		t.Fatalf("to doc failed: %v", err)
	}

	var got models.SurgeRule
	if err := ruleFromDoc(&got, doc); err != nil {
		t.Fatalf("from doc failed: %v", err)
	}

	if got.MaxDuration == nil || *got.MaxDuration != maxDur {
		t.Fatalf("max duration lost in the document: %v", got.MaxDuration)
	}
	if got.CooldownPeriod == nil || *got.CooldownPeriod != cooldown {
		t.Fatalf("cooldown lost in the document: %v", got.CooldownPeriod)
	}
	if got.Multiplier.EvaluationInterval != 30*time.Second {
		t.Fatalf("evaluation interval lost: %v", got.Multiplier.EvaluationInterval)
	}
	if len(got.TimeRestrictions) != 1 || got.TimeRestrictions[0].EndTime != "02:00" {
		t.Fatalf("time restrictions lost: %+v", got.TimeRestrictions)
	}
}

func TestRuleDoc_NilDurationsStayNil(t *testing.T) {
	rule := &models.SurgeRule{
		Name: "open-ended",
		Multiplier: models.PricingMultiplier{
			BaseMultiplier: 1.1, MaxMultiplier: 1.5,
			IncrementStep: 0.1, DecrementStep: 0.1,
			EvaluationInterval: time.Minute,
		},
	}

	doc, err := ruleToDoc(rule)
	if err != nil {
		t.Fatalf("to doc failed: %v", err)
	}

	var got models.SurgeRule
	if err := ruleFromDoc(&got, doc); err != nil {
		t.Fatalf("from doc failed: %v", err)
	}
	if got.MaxDuration != nil || got.CooldownPeriod != nil {
		t.Fatalf("unset durations must stay nil: max=%v cooldown=%v", got.MaxDuration, got.CooldownPeriod)
	}
}
