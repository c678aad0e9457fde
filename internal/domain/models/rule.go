package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/pkg/validator"
)

// TriggerConditions is the threshold test deciding whether a rule fires.
// All configured thresholds must hold at once; nil optional thresholds are
// treated as always satisfied.
type TriggerConditions struct {
	DemandThreshold        int      `json:"demand_threshold"`
	SupplyThreshold        int      `json:"supply_threshold"`
	DemandSupplyRatio      float64  `json:"demand_supply_ratio"`
	WaitTimeThresholdMin   *float64 `json:"wait_time_threshold_min,omitempty"`
	BookingVolumeThreshold *int     `json:"booking_volume_threshold,omitempty"`
}

// PricingMultiplier holds the stepping parameters of a rule.
type PricingMultiplier struct {
	BaseMultiplier     float64       `json:"base_multiplier"`
	MaxMultiplier      float64       `json:"max_multiplier"`
	IncrementStep      float64       `json:"increment_step"`
	DecrementStep      float64       `json:"decrement_step"`
	EvaluationInterval time.Duration `json:"evaluation_interval"`
}

// TimeRestriction limits a rule to a day-of-week/time-of-day window.
// Windows may cross midnight (e.g. 18:00-02:00).
type TimeRestriction struct {
	DaysOfWeek []time.Weekday `json:"days_of_week"`
	StartTime  string         `json:"start_time"` // "HH:MM"
	EndTime    string         `json:"end_time"`   // "HH:MM"
}

// SurgeRule describes when and how strongly a zone surges.
type SurgeRule struct {
	ID               uuid.UUID         `json:"id"`
	ZoneID           uuid.UUID         `json:"zone_id"`
	Name             string            `json:"name"`
	IsActive         bool              `json:"is_active"`
	Priority         int               `json:"priority"`
	Conditions       TriggerConditions `json:"conditions"`
	Multiplier       PricingMultiplier `json:"multiplier"`
	TimeRestrictions []TimeRestriction `json:"time_restrictions,omitempty"`
	MaxDuration      *time.Duration    `json:"max_duration,omitempty"`
	CooldownPeriod   *time.Duration    `json:"cooldown_period,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (r *SurgeRule) Validate(v *validator.Validator) {
	v.Check(r.Name != "", "name", "must be provided")
	v.Check(r.ZoneID != uuid.Nil, "zone_id", "must be provided")

	v.Check(r.Multiplier.BaseMultiplier >= 1.0, "multiplier.base_multiplier", "must be at least 1.0")
	v.Check(r.Multiplier.MaxMultiplier >= r.Multiplier.BaseMultiplier, "multiplier.max_multiplier", "must not be less than base multiplier")
	v.Check(r.Multiplier.IncrementStep > 0, "multiplier.increment_step", "must be greater than zero")
	v.Check(r.Multiplier.DecrementStep > 0, "multiplier.decrement_step", "must be greater than zero")
	v.Check(r.Multiplier.EvaluationInterval > 0, "multiplier.evaluation_interval", "must be greater than zero")

	v.Check(r.Conditions.DemandThreshold >= 0, "conditions.demand_threshold", "must not be negative")
	v.Check(r.Conditions.SupplyThreshold >= 0, "conditions.supply_threshold", "must not be negative")
	v.Check(r.Conditions.DemandSupplyRatio >= 0, "conditions.demand_supply_ratio", "must not be negative")
	if r.Conditions.WaitTimeThresholdMin != nil {
		v.Check(*r.Conditions.WaitTimeThresholdMin > 0, "conditions.wait_time_threshold_min", "must be greater than zero")
	}
	if r.Conditions.BookingVolumeThreshold != nil {
		v.Check(*r.Conditions.BookingVolumeThreshold > 0, "conditions.booking_volume_threshold", "must be greater than zero")
	}

	if r.MaxDuration != nil {
		v.Check(*r.MaxDuration > 0, "max_duration", "must be greater than zero")
	}
	if r.CooldownPeriod != nil {
		v.Check(*r.CooldownPeriod >= 0, "cooldown_period", "must not be negative")
	}

	for _, tr := range r.TimeRestrictions {
		tr.Validate(v)
	}
}

func (tr TimeRestriction) Validate(v *validator.Validator) {
	v.Check(len(tr.DaysOfWeek) > 0, "time_restrictions.days_of_week", "must contain at least one day")
	v.Check(validator.Unique(tr.DaysOfWeek), "time_restrictions.days_of_week", "must not contain duplicate days")
	for _, d := range tr.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			v.AddError("time_restrictions.days_of_week", "contains an invalid day")
			break
		}
	}
	v.Check(isClockTime(tr.StartTime), "time_restrictions.start_time", "must be in HH:MM format")
	v.Check(isClockTime(tr.EndTime), "time_restrictions.end_time", "must be in HH:MM format")
}

func isClockTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
