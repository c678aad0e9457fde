package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/pkg/validator"
)

type TriggerConditionsDTO struct {
	DemandThreshold        int      `json:"demand_threshold"`
	SupplyThreshold        int      `json:"supply_threshold"`
	DemandSupplyRatio      float64  `json:"demand_supply_ratio"`
	WaitTimeThresholdMin   *float64 `json:"wait_time_threshold_min,omitempty"`
	BookingVolumeThreshold *int     `json:"booking_volume_threshold,omitempty"`
}

type PricingMultiplierDTO struct {
	BaseMultiplier        float64 `json:"base_multiplier"`
	MaxMultiplier         float64 `json:"max_multiplier"`
	IncrementStep         float64 `json:"increment_step"`
	DecrementStep         float64 `json:"decrement_step"`
	EvaluationIntervalSec int     `json:"evaluation_interval_sec"`
}

type TimeRestrictionDTO struct {
	DaysOfWeek []int  `json:"days_of_week"` // 0 = Sunday
	StartTime  string `json:"start_time"`   // "HH:MM"
	EndTime    string `json:"end_time"`     // "HH:MM"
}

type CreateRuleRequest struct {
	ZoneID           uuid.UUID            `json:"zone_id"`
	Name             string               `json:"name"`
	IsActive         *bool                `json:"is_active"`
	Priority         int                  `json:"priority"`
	Conditions       TriggerConditionsDTO `json:"conditions"`
	Multiplier       PricingMultiplierDTO `json:"multiplier"`
	TimeRestrictions []TimeRestrictionDTO `json:"time_restrictions,omitempty"`
	MaxDurationMin   *int                 `json:"max_duration_min,omitempty"`
	CooldownMin      *int                 `json:"cooldown_min,omitempty"`
}

func (r *CreateRuleRequest) Validate(v *validator.Validator) {
	rule := r.ToModel()
	rule.Validate(v)
}

func (r *CreateRuleRequest) ToModel() *models.SurgeRule {
	rule := &models.SurgeRule{
		ZoneID:   r.ZoneID,
		Name:     r.Name,
		IsActive: true,
		Priority: r.Priority,
		Conditions: models.TriggerConditions{
			DemandThreshold:        r.Conditions.DemandThreshold,
			SupplyThreshold:        r.Conditions.SupplyThreshold,
			DemandSupplyRatio:      r.Conditions.DemandSupplyRatio,
			WaitTimeThresholdMin:   r.Conditions.WaitTimeThresholdMin,
			BookingVolumeThreshold: r.Conditions.BookingVolumeThreshold,
		},
		Multiplier: models.PricingMultiplier{
			BaseMultiplier:     r.Multiplier.BaseMultiplier,
			MaxMultiplier:      r.Multiplier.MaxMultiplier,
			IncrementStep:      r.Multiplier.IncrementStep,
			DecrementStep:      r.Multiplier.DecrementStep,
			EvaluationInterval: time.Duration(r.Multiplier.EvaluationIntervalSec) * time.Second,
		},
	}
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	for _, tr := range r.TimeRestrictions {
		days := make([]time.Weekday, 0, len(tr.DaysOfWeek))
		for _, d := range tr.DaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		rule.TimeRestrictions = append(rule.TimeRestrictions, models.TimeRestriction{
			DaysOfWeek: days,
			StartTime:  tr.StartTime,
			EndTime:    tr.EndTime,
		})
	}
	if r.MaxDurationMin != nil {
		d := time.Duration(*r.MaxDurationMin) * time.Minute
		rule.MaxDuration = &d
	}
	if r.CooldownMin != nil {
		d := time.Duration(*r.CooldownMin) * time.Minute
		rule.CooldownPeriod = &d
	}
	return rule
}

// UpdateRuleRequest is a full replacement of the rule definition except for
// its zone, which is immutable.
type UpdateRuleRequest struct {
	Name             string               `json:"name"`
	IsActive         *bool                `json:"is_active"`
	Priority         int                  `json:"priority"`
	Conditions       TriggerConditionsDTO `json:"conditions"`
	Multiplier       PricingMultiplierDTO `json:"multiplier"`
	TimeRestrictions []TimeRestrictionDTO `json:"time_restrictions,omitempty"`
	MaxDurationMin   *int                 `json:"max_duration_min,omitempty"`
	CooldownMin      *int                 `json:"cooldown_min,omitempty"`
}

func (r *UpdateRuleRequest) Validate(v *validator.Validator) {
	rule := r.ToModel(uuid.Nil)
	rule.ZoneID = uuid.Max // zone is not part of the payload
	rule.Validate(v)
}

func (r *UpdateRuleRequest) ToModel(id uuid.UUID) *models.SurgeRule {
	create := CreateRuleRequest{
		Name:             r.Name,
		IsActive:         r.IsActive,
		Priority:         r.Priority,
		Conditions:       r.Conditions,
		Multiplier:       r.Multiplier,
		TimeRestrictions: r.TimeRestrictions,
		MaxDurationMin:   r.MaxDurationMin,
		CooldownMin:      r.CooldownMin,
	}
	rule := create.ToModel()
	rule.ID = id
	return rule
}
