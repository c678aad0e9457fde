package dto

import (
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/pkg/validator"
)

type EmergencyOverrideDTO struct {
	Enabled             bool     `json:"enabled"`
	MaxMultiplier       float64  `json:"max_multiplier"`
	AuthorizedOperators []string `json:"authorized_operators"`
	ApprovalRequired    bool     `json:"approval_required"`
}

type UpdateSettingsRequest struct {
	IsGloballyEnabled            bool                 `json:"is_globally_enabled"`
	MaxGlobalMultiplier          float64              `json:"max_global_multiplier"`
	DefaultEvaluationIntervalSec int                  `json:"default_evaluation_interval_sec"`
	EmergencyOverride            EmergencyOverrideDTO `json:"emergency_override"`
	NotifyMultiplierThreshold    float64              `json:"notify_multiplier_threshold"`
}

func (r *UpdateSettingsRequest) Validate(v *validator.Validator) {
	settings := r.ToModel()
	settings.Validate(v)
}

func (r *UpdateSettingsRequest) ToModel() models.PricingSettings {
	return models.PricingSettings{
		IsGloballyEnabled:         r.IsGloballyEnabled,
		MaxGlobalMultiplier:       r.MaxGlobalMultiplier,
		DefaultEvaluationInterval: time.Duration(r.DefaultEvaluationIntervalSec) * time.Second,
		EmergencyOverride: models.EmergencyOverridePolicy{
			Enabled:             r.EmergencyOverride.Enabled,
			MaxMultiplier:       r.EmergencyOverride.MaxMultiplier,
			AuthorizedOperators: r.EmergencyOverride.AuthorizedOperators,
			ApprovalRequired:    r.EmergencyOverride.ApprovalRequired,
		},
		NotifyMultiplierThreshold: r.NotifyMultiplierThreshold,
	}
}

type SettingsResponse struct {
	Version                      int64                `json:"version"`
	IsGloballyEnabled            bool                 `json:"is_globally_enabled"`
	MaxGlobalMultiplier          float64              `json:"max_global_multiplier"`
	DefaultEvaluationIntervalSec int                  `json:"default_evaluation_interval_sec"`
	EmergencyOverride            EmergencyOverrideDTO `json:"emergency_override"`
	NotifyMultiplierThreshold    float64              `json:"notify_multiplier_threshold"`
	UpdatedAt                    time.Time            `json:"updated_at"`
}

func NewSettingsResponse(s models.PricingSettings) SettingsResponse {
	return SettingsResponse{
		Version:                      s.Version,
		IsGloballyEnabled:            s.IsGloballyEnabled,
		MaxGlobalMultiplier:          s.MaxGlobalMultiplier,
		DefaultEvaluationIntervalSec: int(s.DefaultEvaluationInterval / time.Second),
		EmergencyOverride: EmergencyOverrideDTO{
			Enabled:             s.EmergencyOverride.Enabled,
			MaxMultiplier:       s.EmergencyOverride.MaxMultiplier,
			AuthorizedOperators: s.EmergencyOverride.AuthorizedOperators,
			ApprovalRequired:    s.EmergencyOverride.ApprovalRequired,
		},
		NotifyMultiplierThreshold: s.NotifyMultiplierThreshold,
		UpdatedAt:                 s.UpdatedAt,
	}
}
