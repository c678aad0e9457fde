package models

import (
	"slices"
	"time"

	"github.com/nomadride/surge-engine/pkg/validator"
)

// EmergencyOverridePolicy governs operator-issued manual surge activation.
type EmergencyOverridePolicy struct {
	Enabled             bool     `json:"enabled"`
	MaxMultiplier       float64  `json:"max_multiplier"`
	AuthorizedOperators []string `json:"authorized_operators"`
	ApprovalRequired    bool     `json:"approval_required"`
}

// IsAuthorized reports whether the operator may issue an override under this
// policy. With approval not required any operator passes; otherwise the
// operator must be on the authorized list.
func (p EmergencyOverridePolicy) IsAuthorized(operatorID string) bool {
	if !p.ApprovalRequired {
		return true
	}
	return slices.Contains(p.AuthorizedOperators, operatorID)
}

// PricingSettings is the process-wide dynamic pricing configuration.
// Values are immutable once published; updates produce a new snapshot with a
// bumped Version rather than mutating shared state in place.
type PricingSettings struct {
	Version                   int64                   `json:"version"`
	IsGloballyEnabled         bool                    `json:"is_globally_enabled"`
	MaxGlobalMultiplier       float64                 `json:"max_global_multiplier"`
	DefaultEvaluationInterval time.Duration           `json:"default_evaluation_interval"`
	EmergencyOverride         EmergencyOverridePolicy `json:"emergency_override"`
	NotifyMultiplierThreshold float64                 `json:"notify_multiplier_threshold"`
	UpdatedAt                 time.Time               `json:"updated_at"`
}

func DefaultPricingSettings() PricingSettings {
	return PricingSettings{
		Version:                   1,
		IsGloballyEnabled:         true,
		MaxGlobalMultiplier:       3.0,
		DefaultEvaluationInterval: 5 * time.Minute,
		EmergencyOverride: EmergencyOverridePolicy{
			Enabled:          true,
			MaxMultiplier:    3.0,
			ApprovalRequired: true,
		},
		NotifyMultiplierThreshold: 2.0,
		UpdatedAt:                 time.Now(),
	}
}

func (s *PricingSettings) Validate(v *validator.Validator) {
	v.Check(s.MaxGlobalMultiplier >= 1.0, "max_global_multiplier", "must be at least 1.0")
	v.Check(s.DefaultEvaluationInterval > 0, "default_evaluation_interval", "must be greater than zero")
	v.Check(s.EmergencyOverride.MaxMultiplier >= 1.0, "emergency_override.max_multiplier", "must be at least 1.0")
	v.Check(s.NotifyMultiplierThreshold >= 1.0, "notify_multiplier_threshold", "must be at least 1.0")
	v.Check(validator.Unique(s.EmergencyOverride.AuthorizedOperators), "emergency_override.authorized_operators", "must not contain duplicates")
}

// ClampMultiplier bounds a target multiplier to the global cap.
func (s PricingSettings) ClampMultiplier(m float64) float64 {
	if m > s.MaxGlobalMultiplier {
		return s.MaxGlobalMultiplier
	}
	return m
}
