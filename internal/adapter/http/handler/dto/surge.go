package dto

import (
	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/pkg/validator"
)

type ManualSurgeRequest struct {
	ZoneID     uuid.UUID `json:"zone_id"`
	Multiplier float64   `json:"multiplier"`
	Reason     string    `json:"reason"`
}

func (r *ManualSurgeRequest) Validate(v *validator.Validator) {
	v.Check(r.ZoneID != uuid.Nil, "zone_id", "must be provided")
	v.Check(r.Multiplier >= 1.0, "multiplier", "must be at least 1.0")
	v.Check(r.Reason != "", "reason", "must be provided")
	v.Check(len(r.Reason) <= 500, "reason", "must not be more than 500 characters")
}
