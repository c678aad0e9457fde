package dto

import (
	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/pkg/validator"
)

type CreateZoneRequest struct {
	Name     string              `json:"name"`
	Boundary []models.Coordinate `json:"boundary"`
	IsActive *bool               `json:"is_active"`
}

func (r *CreateZoneRequest) Validate(v *validator.Validator) {
	zone := r.ToModel()
	zone.Validate(v)
}

func (r *CreateZoneRequest) ToModel() *models.Zone {
	zone := &models.Zone{
		Name:     r.Name,
		Boundary: r.Boundary,
		IsActive: true,
	}
	if r.IsActive != nil {
		zone.IsActive = *r.IsActive
	}
	return zone
}

// UpdateZoneRequest carries a partial update; nil fields keep their current
// value.
type UpdateZoneRequest struct {
	Name     *string              `json:"name"`
	Boundary *[]models.Coordinate `json:"boundary"`
	IsActive *bool                `json:"is_active"`
}

func (r *UpdateZoneRequest) Apply(zone *models.Zone) {
	if r.Name != nil {
		zone.Name = *r.Name
	}
	if r.Boundary != nil {
		zone.Boundary = *r.Boundary
	}
	if r.IsActive != nil {
		zone.IsActive = *r.IsActive
	}
}
