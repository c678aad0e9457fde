package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/pkg/validator"
)

// Coordinate is a single vertex of a zone boundary polygon.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Zone is a bounded geographic area with independent surge state.
// Boundaries arrive already resolved; the engine never maps raw coordinates
// to zones itself.
type Zone struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Boundary  []Coordinate `json:"boundary"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (z *Zone) Validate(v *validator.Validator) {
	v.Check(z.Name != "", "name", "must be provided")
	v.Check(len(z.Name) <= 120, "name", "must not be more than 120 characters")
	v.Check(len(z.Boundary) >= 3, "boundary", "must contain at least 3 coordinates")

	for _, c := range z.Boundary {
		if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
			v.AddError("boundary", "contains an out-of-range coordinate")
			break
		}
	}
}
