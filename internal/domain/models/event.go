package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/types"
)

// EventTally is the running counters of an active surge event, captured at
// creation and updated on every evaluation tick while the event is open.
type EventTally struct {
	DemandCount       int64   `json:"demand_count"`
	SupplyCount       int64   `json:"supply_count"`
	DemandSupplyRatio float64 `json:"demand_supply_ratio"`
	TotalBookings     int64   `json:"total_bookings"`
	TotalRevenue      float64 `json:"total_revenue"`
	AvgWaitTimeMin    float64 `json:"avg_wait_time_min"`
	Ticks             int64   `json:"ticks"`
}

// SurgeEvent is the lifetime of one multiplier escalation in a zone.
// A zone has at most one active event at any instant.
type SurgeEvent struct {
	ID                   uuid.UUID           `json:"id"`
	ZoneID               uuid.UUID           `json:"zone_id"`
	RuleID               string              `json:"rule_id"` // rule UUID or "MANUAL"
	Source               types.TriggerSource `json:"source"`
	StartedAt            time.Time           `json:"started_at"`
	EndedAt              *time.Time          `json:"ended_at,omitempty"`
	CurrentMultiplier    float64             `json:"current_multiplier"`
	MaxMultiplierReached float64             `json:"max_multiplier_reached"`
	IsActive             bool                `json:"is_active"`
	TriggerReason        string              `json:"trigger_reason"`
	Tally                EventTally          `json:"tally"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// IsManual reports whether the event is under operator control.
func (e *SurgeEvent) IsManual() bool {
	return e.Source == types.SourceManual
}

// Age is the time the event has been open at now.
func (e *SurgeEvent) Age(now time.Time) time.Duration {
	return now.Sub(e.StartedAt)
}
