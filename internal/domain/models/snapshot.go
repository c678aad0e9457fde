package models

import (
	"time"

	"github.com/google/uuid"
)

// ZoneMetricsSnapshot is one observation of a zone produced by the external
// telemetry feed. Immutable once produced; superseded by the next snapshot
// for the same zone.
type ZoneMetricsSnapshot struct {
	ZoneID            uuid.UUID `json:"zone_id"`
	CapturedAt        time.Time `json:"captured_at"`
	ActiveSupply      int       `json:"active_supply"`
	PendingDemand     int       `json:"pending_demand"`
	CompletedRides    int       `json:"completed_rides"`
	AvgWaitTimeMin    float64   `json:"avg_wait_time_min"`
	DemandScore       float64   `json:"demand_score"`
	SupplyScore       float64   `json:"supply_score"`
	DemandSupplyRatio float64   `json:"demand_supply_ratio"`
	CurrentMultiplier float64   `json:"current_multiplier"` // read-only mirror
	EstimatedRevenue  float64   `json:"estimated_revenue"`
}

// Ratio returns the demand-to-supply ratio, deriving it from the raw counts
// when the feed did not precompute it. Zero supply with pending demand is
// reported as the demand count itself, which dominates any ratio threshold.
func (s ZoneMetricsSnapshot) Ratio() float64 {
	if s.DemandSupplyRatio > 0 {
		return s.DemandSupplyRatio
	}
	if s.ActiveSupply == 0 {
		if s.PendingDemand == 0 {
			return 0
		}
		return float64(s.PendingDemand)
	}
	return float64(s.PendingDemand) / float64(s.ActiveSupply)
}

// IsStale reports whether the snapshot is older than the allowed age at now.
func (s ZoneMetricsSnapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.CapturedAt) > maxAge
}
