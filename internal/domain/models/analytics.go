package models

import (
	"time"

	"github.com/google/uuid"
)

// ZoneAnalytics is the per-zone slice of a pricing analytics report.
type ZoneAnalytics struct {
	ZoneID        uuid.UUID `json:"zone_id"`
	ZoneName      string    `json:"zone_name"`
	TotalEvents   int       `json:"total_events"`
	AvgMultiplier float64   `json:"avg_multiplier"`
	MaxMultiplier float64   `json:"max_multiplier"`
	SurgeRevenue  float64   `json:"surge_revenue"`
}

// HourAnalytics is the per-hour-of-day slice of a pricing analytics report.
type HourAnalytics struct {
	Hour          int     `json:"hour"`
	TotalEvents   int     `json:"total_events"`
	AvgMultiplier float64 `json:"avg_multiplier"`
}

// PricingAnalytics aggregates closed surge events over a period.
type PricingAnalytics struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	TotalEvents       int             `json:"total_events"`
	AvgMultiplier     float64         `json:"avg_multiplier"`
	MaxMultiplier     float64         `json:"max_multiplier"`
	TotalSurgeRevenue float64         `json:"total_surge_revenue"`
	SurgeRevenueShare float64         `json:"surge_revenue_share"`
	ByZone            []ZoneAnalytics `json:"by_zone"`
	ByHour            []HourAnalytics `json:"by_hour"`
}
