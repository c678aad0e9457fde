package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

// Analytics aggregates closed surge events over [from, to): per-zone event
// counts, multiplier averages and peaks, revenue impact estimates and a
// by-hour activation histogram.
func (s *Service) Analytics(ctx context.Context, from, to time.Time, zoneID *uuid.UUID) (*models.PricingAnalytics, error) {
	ctx = wrap.WithAction(ctx, "pricing_analytics")

	if !to.After(from) {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid period: %s is not before %s", from, to))
	}

	report, err := s.eventRepo.Analytics(ctx, from, to, zoneID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not aggregate analytics: %w", err))
	}
	return report, nil
}
