package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

// Settings returns the settings snapshot the engine is currently running on.
func (s *Service) Settings(ctx context.Context) models.PricingSettings {
	return s.engine.Settings()
}

// UpdateSettings persists a new settings snapshot and publishes it to the
// scheduler. Disabling pricing globally drains every active event within one
// evaluation interval.
func (s *Service) UpdateSettings(ctx context.Context, settings models.PricingSettings) (models.PricingSettings, error) {
	ctx = wrap.WithAction(ctx, "update_pricing_settings")

	current := s.engine.Settings()
	settings.Version = current.Version + 1
	settings.UpdatedAt = time.Now()

	if err := s.settingsRepo.Save(ctx, &settings); err != nil {
		return models.PricingSettings{}, wrap.Error(ctx, fmt.Errorf("could not persist settings: %w", err))
	}

	s.engine.UpdateSettings(settings)
	s.logger.Info(ctx, "pricing settings updated",
		"version", settings.Version,
		"globally_enabled", settings.IsGloballyEnabled,
		"max_global_multiplier", settings.MaxGlobalMultiplier)

	return settings, nil
}
