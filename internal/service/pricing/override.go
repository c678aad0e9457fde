package pricing

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
	"github.com/nomadride/surge-engine/pkg/metrics"
)

// ActivateManual starts an operator-controlled surge event. The emergency
// override policy gates who may do this and how high the multiplier may go;
// a manual event replaces whatever the rules were doing in the zone.
func (s *Service) ActivateManual(ctx context.Context, operator *models.Operator, zoneID uuid.UUID, multiplier float64, reason string) (*models.SurgeEvent, error) {
	ctx = wrap.WithAction(wrap.WithZoneID(ctx, zoneID.String()), "manual_surge_activation")
	if operator != nil {
		ctx = wrap.WithOperatorID(ctx, operator.ID)
	}

	settings := s.engine.Settings()

	if !settings.IsGloballyEnabled {
		metrics.ManualOverridesTotal.WithLabelValues("rejected_disabled").Inc()
		return nil, wrap.Error(ctx, types.ErrGloballyDisabled)
	}

	policy := settings.EmergencyOverride
	if !policy.Enabled {
		metrics.ManualOverridesTotal.WithLabelValues("rejected_disabled").Inc()
		return nil, wrap.Error(ctx, types.ErrOverrideDisabled)
	}

	if operator == nil || !policy.IsAuthorized(operator.ID) {
		metrics.ManualOverridesTotal.WithLabelValues("rejected_unauthorized").Inc()
		return nil, wrap.Error(ctx, types.ErrUnauthorizedOverride)
	}

	if multiplier < 1.0 || multiplier > policy.MaxMultiplier {
		metrics.ManualOverridesTotal.WithLabelValues("rejected_cap").Inc()
		return nil, wrap.Error(ctx, types.ErrCapExceeded)
	}

	zone, err := s.zoneRepo.FindByID(ctx, zoneID)
	if err != nil {
		metrics.ManualOverridesTotal.WithLabelValues("rejected_zone").Inc()
		return nil, wrap.Error(ctx, err)
	}
	if !zone.IsActive {
		metrics.ManualOverridesTotal.WithLabelValues("rejected_zone").Inc()
		return nil, wrap.Error(ctx, types.ErrZoneInactive)
	}

	event, err := s.engine.ActivateManual(ctx, zoneID, multiplier, reason)
	if err != nil {
		metrics.ManualOverridesTotal.WithLabelValues("failed").Inc()
		return nil, wrap.Error(ctx, err)
	}

	metrics.ManualOverridesTotal.WithLabelValues("activated").Inc()
	s.logger.Info(wrap.WithEventID(ctx, event.ID.String()), "manual surge activated",
		"multiplier", event.CurrentMultiplier, "reason", reason)
	return event, nil
}

// DeactivateEvent closes an active surge event. Deactivating an event that
// is already closed is a no-op success, so retried requests stay safe.
func (s *Service) DeactivateEvent(ctx context.Context, operator *models.Operator, eventID uuid.UUID) error {
	ctx = wrap.WithAction(wrap.WithEventID(ctx, eventID.String()), "deactivate_surge_event")
	if operator != nil {
		ctx = wrap.WithOperatorID(ctx, operator.ID)
	}

	closed, err := s.engine.Deactivate(ctx, eventID)
	if err == nil && closed {
		s.logger.Info(ctx, "surge event deactivated")
		return nil
	}
	if err != nil && !errors.Is(err, types.ErrEventNotFound) {
		return wrap.Error(ctx, err)
	}

	// Not running in the engine: either already closed or never existed.
	event, repoErr := s.eventRepo.FindByID(ctx, eventID)
	if repoErr != nil {
		return wrap.Error(ctx, types.ErrEventNotFound)
	}
	if event.IsActive {
		// Persisted as active but not in the engine, nothing can drain it.
		return wrap.Error(ctx, types.ErrEventNotFound)
	}
	return nil
}
