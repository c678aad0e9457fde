package pricing

import (
	"context"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
)

// ActiveEvents returns the events currently running in the engine,
// optionally narrowed to one zone. This reads committed in-memory state and
// never touches the database.
func (s *Service) ActiveEvents(ctx context.Context, zoneID *uuid.UUID) []*models.SurgeEvent {
	return s.engine.ActiveEvents(zoneID)
}

// EventHistory pages through persisted surge events, newest first.
func (s *Service) EventHistory(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeEvent, models.Metadata, error) {
	return s.eventRepo.List(ctx, zoneID, filters)
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*models.SurgeEvent, error) {
	return s.eventRepo.FindByID(ctx, id)
}

// ZoneStatus is the live pricing picture for a zone.
func (s *Service) ZoneStatus(ctx context.Context, zoneID uuid.UUID) (*scheduler.ZoneView, error) {
	if _, err := s.zoneRepo.FindByID(ctx, zoneID); err != nil {
		return nil, err
	}

	view, ok := s.engine.LatestView(zoneID)
	if !ok {
		// No tick has committed yet; report the neutral multiplier.
		view = scheduler.ZoneView{ZoneID: zoneID, Multiplier: 1.0}
	}
	return &view, nil
}

// CurrentMultiplier is what the fare calculator applies right now: 1.0
// unless a surge event holds the zone higher.
func (s *Service) CurrentMultiplier(ctx context.Context, zoneID uuid.UUID) (float64, error) {
	if _, err := s.zoneRepo.FindByID(ctx, zoneID); err != nil {
		return 0, types.ErrZoneNotFound
	}
	return s.engine.CurrentMultiplier(zoneID), nil
}
