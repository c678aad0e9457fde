package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
	"github.com/nomadride/surge-engine/pkg/trm"
)

// Service owns zone and rule administration and keeps the running scheduler
// in sync with every configuration change.
type Service struct {
	zoneRepo     ZoneRepo
	ruleRepo     RuleRepo
	eventRepo    EventRepo
	settingsRepo SettingsRepo

	engine *scheduler.Scheduler
	logger logger.Logger
	trm    trm.TxManager
}

func NewService(
	zoneRepo ZoneRepo,
	ruleRepo RuleRepo,
	eventRepo EventRepo,
	settingsRepo SettingsRepo,
	engine *scheduler.Scheduler,
	logger logger.Logger,
	trm trm.TxManager,
) *Service {
	return &Service{
		zoneRepo:     zoneRepo,
		ruleRepo:     ruleRepo,
		eventRepo:    eventRepo,
		settingsRepo: settingsRepo,
		engine:       engine,
		logger:       logger,
		trm:          trm,
	}
}

// Bootstrap loads persisted configuration into the scheduler. Events left
// active by a previous run are closed: their in-memory controller state is
// gone, so pricing restarts from 1.0x.
func (s *Service) Bootstrap(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, "pricing_bootstrap")

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		s.logger.Warn(ctx, "no persisted settings, starting with defaults", "err", err.Error())
	} else {
		s.engine.UpdateSettings(*settings)
	}

	closed, err := s.eventRepo.CloseDangling(ctx, time.Now())
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not close dangling events: %w", err))
	}
	if closed > 0 {
		s.logger.Info(ctx, "closed surge events left active by previous run", "count", closed)
	}

	zones, err := s.zoneRepo.ListAll(ctx)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not load zones: %w", err))
	}

	for _, zone := range zones {
		rules, err := s.ruleRepo.ListByZone(ctx, zone.ID)
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not load rules for zone %s: %w", zone.ID, err))
		}
		s.engine.UpsertZone(zone, rules)
	}

	s.logger.Info(ctx, "pricing engine bootstrapped", "zones", len(zones))
	return nil
}

func (s *Service) CreateZone(ctx context.Context, zone *models.Zone) (*models.Zone, error) {
	ctx = wrap.WithAction(ctx, "create_zone")

	created, err := s.zoneRepo.Create(ctx, zone)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not create zone: %w", err))
	}

	s.engine.UpsertZone(created, nil)
	s.logger.Info(wrap.WithZoneID(ctx, created.ID.String()), "zone created", "name", created.Name)
	return created, nil
}

func (s *Service) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	return s.zoneRepo.FindByID(ctx, id)
}

func (s *Service) ListZones(ctx context.Context, filters models.Filters) ([]*models.Zone, models.Metadata, error) {
	return s.zoneRepo.List(ctx, filters)
}

// UpdateZone applies the change and resyncs the scheduler. Deactivating a
// zone with a running surge event is rejected so the event drains first.
func (s *Service) UpdateZone(ctx context.Context, zone *models.Zone) (*models.Zone, error) {
	ctx = wrap.WithAction(wrap.WithZoneID(ctx, zone.ID.String()), "update_zone")

	var updated *models.Zone

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		current, err := s.zoneRepo.FindByID(ctx, zone.ID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if current.IsActive && !zone.IsActive && s.engine.HasActiveEvent(zone.ID) {
			return wrap.Error(ctx, types.ErrZoneHasActiveEvent)
		}

		zone.CreatedAt = current.CreatedAt
		if err := s.zoneRepo.Update(ctx, zone); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not update zone: %w", err))
		}

		updated = zone
		return nil
	})
	if err != nil {
		return nil, err
	}

	rules, err := s.ruleRepo.ListByZone(ctx, updated.ID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not reload zone rules: %w", err))
	}
	s.engine.UpsertZone(updated, rules)

	return updated, nil
}

func (s *Service) DeleteZone(ctx context.Context, id uuid.UUID) error {
	ctx = wrap.WithAction(wrap.WithZoneID(ctx, id.String()), "delete_zone")

	if s.engine.HasActiveEvent(id) {
		return wrap.Error(ctx, types.ErrZoneHasActiveEvent)
	}

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		if _, err := s.zoneRepo.FindByID(ctx, id); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.zoneRepo.Delete(ctx, id); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not delete zone: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.engine.RemoveZone(id)
	s.logger.Info(ctx, "zone deleted")
	return nil
}

func (s *Service) CreateRule(ctx context.Context, rule *models.SurgeRule) (*models.SurgeRule, error) {
	ctx = wrap.WithAction(wrap.WithZoneID(ctx, rule.ZoneID.String()), "create_surge_rule")

	if _, err := s.zoneRepo.FindByID(ctx, rule.ZoneID); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	created, err := s.ruleRepo.Create(ctx, rule)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not create rule: %w", err))
	}

	if err := s.refreshZoneRules(ctx, created.ZoneID); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "surge rule created", "rule_id", created.ID.String(), "name", created.Name)
	return created, nil
}

func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*models.SurgeRule, error) {
	return s.ruleRepo.FindByID(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeRule, models.Metadata, error) {
	return s.ruleRepo.List(ctx, zoneID, filters)
}

func (s *Service) UpdateRule(ctx context.Context, rule *models.SurgeRule) (*models.SurgeRule, error) {
	ctx = wrap.WithAction(ctx, "update_surge_rule")

	var updated *models.SurgeRule

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		current, err := s.ruleRepo.FindByID(ctx, rule.ID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		rule.ZoneID = current.ZoneID
		rule.CreatedAt = current.CreatedAt
		if err := s.ruleRepo.Update(ctx, rule); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not update rule: %w", err))
		}

		updated = rule
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.refreshZoneRules(ctx, updated.ZoneID); err != nil {
		return nil, err
	}
	return updated, nil
}

// SetRuleActive toggles a rule without touching the rest of its definition.
// Disabling the rule behind a running event does not kill the event: the
// evaluator releases it on the next tick.
func (s *Service) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) (*models.SurgeRule, error) {
	ctx = wrap.WithAction(ctx, "toggle_surge_rule")

	var rule *models.SurgeRule

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		current, err := s.ruleRepo.FindByID(ctx, id)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		current.IsActive = active
		if err := s.ruleRepo.Update(ctx, current); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not toggle rule: %w", err))
		}

		rule = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.refreshZoneRules(ctx, rule.ZoneID); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "delete_surge_rule")

	var zoneID uuid.UUID

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		rule, err := s.ruleRepo.FindByID(ctx, id)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		zoneID = rule.ZoneID
		if err := s.ruleRepo.Delete(ctx, id); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not delete rule: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.refreshZoneRules(ctx, zoneID)
}

func (s *Service) refreshZoneRules(ctx context.Context, zoneID uuid.UUID) error {
	rules, err := s.ruleRepo.ListByZone(ctx, zoneID)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not reload zone rules: %w", err))
	}
	s.engine.SetZoneRules(zoneID, rules)
	return nil
}
