package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
)

type ZoneRepo interface {
	Create(ctx context.Context, zone *models.Zone) (*models.Zone, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Zone, error)
	List(ctx context.Context, filters models.Filters) ([]*models.Zone, models.Metadata, error)
	ListAll(ctx context.Context) ([]*models.Zone, error)
	Update(ctx context.Context, zone *models.Zone) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type RuleRepo interface {
	Create(ctx context.Context, rule *models.SurgeRule) (*models.SurgeRule, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SurgeRule, error)
	ListByZone(ctx context.Context, zoneID uuid.UUID) ([]*models.SurgeRule, error)
	List(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeRule, models.Metadata, error)
	Update(ctx context.Context, rule *models.SurgeRule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type EventRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SurgeEvent, error)
	List(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeEvent, models.Metadata, error)
	CloseDangling(ctx context.Context, now time.Time) (int64, error)
	Analytics(ctx context.Context, from, to time.Time, zoneID *uuid.UUID) (*models.PricingAnalytics, error)
}

type SettingsRepo interface {
	Get(ctx context.Context) (*models.PricingSettings, error)
	Save(ctx context.Context, settings *models.PricingSettings) error
}
