package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/nomadride/surge-engine/internal/engine/ledger"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/pkg/logger"
)

type fakeZoneRepo struct {
	zones map[uuid.UUID]*models.Zone
}

func newFakeZoneRepo() *fakeZoneRepo {
	return &fakeZoneRepo{zones: make(map[uuid.UUID]*models.Zone)}
}

func (f *fakeZoneRepo) Create(ctx context.Context, zone *models.Zone) (*models.Zone, error) {
	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}
	f.zones[zone.ID] = zone
	return zone, nil
}

func (f *fakeZoneRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	zone, ok := f.zones[id]
	if !ok {
		return nil, types.ErrZoneNotFound
	}
	return zone, nil
}

func (f *fakeZoneRepo) List(ctx context.Context, filters models.Filters) ([]*models.Zone, models.Metadata, error) {
	all, _ := f.ListAll(ctx)
	return all, models.Metadata{}, nil
}

func (f *fakeZoneRepo) ListAll(ctx context.Context) ([]*models.Zone, error) {
	out := make([]*models.Zone, 0, len(f.zones))
	for _, z := range f.zones {
		out = append(out, z)
	}
	return out, nil
}

func (f *fakeZoneRepo) Update(ctx context.Context, zone *models.Zone) error {
	if _, ok := f.zones[zone.ID]; !ok {
		return types.ErrZoneNotFound
	}
	f.zones[zone.ID] = zone
	return nil
}

func (f *fakeZoneRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.zones[id]; !ok {
		return types.ErrZoneNotFound
	}
	delete(f.zones, id)
	return nil
}

type fakeRuleRepo struct {
	rules map[uuid.UUID]*models.SurgeRule
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[uuid.UUID]*models.SurgeRule)}
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *models.SurgeRule) (*models.SurgeRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeRuleRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SurgeRule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return nil, types.ErrRuleNotFound
	}
	return rule, nil
}

func (f *fakeRuleRepo) ListByZone(ctx context.Context, zoneID uuid.UUID) ([]*models.SurgeRule, error) {
	out := make([]*models.SurgeRule, 0)
	for _, r := range f.rules {
		if r.ZoneID == zoneID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) List(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeRule, models.Metadata, error) {
	out := make([]*models.SurgeRule, 0, len(f.rules))
	for _, r := range f.rules {
		if zoneID != nil && r.ZoneID != *zoneID {
			continue
		}
		out = append(out, r)
	}
	return out, models.Metadata{}, nil
}

func (f *fakeRuleRepo) Update(ctx context.Context, rule *models.SurgeRule) error {
	if _, ok := f.rules[rule.ID]; !ok {
		return types.ErrRuleNotFound
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeRuleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.rules[id]; !ok {
		return types.ErrRuleNotFound
	}
	delete(f.rules, id)
	return nil
}

// fakeEventStore backs both the ledger and the service-facing event queries.
type fakeEventStore struct {
	events map[uuid.UUID]*models.SurgeEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[uuid.UUID]*models.SurgeEvent)}
}

func (f *fakeEventStore) Create(ctx context.Context, event *models.SurgeEvent) (*models.SurgeEvent, error) {
	e := *event
	f.events[event.ID] = &e
	return event, nil
}

func (f *fakeEventStore) Update(ctx context.Context, event *models.SurgeEvent) error {
	e := *event
	f.events[event.ID] = &e
	return nil
}

func (f *fakeEventStore) FindByID(ctx context.Context, id uuid.UUID) (*models.SurgeEvent, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, types.ErrEventNotFound
	}
	return event, nil
}

func (f *fakeEventStore) List(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeEvent, models.Metadata, error) {
	out := make([]*models.SurgeEvent, 0)
	for _, e := range f.events {
		if zoneID != nil && e.ZoneID != *zoneID {
			continue
		}
		out = append(out, e)
	}
	return out, models.Metadata{}, nil
}

func (f *fakeEventStore) CloseDangling(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, e := range f.events {
		if e.IsActive {
			e.IsActive = false
			e.EndedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeEventStore) Analytics(ctx context.Context, from, to time.Time, zoneID *uuid.UUID) (*models.PricingAnalytics, error) {
	return &models.PricingAnalytics{From: from, To: to}, nil
}

type fakeSettingsRepo struct {
	saved []*models.PricingSettings
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (*models.PricingSettings, error) {
	if len(f.saved) == 0 {
		return nil, types.ErrNotFound
	}
	return f.saved[len(f.saved)-1], nil
}

func (f *fakeSettingsRepo) Save(ctx context.Context, settings *models.PricingSettings) error {
	f.saved = append(f.saved, settings)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type serviceHarness struct {
	svc      *Service
	engine   *scheduler.Scheduler
	zones    *fakeZoneRepo
	rules    *fakeRuleRepo
	events   *fakeEventStore
	settings *fakeSettingsRepo
	zone     *models.Zone
	cancel   context.CancelFunc
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	log := logger.InitLogger("pricing-test", logger.LevelError)
	zones := newFakeZoneRepo()
	rules := newFakeRuleRepo()
	events := newFakeEventStore()
	settingsRepo := &fakeSettingsRepo{}

	cfg := models.DefaultPricingSettings()
	cfg.MaxGlobalMultiplier = 3.0
	cfg.EmergencyOverride = models.EmergencyOverridePolicy{
		Enabled:             true,
		MaxMultiplier:       2.8,
		AuthorizedOperators: []string{"op-1"},
		ApprovalRequired:    true,
	}
	// Keep tickers quiet; these tests drive the engine through commands only.
	cfg.DefaultEvaluationInterval = time.Hour

	engine := scheduler.New(scheduler.NewSnapshotStore(), ledger.New(events, log), cfg, nil, log)

	zone := &models.Zone{ID: uuid.New(), Name: "downtown", IsActive: true}
	zones.zones[zone.ID] = zone
	engine.UpsertZone(zone, nil)

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	t.Cleanup(func() {
		cancel()
		engine.Stop()
	})

	svc := NewService(zones, rules, events, settingsRepo, engine, log, passthroughTx{})

	return &serviceHarness{
		svc: svc, engine: engine,
		zones: zones, rules: rules, events: events, settings: settingsRepo,
		zone: zone, cancel: cancel,
	}
}

func authorizedOperator() *models.Operator {
	return &models.Operator{ID: "op-1", Role: types.RoleOperator}
}

func TestActivateManual_HappyPath(t *testing.T) {
	h := newServiceHarness(t)

	event, err := h.svc.ActivateManual(context.Background(), authorizedOperator(), h.zone.ID, 2.4, "stadium concert")
	if err != nil {
		t.Fatalf("activation failed: %v", err)
	}
	if event.CurrentMultiplier != 2.4 || !event.IsManual() {
		t.Fatalf("unexpected event: %+v", event)
	}
	if !h.engine.HasActiveEvent(h.zone.ID) {
		t.Fatalf("engine must report the active event")
	}
}

func TestActivateManual_RejectsWhenGloballyDisabled(t *testing.T) {
	h := newServiceHarness(t)

	cfg := h.engine.Settings()
	cfg.IsGloballyEnabled = false
	h.engine.UpdateSettings(cfg)

	_, err := h.svc.ActivateManual(context.Background(), authorizedOperator(), h.zone.ID, 1.5, "x")
	if !errors.Is(err, types.ErrGloballyDisabled) {
		t.Fatalf("expected ErrGloballyDisabled, got %v", err)
	}
}

func TestActivateManual_RejectsWhenOverrideDisabled(t *testing.T) {
	h := newServiceHarness(t)

	cfg := h.engine.Settings()
	cfg.EmergencyOverride.Enabled = false
	h.engine.UpdateSettings(cfg)

	_, err := h.svc.ActivateManual(context.Background(), authorizedOperator(), h.zone.ID, 1.5, "x")
	if !errors.Is(err, types.ErrOverrideDisabled) {
		t.Fatalf("expected ErrOverrideDisabled, got %v", err)
	}
}

func TestActivateManual_RejectsUnauthorizedOperator(t *testing.T) {
	h := newServiceHarness(t)

	stranger := &models.Operator{ID: "op-99", Role: types.RoleOperator}
	_, err := h.svc.ActivateManual(context.Background(), stranger, h.zone.ID, 1.5, "x")
	if !errors.Is(err, types.ErrUnauthorizedOverride) {
		t.Fatalf("expected ErrUnauthorizedOverride, got %v", err)
	}

	_, err = h.svc.ActivateManual(context.Background(), nil, h.zone.ID, 1.5, "x")
	if !errors.Is(err, types.ErrUnauthorizedOverride) {
		t.Fatalf("a missing operator must be rejected, got %v", err)
	}
}

func TestActivateManual_RejectsMultiplierOutsidePolicy(t *testing.T) {
	h := newServiceHarness(t)

	_, err := h.svc.ActivateManual(context.Background(), authorizedOperator(), h.zone.ID, 2.9, "x")
	if !errors.Is(err, types.ErrCapExceeded) {
		t.Fatalf("expected ErrCapExceeded above the policy cap, got %v", err)
	}

	_, err = h.svc.ActivateManual(context.Background(), authorizedOperator(), h.zone.ID, 0.8, "x")
	if !errors.Is(err, types.ErrCapExceeded) {
		t.Fatalf("expected ErrCapExceeded below 1.0, got %v", err)
	}
}

func TestActivateManual_RejectsUnknownAndInactiveZones(t *testing.T) {
	h := newServiceHarness(t)

	_, err := h.svc.ActivateManual(context.Background(), authorizedOperator(), uuid.New(), 1.5, "x")
	if !errors.Is(err, types.ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}

	inactive := &models.Zone{ID: uuid.New(), Name: "suburb", IsActive: false}
	h.zones.zones[inactive.ID] = inactive
	_, err = h.svc.ActivateManual(context.Background(), authorizedOperator(), inactive.ID, 1.5, "x")
	if !errors.Is(err, types.ErrZoneInactive) {
		t.Fatalf("expected ErrZoneInactive, got %v", err)
	}
}

func TestDeactivateEvent_IsIdempotent(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	op := authorizedOperator()

	event, err := h.svc.ActivateManual(ctx, op, h.zone.ID, 2.0, "x")
	if err != nil {
		t.Fatalf("activation failed: %v", err)
	}

	if err := h.svc.DeactivateEvent(ctx, op, event.ID); err != nil {
		t.Fatalf("deactivation failed: %v", err)
	}
	if h.engine.HasActiveEvent(h.zone.ID) {
		t.Fatalf("event must be gone from the engine")
	}

	// The repeat hits the repo fallback and still succeeds.
	if err := h.svc.DeactivateEvent(ctx, op, event.ID); err != nil {
		t.Fatalf("repeated deactivation must be a no-op success: %v", err)
	}
}

func TestDeactivateEvent_UnknownEvent(t *testing.T) {
	h := newServiceHarness(t)

	err := h.svc.DeactivateEvent(context.Background(), authorizedOperator(), uuid.New())
	if !errors.Is(err, types.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}
