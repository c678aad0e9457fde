package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
)

func TestUpdateZone_DeactivationBlockedByActiveEvent(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	if _, err := h.svc.ActivateManual(ctx, authorizedOperator(), h.zone.ID, 2.0, "x"); err != nil {
		t.Fatalf("activation failed: %v", err)
	}

	deactivated := *h.zone
	deactivated.IsActive = false
	_, err := h.svc.UpdateZone(ctx, &deactivated)
	if !errors.Is(err, types.ErrZoneHasActiveEvent) {
		t.Fatalf("deactivating a surging zone must fail, got %v", err)
	}

	// Renaming without touching IsActive stays allowed.
	renamed := *h.zone
	renamed.Name = "downtown-core"
	if _, err := h.svc.UpdateZone(ctx, &renamed); err != nil {
		t.Fatalf("renaming a surging zone must work: %v", err)
	}
}

func TestDeleteZone_BlockedByActiveEvent(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	event, err := h.svc.ActivateManual(ctx, authorizedOperator(), h.zone.ID, 2.0, "x")
	if err != nil {
		t.Fatalf("activation failed: %v", err)
	}

	if err := h.svc.DeleteZone(ctx, h.zone.ID); !errors.Is(err, types.ErrZoneHasActiveEvent) {
		t.Fatalf("deleting a surging zone must fail, got %v", err)
	}

	if err := h.svc.DeactivateEvent(ctx, authorizedOperator(), event.ID); err != nil {
		t.Fatalf("deactivation failed: %v", err)
	}
	if err := h.svc.DeleteZone(ctx, h.zone.ID); err != nil {
		t.Fatalf("delete after drain must work: %v", err)
	}
	if _, err := h.svc.GetZone(ctx, h.zone.ID); !errors.Is(err, types.ErrZoneNotFound) {
		t.Fatalf("deleted zone must be gone, got %v", err)
	}
}

func TestCreateRule_RegistersWithEngine(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	rule := &models.SurgeRule{
		ZoneID:   h.zone.ID,
		Name:     "rush",
		IsActive: true,
		Conditions: models.TriggerConditions{
			DemandThreshold: 10, SupplyThreshold: 5, DemandSupplyRatio: 2.0,
		},
		Multiplier: models.PricingMultiplier{
			BaseMultiplier: 1.2, MaxMultiplier: 2.0,
			IncrementStep: 0.1, DecrementStep: 0.1,
			EvaluationInterval: time.Minute,
		},
	}

	created, err := h.svc.CreateRule(ctx, rule)
	if err != nil {
		t.Fatalf("create rule failed: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("created rule must have an ID")
	}

	toggled, err := h.svc.SetRuleActive(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if toggled.IsActive {
		t.Fatalf("toggle must flip IsActive")
	}

	if err := h.svc.DeleteRule(ctx, created.ID); err != nil {
		t.Fatalf("delete rule failed: %v", err)
	}
	if _, err := h.svc.GetRule(ctx, created.ID); !errors.Is(err, types.ErrRuleNotFound) {
		t.Fatalf("deleted rule must be gone, got %v", err)
	}
}

func TestCreateRule_UnknownZone(t *testing.T) {
	h := newServiceHarness(t)

	rule := &models.SurgeRule{ZoneID: uuid.New(), Name: "orphan", IsActive: true}
	if _, err := h.svc.CreateRule(context.Background(), rule); !errors.Is(err, types.ErrZoneNotFound) {
		t.Fatalf("a rule for an unknown zone must fail, got %v", err)
	}
}

func TestUpdateSettings_BumpsVersionAndAppliesLive(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	before := h.svc.Settings(ctx)

	next := before
	next.MaxGlobalMultiplier = 2.2
	next.EmergencyOverride.MaxMultiplier = 2.2
	saved, err := h.svc.UpdateSettings(ctx, next)
	if err != nil {
		t.Fatalf("update settings failed: %v", err)
	}

	if saved.Version != before.Version+1 {
		t.Fatalf("version must bump: %d -> %d", before.Version, saved.Version)
	}
	if h.engine.Settings().MaxGlobalMultiplier != 2.2 {
		t.Fatalf("engine must pick up the new settings immediately")
	}
	if len(h.settings.saved) != 1 {
		t.Fatalf("settings must be persisted, got %d rows", len(h.settings.saved))
	}

	// The tightened override cap binds the next request.
	_, err = h.svc.ActivateManual(ctx, authorizedOperator(), h.zone.ID, 2.5, "x")
	if !errors.Is(err, types.ErrCapExceeded) {
		t.Fatalf("new cap must bind immediately, got %v", err)
	}
}

func TestBootstrap_ClosesDanglingEventsAndLoadsZones(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	// A row left active by a crashed run, unknown to the fresh engine.
	dangling := &models.SurgeEvent{
		ID:        uuid.New(),
		ZoneID:    h.zone.ID,
		RuleID:    types.RuleManual,
		Source:    types.SourceManual,
		IsActive:  true,
		StartedAt: time.Now().Add(-time.Hour),
	}
	h.events.events[dangling.ID] = dangling

	if err := h.svc.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if h.events.events[dangling.ID].IsActive {
		t.Fatalf("bootstrap must close events left active by a previous run")
	}
}

func TestAnalytics_RejectsInvertedRange(t *testing.T) {
	h := newServiceHarness(t)

	now := time.Now()
	if _, err := h.svc.Analytics(context.Background(), now, now.Add(-time.Hour), nil); err == nil {
		t.Fatalf("an inverted time range must be rejected")
	}

	report, err := h.svc.Analytics(context.Background(), now.Add(-time.Hour), now, nil)
	if err != nil {
		t.Fatalf("analytics failed: %v", err)
	}
	if report == nil {
		t.Fatalf("expected a report")
	}
}

func TestZoneStatus_NeutralWithoutTicks(t *testing.T) {
	h := newServiceHarness(t)

	view, err := h.svc.ZoneStatus(context.Background(), h.zone.ID)
	if err != nil {
		t.Fatalf("zone status failed: %v", err)
	}
	if view.Multiplier != 1.0 {
		t.Fatalf("a zone with no committed ticks must read 1.0, got %.2f", view.Multiplier)
	}

	m, err := h.svc.CurrentMultiplier(context.Background(), h.zone.ID)
	if err != nil || m != 1.0 {
		t.Fatalf("current multiplier must default to 1.0: m=%.2f err=%v", m, err)
	}
}
