package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/nomadride/surge-engine/internal/engine/ledger"
	"github.com/nomadride/surge-engine/pkg/logger"
)

type memEventRepo struct {
	events map[uuid.UUID]*models.SurgeEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[uuid.UUID]*models.SurgeEvent)}
}

func (r *memEventRepo) Create(ctx context.Context, event *models.SurgeEvent) (*models.SurgeEvent, error) {
	e := *event
	r.events[event.ID] = &e
	return event, nil
}

func (r *memEventRepo) Update(ctx context.Context, event *models.SurgeEvent) error {
	e := *event
	r.events[event.ID] = &e
	return nil
}

func (r *memEventRepo) active() []*models.SurgeEvent {
	out := make([]*models.SurgeEvent, 0)
	for _, e := range r.events {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out
}

type recordingSink struct {
	ticks       []ZoneView
	transitions []string
}

func (s *recordingSink) PublishTick(ctx context.Context, view ZoneView) {
	s.ticks = append(s.ticks, view)
}

func (s *recordingSink) PublishLifecycle(ctx context.Context, event *models.SurgeEvent, transition string) {
	s.transitions = append(s.transitions, transition)
}

type harness struct {
	sched  *Scheduler
	repo   *memEventRepo
	sink   *recordingSink
	zone   *models.Zone
	rule   *models.SurgeRule
	worker *zoneWorker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := newMemEventRepo()
	sink := &recordingSink{}
	log := logger.InitLogger("scheduler-test", logger.LevelError)

	settings := models.DefaultPricingSettings()
	settings.MaxGlobalMultiplier = 3.0
	settings.DefaultEvaluationInterval = 30 * time.Second
	settings.NotifyMultiplierThreshold = 2.0
	settings.EmergencyOverride.ApprovalRequired = false

	sched := New(NewSnapshotStore(), ledger.New(repo, log), settings, []TickSink{sink}, log)

	zone := &models.Zone{ID: uuid.New(), Name: "downtown", IsActive: true}
	rule := &models.SurgeRule{
		ID:       uuid.New(),
		ZoneID:   zone.ID,
		Name:     "high-demand",
		IsActive: true,
		Priority: 1,
		Conditions: models.TriggerConditions{
			DemandThreshold:   50,
			SupplyThreshold:   10,
			DemandSupplyRatio: 3.0,
		},
		Multiplier: models.PricingMultiplier{
			BaseMultiplier:     1.2,
			MaxMultiplier:      2.5,
			IncrementStep:      0.1,
			DecrementStep:      0.2,
			EvaluationInterval: 30 * time.Second,
		},
		CreatedAt: time.Now(),
	}

	sched.UpsertZone(zone, []*models.SurgeRule{rule})

	w := newZoneWorker(zone.ID, sched)
	w.interval = w.effectiveInterval()

	return &harness{sched: sched, repo: repo, sink: sink, zone: zone, rule: rule, worker: w}
}

func (h *harness) feed(t *testing.T, demand, supply int, at time.Time) {
	t.Helper()
	h.sched.snapshots.Put(models.ZoneMetricsSnapshot{
		ZoneID:        h.zone.ID,
		CapturedAt:    at,
		PendingDemand: demand,
		ActiveSupply:  supply,
	})
}

func TestTick_TriggerThenRampToRuleMax(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	if outcome := h.worker.tick(ctx, now); outcome != types.ShouldTrigger.String() {
		t.Fatalf("expected a trigger tick, got %s", outcome)
	}
	if h.worker.state.ActiveEvent == nil {
		t.Fatalf("trigger must open an event")
	}
	if len(h.repo.active()) != 1 {
		t.Fatalf("expected exactly one persisted active event, got %d", len(h.repo.active()))
	}

	// Conditions keep holding; the multiplier ramps one step per tick and
	// saturates at the rule max without a second event ever opening.
	for i := 0; i < 20; i++ {
		tickAt := now.Add(time.Duration(i+1) * 30 * time.Second)
		h.feed(t, 60, 8, tickAt)
		h.worker.tick(ctx, tickAt)
	}

	if got := h.worker.ctrl.Current(); got < 2.5-1e-9 || got > 2.5+1e-9 {
		t.Fatalf("multiplier must saturate at 2.5, got %.4f", got)
	}
	if len(h.repo.active()) != 1 {
		t.Fatalf("ramp must never open a second event, got %d active", len(h.repo.active()))
	}
	if h.sink.transitions[0] != TransitionStarted {
		t.Fatalf("first transition must be STARTED, got %s", h.sink.transitions[0])
	}
}

func TestTick_ReleaseClosesEventAndStartsCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)
	eventID := h.worker.state.ActiveEvent.ID

	// Demand collapses; with no cooldown the event steps down and closes.
	for i := 0; i < 30 && h.worker.state.ActiveEvent != nil; i++ {
		tickAt := now.Add(time.Duration(i+1) * 30 * time.Second)
		h.feed(t, 2, 40, tickAt)
		h.worker.tick(ctx, tickAt)
	}

	if h.worker.state.ActiveEvent != nil {
		t.Fatalf("release never closed the event")
	}
	closed := h.repo.events[eventID]
	if closed.IsActive || closed.EndedAt == nil {
		t.Fatalf("persisted event must be closed: %+v", closed)
	}
	if _, ok := h.worker.state.LastCloseByRule[h.rule.ID]; !ok {
		t.Fatalf("closing a rule-driven event must start its retrigger cooldown")
	}
	if h.sink.transitions[len(h.sink.transitions)-1] != TransitionClosed {
		t.Fatalf("last transition must be CLOSED, got %v", h.sink.transitions)
	}
}

func TestTick_StaleSnapshotHoldsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)
	before := h.worker.ctrl.Current()

	// Telemetry goes quiet for more than two intervals.
	later := now.Add(5 * time.Minute)
	if outcome := h.worker.tick(ctx, later); outcome != "stale_snapshot" {
		t.Fatalf("expected stale_snapshot, got %s", outcome)
	}
	if h.worker.ctrl.Current() != before {
		t.Fatalf("a skipped tick must hold the previous multiplier")
	}
	if h.worker.state.ActiveEvent == nil {
		t.Fatalf("a skipped tick must not close the event")
	}
}

func TestTick_NoSnapshotAtAllSkips(t *testing.T) {
	h := newHarness(t)

	if outcome := h.worker.tick(context.Background(), time.Now()); outcome != "stale_snapshot" {
		t.Fatalf("a zone that never reported telemetry must skip, got %s", outcome)
	}
}

func TestTick_MaxDurationForcesRelease(t *testing.T) {
	h := newHarness(t)
	maxDur := 10 * time.Minute
	h.rule.MaxDuration = &maxDur

	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)

	// Conditions still fire, but the event has outlived its cap.
	expired := now.Add(11 * time.Minute)
	h.feed(t, 60, 8, expired)
	if outcome := h.worker.tick(ctx, expired); outcome != types.ShouldRelease.String() {
		t.Fatalf("max duration must force a release, got %s", outcome)
	}
}

func TestTick_DisablingDrivingRuleReleasesEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)
	eventID := h.worker.state.ActiveEvent.ID

	// An operator disables the rule mid-event. Edits install fresh rule
	// objects, so the worker must pick the change up by ID, not by pointer.
	disabled := *h.rule
	disabled.IsActive = false
	h.sched.SetZoneRules(h.zone.ID, []*models.SurgeRule{&disabled})

	// Demand is still firing; the disabled rule must release regardless.
	tickAt := now.Add(30 * time.Second)
	h.feed(t, 60, 8, tickAt)
	if outcome := h.worker.tick(ctx, tickAt); outcome != types.ShouldRelease.String() {
		t.Fatalf("disabling the driving rule must release, got %s", outcome)
	}

	for i := 2; i <= 10 && h.worker.state.ActiveEvent != nil; i++ {
		tickAt = now.Add(time.Duration(i) * 30 * time.Second)
		h.feed(t, 60, 8, tickAt)
		h.worker.tick(ctx, tickAt)
	}
	if h.worker.state.ActiveEvent != nil {
		t.Fatalf("the release never closed the event")
	}
	if h.repo.events[eventID].IsActive {
		t.Fatalf("the persisted event must be closed")
	}
}

func TestTick_DeletingDrivingRuleReleasesEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)

	h.sched.SetZoneRules(h.zone.ID, nil)

	tickAt := now.Add(30 * time.Second)
	h.feed(t, 60, 8, tickAt)
	if outcome := h.worker.tick(ctx, tickAt); outcome != types.ShouldRelease.String() {
		t.Fatalf("deleting the driving rule must release, got %s", outcome)
	}
}

func TestTick_RuleEditAppliesMidEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)

	// The rule gains a max duration the event has already outlived; the
	// reconfiguration must bite on the very next tick.
	edited := *h.rule
	maxDur := 5 * time.Minute
	edited.MaxDuration = &maxDur
	h.sched.SetZoneRules(h.zone.ID, []*models.SurgeRule{&edited})

	tickAt := now.Add(6 * time.Minute)
	h.feed(t, 60, 8, tickAt)
	if outcome := h.worker.tick(ctx, tickAt); outcome != types.ShouldRelease.String() {
		t.Fatalf("an edited max duration must apply mid-event, got %s", outcome)
	}
}

func TestRetriggerCooldown_SurvivesWorkerReplacement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cooldown := 10 * time.Minute
	h.rule.CooldownPeriod = &cooldown

	now := time.Now()
	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)
	eventID := h.worker.state.ActiveEvent.ID

	if _, err := h.worker.applyDeactivate(ctx, eventID); err != nil {
		t.Fatalf("deactivation failed: %v", err)
	}

	// The zone is bounced: a fresh worker must inherit the close time
	// instead of letting the rule refire immediately.
	replacement := newZoneWorker(h.zone.ID, h.sched)
	replacement.interval = replacement.effectiveInterval()
	if _, ok := replacement.state.LastCloseByRule[h.rule.ID]; !ok {
		t.Fatalf("a replacement worker must inherit the rule close times")
	}

	inside := time.Now().Add(30 * time.Second)
	h.feed(t, 60, 8, inside)
	if outcome := replacement.tick(ctx, inside); outcome != types.NoAction.String() {
		t.Fatalf("the cooldown must hold across a worker restart, got %s", outcome)
	}

	after := time.Now().Add(cooldown + time.Minute)
	h.feed(t, 60, 8, after)
	if outcome := replacement.tick(ctx, after); outcome != types.ShouldTrigger.String() {
		t.Fatalf("an expired cooldown must allow a new trigger, got %s", outcome)
	}
}

func TestApplyManual_ReplacesAutomaticEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)
	autoID := h.worker.state.ActiveEvent.ID

	event, err := h.worker.applyManual(ctx, 2.4, "concert venue")
	if err != nil {
		t.Fatalf("manual activation failed: %v", err)
	}

	if !event.IsManual() {
		t.Fatalf("activated event must be manual: %+v", event)
	}
	if event.CurrentMultiplier != 2.4 {
		t.Fatalf("manual multiplier must stick exactly, got %.2f", event.CurrentMultiplier)
	}
	if old := h.repo.events[autoID]; old.IsActive {
		t.Fatalf("the automatic event must be closed when replaced")
	}
	if len(h.repo.active()) != 1 {
		t.Fatalf("at most one active event per zone, got %d", len(h.repo.active()))
	}

	// Rules stay suspended while the manual event runs.
	tickAt := now.Add(30 * time.Second)
	h.feed(t, 60, 8, tickAt)
	if outcome := h.worker.tick(ctx, tickAt); outcome != "manual_hold" {
		t.Fatalf("manual event must bypass evaluation, got %s", outcome)
	}
	if h.worker.ctrl.Current() != 2.4 {
		t.Fatalf("automatic ticks must not move a manual multiplier, got %.2f", h.worker.ctrl.Current())
	}
}

func TestApplyManual_ClampsToGlobalCap(t *testing.T) {
	h := newHarness(t)

	event, err := h.worker.applyManual(context.Background(), 4.5, "flood")
	if err != nil {
		t.Fatalf("manual activation failed: %v", err)
	}
	if event.CurrentMultiplier != 3.0 {
		t.Fatalf("manual multiplier must clamp to the global cap, got %.2f", event.CurrentMultiplier)
	}
}

func TestApplyDeactivate_ClosesOnlyMatchingEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	event, _ := h.worker.applyManual(ctx, 2.0, "test")

	closed, err := h.worker.applyDeactivate(ctx, uuid.New())
	if err != nil || closed {
		t.Fatalf("a foreign event ID must not close anything: closed=%v err=%v", closed, err)
	}

	closed, err = h.worker.applyDeactivate(ctx, event.ID)
	if err != nil || !closed {
		t.Fatalf("deactivation must close the active event: closed=%v err=%v", closed, err)
	}
	if h.worker.ctrl.Current() != 1.0 {
		t.Fatalf("deactivation must reset the multiplier to 1.0, got %.2f", h.worker.ctrl.Current())
	}

	closed, err = h.worker.applyDeactivate(ctx, event.ID)
	if err != nil || closed {
		t.Fatalf("repeating the deactivation must be a no-op: closed=%v err=%v", closed, err)
	}
}

func TestTick_GlobalDisableDrainsActiveEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)
	eventID := h.worker.state.ActiveEvent.ID

	settings := h.sched.Settings()
	settings.IsGloballyEnabled = false
	h.sched.UpdateSettings(settings)

	if outcome := h.worker.tick(ctx, now.Add(30*time.Second)); outcome != "globally_disabled" {
		t.Fatalf("expected globally_disabled, got %s", outcome)
	}
	if h.worker.state.ActiveEvent != nil {
		t.Fatalf("global disable must close the active event")
	}
	if h.repo.events[eventID].IsActive {
		t.Fatalf("the closed event must be persisted as inactive")
	}
	if h.worker.ctrl.Current() != 1.0 {
		t.Fatalf("disabled pricing must read 1.0, got %.2f", h.worker.ctrl.Current())
	}
}

func TestHandleCommand_ConfigChangeDrainsWhenDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)

	settings := h.sched.Settings()
	settings.IsGloballyEnabled = false
	h.sched.UpdateSettings(settings)

	// The nudge drains immediately instead of waiting for the next tick.
	h.worker.handleCommand(ctx, configChangedCmd{})
	if h.worker.state.ActiveEvent != nil {
		t.Fatalf("config-change nudge must drain the event while disabled")
	}
}

func TestSafeTick_PanicIsIsolated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A nil zone config dereference cannot happen through the public API, so
	// force a panic through a poisoned sink instead.
	h.sched.sinks = append(h.sched.sinks, panicSink{})
	h.feed(t, 60, 8, time.Now())

	defer func() {
		if p := recover(); p != nil {
			t.Fatalf("safeTick must swallow the panic, got %v", p)
		}
	}()
	h.worker.safeTick(ctx)
}

type panicSink struct{}

func (panicSink) PublishTick(ctx context.Context, view ZoneView) { panic("sink exploded") }
func (panicSink) PublishLifecycle(ctx context.Context, event *models.SurgeEvent, transition string) {
}

func TestCommitView_FeedsReadSurface(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)

	view, ok := h.sched.LatestView(h.zone.ID)
	if !ok {
		t.Fatalf("committed view must be readable")
	}
	if view.Multiplier != h.worker.ctrl.Current() {
		t.Fatalf("view multiplier out of sync: %.2f vs %.2f", view.Multiplier, h.worker.ctrl.Current())
	}
	if !h.sched.HasActiveEvent(h.zone.ID) {
		t.Fatalf("HasActiveEvent must see the committed event")
	}
	if got := h.sched.CurrentMultiplier(h.zone.ID); got != view.Multiplier {
		t.Fatalf("CurrentMultiplier must read the committed view, got %.2f", got)
	}

	events := h.sched.ActiveEvents(&h.zone.ID)
	if len(events) != 1 {
		t.Fatalf("expected one active event in the view, got %d", len(events))
	}

	// Mutating the returned event must not leak into the committed view.
	events[0].CurrentMultiplier = 99
	again := h.sched.ActiveEvents(&h.zone.ID)
	if again[0].CurrentMultiplier == 99 {
		t.Fatalf("ActiveEvents must return copies")
	}
}

func TestCurrentMultiplier_DefaultsToNeutral(t *testing.T) {
	h := newHarness(t)
	if got := h.sched.CurrentMultiplier(uuid.New()); got != 1.0 {
		t.Fatalf("an unknown zone must read 1.0, got %.2f", got)
	}
}

func TestEffectiveInterval_PrefersDrivingRule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	if got := h.worker.effectiveInterval(); got != 30*time.Second {
		t.Fatalf("idle interval must come from the tightest active rule, got %s", got)
	}

	fast := *h.rule
	fast.ID = uuid.New()
	fast.Multiplier.EvaluationInterval = 10 * time.Second
	h.sched.SetZoneRules(h.zone.ID, []*models.SurgeRule{h.rule, &fast})
	if got := h.worker.effectiveInterval(); got != 10*time.Second {
		t.Fatalf("tightest rule interval must win while idle, got %s", got)
	}

	h.sched.SetZoneRules(h.zone.ID, []*models.SurgeRule{h.rule})
	h.feed(t, 60, 8, now)
	h.worker.tick(ctx, now)
	if got := h.worker.effectiveInterval(); got != h.rule.Multiplier.EvaluationInterval {
		t.Fatalf("driving rule interval must win while active, got %s", got)
	}
}

func TestSnapshotStore_IgnoresOutOfOrderDeliveries(t *testing.T) {
	store := NewSnapshotStore()
	zoneID := uuid.New()
	now := time.Now()

	store.Put(models.ZoneMetricsSnapshot{ZoneID: zoneID, CapturedAt: now, PendingDemand: 10})
	store.Put(models.ZoneMetricsSnapshot{ZoneID: zoneID, CapturedAt: now.Add(-time.Minute), PendingDemand: 99})

	snap, ok := store.Latest(zoneID)
	if !ok || snap.PendingDemand != 10 {
		t.Fatalf("an older delivery must not supersede a newer one: %+v", snap)
	}

	store.Drop(zoneID)
	if _, ok := store.Latest(zoneID); ok {
		t.Fatalf("dropped zones must have no snapshot")
	}
}
