package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/nomadride/surge-engine/internal/engine/ledger"
	"github.com/nomadride/surge-engine/pkg/logger"
)

// ZoneView is the last-committed surge state of one zone, published after
// every tick for non-blocking reads by fare lookups and dashboards.
type ZoneView struct {
	ZoneID      uuid.UUID                  `json:"zone_id"`
	Multiplier  float64                    `json:"multiplier"`
	ActiveEvent *models.SurgeEvent         `json:"active_event,omitempty"`
	Snapshot    models.ZoneMetricsSnapshot `json:"snapshot"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// Lifecycle transitions published to sinks.
const (
	TransitionStarted   = "STARTED"
	TransitionEscalated = "ESCALATED"
	TransitionReleased  = "RELEASED"
	TransitionClosed    = "CLOSED"
)

// TickSink receives committed zone state after each tick and surge event
// lifecycle transitions. Implementations must not block: slow consumers are
// the sink's problem, not the tick loop's.
type TickSink interface {
	PublishTick(ctx context.Context, view ZoneView)
	PublishLifecycle(ctx context.Context, event *models.SurgeEvent, transition string)
}

// zoneConfig is the registry entry the workers evaluate against. The
// control loop never mutates it; only explicit CRUD operations do.
type zoneConfig struct {
	zone  *models.Zone
	rules []*models.SurgeRule
}

// Scheduler drives one independent worker per zone. Zone state is fully
// partitioned; nothing mutable is shared across zone boundaries, so zones
// tick concurrently with no global lock.
type Scheduler struct {
	snapshots *SnapshotStore
	ledger    *ledger.Ledger
	sinks     []TickSink
	log       logger.Logger

	settings atomic.Pointer[models.PricingSettings]

	mu      sync.RWMutex
	configs map[uuid.UUID]*zoneConfig
	workers map[uuid.UUID]*zoneWorker

	// Retrigger cooldowns outlive workers: a zone deactivated and brought
	// back must not forget when each rule last closed an event.
	cooldownMu sync.Mutex
	cooldowns  map[uuid.UUID]map[uuid.UUID]time.Time

	viewMu sync.RWMutex
	views  map[uuid.UUID]ZoneView

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

func New(snapshots *SnapshotStore, led *ledger.Ledger, settings models.PricingSettings, sinks []TickSink, log logger.Logger) *Scheduler {
	s := &Scheduler{
		snapshots: snapshots,
		ledger:    led,
		sinks:     sinks,
		log:       log,
		configs:   make(map[uuid.UUID]*zoneConfig),
		workers:   make(map[uuid.UUID]*zoneWorker),
		cooldowns: make(map[uuid.UUID]map[uuid.UUID]time.Time),
		views:     make(map[uuid.UUID]ZoneView),
	}
	s.settings.Store(&settings)
	return s
}

// Start launches a worker for every registered active zone.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.started = true

	for zoneID := range s.configs {
		s.startWorkerLocked(zoneID)
	}
}

// Stop cancels all workers and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.runCancel()
	s.workers = make(map[uuid.UUID]*zoneWorker)
	s.mu.Unlock()

	s.wg.Wait()
}

// UpsertZone registers or replaces a zone and its rules. A newly active zone
// gets a worker; a deactivated zone's worker is stopped.
func (s *Scheduler) UpsertZone(zone *models.Zone, rules []*models.SurgeRule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[zone.ID] = &zoneConfig{zone: zone, rules: rules}

	w, running := s.workers[zone.ID]
	switch {
	case zone.IsActive && !running && s.started:
		s.startWorkerLocked(zone.ID)
	case !zone.IsActive && running:
		w.stop()
		delete(s.workers, zone.ID)
	case running:
		w.notifyConfigChange()
	}
}

// SetZoneRules replaces the rule set of a registered zone.
func (s *Scheduler) SetZoneRules(zoneID uuid.UUID, rules []*models.SurgeRule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[zoneID]
	if !ok {
		return
	}
	cfg.rules = rules
	if w, running := s.workers[zoneID]; running {
		w.notifyConfigChange()
	}
}

// RemoveZone drops a zone entirely. Callers guarantee the zone has no active
// surge event before removal.
func (s *Scheduler) RemoveZone(zoneID uuid.UUID) {
	s.mu.Lock()
	if w, running := s.workers[zoneID]; running {
		w.stop()
		delete(s.workers, zoneID)
	}
	delete(s.configs, zoneID)
	s.mu.Unlock()

	s.cooldownMu.Lock()
	delete(s.cooldowns, zoneID)
	s.cooldownMu.Unlock()

	s.snapshots.Drop(zoneID)

	s.viewMu.Lock()
	delete(s.views, zoneID)
	s.viewMu.Unlock()
}

// startWorkerLocked launches the worker goroutine; callers hold s.mu.
func (s *Scheduler) startWorkerLocked(zoneID uuid.UUID) {
	cfg, ok := s.configs[zoneID]
	if !ok || !cfg.zone.IsActive {
		return
	}

	w := newZoneWorker(zoneID, s)
	s.workers[zoneID] = w
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.run(s.runCtx)
	}()
}

// Settings returns the current immutable settings snapshot.
func (s *Scheduler) Settings() models.PricingSettings {
	return *s.settings.Load()
}

// UpdateSettings publishes a new settings snapshot and nudges every worker
// so a global disable drains active events within one evaluation interval
// regardless of individual cooldowns.
func (s *Scheduler) UpdateSettings(settings models.PricingSettings) {
	s.settings.Store(&settings)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.workers {
		w.notifyConfigChange()
	}
}

// recordRuleClose remembers when a rule last closed an event in a zone.
func (s *Scheduler) recordRuleClose(zoneID, ruleID uuid.UUID, at time.Time) {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()

	m, ok := s.cooldowns[zoneID]
	if !ok {
		m = make(map[uuid.UUID]time.Time)
		s.cooldowns[zoneID] = m
	}
	m[ruleID] = at
}

// ruleCloseTimes hands a fresh worker its zone's remembered close times.
func (s *Scheduler) ruleCloseTimes(zoneID uuid.UUID) map[uuid.UUID]time.Time {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()

	out := make(map[uuid.UUID]time.Time, len(s.cooldowns[zoneID]))
	for ruleID, at := range s.cooldowns[zoneID] {
		out[ruleID] = at
	}
	return out
}

// zoneSnapshot returns the registry entry for a zone.
func (s *Scheduler) zoneSnapshot(zoneID uuid.UUID) (*models.Zone, []*models.SurgeRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[zoneID]
	if !ok {
		return nil, nil, false
	}
	return cfg.zone, cfg.rules, true
}

// commitView stores the zone's last-committed state and fans it out to the
// sinks. Reads against the view never touch worker state.
func (s *Scheduler) commitView(ctx context.Context, view ZoneView) {
	s.viewMu.Lock()
	s.views[view.ZoneID] = view
	s.viewMu.Unlock()

	for _, sink := range s.sinks {
		sink.PublishTick(ctx, view)
	}
}

func (s *Scheduler) publishLifecycle(ctx context.Context, event *models.SurgeEvent, transition string) {
	for _, sink := range s.sinks {
		sink.PublishLifecycle(ctx, event, transition)
	}
}

// LatestView returns the last-committed state for a zone.
func (s *Scheduler) LatestView(zoneID uuid.UUID) (ZoneView, bool) {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()

	view, ok := s.views[zoneID]
	return view, ok
}

// CurrentMultiplier is the fare-calculation lookup: the zone's committed
// multiplier, 1.0 when the zone has no surge state.
func (s *Scheduler) CurrentMultiplier(zoneID uuid.UUID) float64 {
	view, ok := s.LatestView(zoneID)
	if !ok {
		return 1.0
	}
	return view.Multiplier
}

// ActiveEvents lists the active surge events across all zones (or one zone
// when zoneID is non-nil), read from the committed views.
func (s *Scheduler) ActiveEvents(zoneID *uuid.UUID) []*models.SurgeEvent {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()

	events := make([]*models.SurgeEvent, 0)
	for id, view := range s.views {
		if zoneID != nil && id != *zoneID {
			continue
		}
		if view.ActiveEvent != nil && view.ActiveEvent.IsActive {
			e := *view.ActiveEvent
			events = append(events, &e)
		}
	}
	return events
}

// HasActiveEvent reports whether a zone currently has an active surge event.
func (s *Scheduler) HasActiveEvent(zoneID uuid.UUID) bool {
	view, ok := s.LatestView(zoneID)
	return ok && view.ActiveEvent != nil && view.ActiveEvent.IsActive
}

// ActivateManual routes an operator surge activation to the zone's worker.
// The command is serialized with the worker's ticks: a request arriving
// mid-tick waits for the in-flight tick to complete.
func (s *Scheduler) ActivateManual(ctx context.Context, zoneID uuid.UUID, multiplier float64, reason string) (*models.SurgeEvent, error) {
	s.mu.RLock()
	w, ok := s.workers[zoneID]
	s.mu.RUnlock()
	if !ok {
		return nil, types.ErrZoneInactive
	}

	return w.activateManual(ctx, multiplier, reason)
}

// Deactivate closes the active event with the given ID, returning false when
// no zone currently runs it.
func (s *Scheduler) Deactivate(ctx context.Context, eventID uuid.UUID) (bool, error) {
	s.mu.RLock()
	workers := make([]*zoneWorker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.RUnlock()

	for _, w := range workers {
		view, ok := s.LatestView(w.zoneID)
		if !ok || view.ActiveEvent == nil || view.ActiveEvent.ID != eventID {
			continue
		}
		return w.deactivate(ctx, eventID)
	}
	return false, types.ErrEventNotFound
}
