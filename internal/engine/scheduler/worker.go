package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/nomadride/surge-engine/internal/engine/controller"
	"github.com/nomadride/surge-engine/internal/engine/evaluator"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
	"github.com/nomadride/surge-engine/pkg/metrics"
)

type command interface{ isCommand() }

type manualActivateCmd struct {
	multiplier float64
	reason     string
	reply      chan manualResult
}

type manualResult struct {
	event *models.SurgeEvent
	err   error
}

type deactivateCmd struct {
	eventID uuid.UUID
	reply   chan deactivateResult
}

type deactivateResult struct {
	closed bool
	err    error
}

type configChangedCmd struct{}

func (manualActivateCmd) isCommand() {}
func (deactivateCmd) isCommand()     {}
func (configChangedCmd) isCommand()  {}

// zoneWorker is the single writer for one zone's surge state. Evaluation
// ticks, manual override commands and ledger writes all run on its goroutine,
// which is what keeps the at-most-one-active-event invariant cheap to hold.
type zoneWorker struct {
	zoneID uuid.UUID
	sched  *Scheduler

	ctrl     *controller.Controller
	state    evaluator.State
	interval time.Duration

	commands chan command
	stopCh   chan struct{}
}

func newZoneWorker(zoneID uuid.UUID, sched *Scheduler) *zoneWorker {
	return &zoneWorker{
		zoneID:   zoneID,
		sched:    sched,
		ctrl:     controller.New(),
		state:    evaluator.State{LastCloseByRule: sched.ruleCloseTimes(zoneID)},
		commands: make(chan command, 8),
		stopCh:   make(chan struct{}),
	}
}

func (w *zoneWorker) stop() {
	close(w.stopCh)
}

// notifyConfigChange nudges the worker to re-read settings and rules. The
// send never blocks; a full queue already has a pending nudge.
func (w *zoneWorker) notifyConfigChange() {
	select {
	case w.commands <- configChangedCmd{}:
	default:
	}
}

func (w *zoneWorker) run(ctx context.Context) {
	w.interval = w.effectiveInterval()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case cmd := <-w.commands:
			w.handleCommand(ctx, cmd)
		case <-ticker.C:
			w.safeTick(ctx)
		}

		// Rule or settings changes can move the cadence.
		if next := w.effectiveInterval(); next != w.interval {
			w.interval = next
			ticker.Reset(next)
		}
	}
}

func (w *zoneWorker) handleCommand(ctx context.Context, cmd command) {
	switch c := cmd.(type) {
	case manualActivateCmd:
		event, err := w.applyManual(ctx, c.multiplier, c.reason)
		c.reply <- manualResult{event: event, err: err}
	case deactivateCmd:
		closed, err := w.applyDeactivate(ctx, c.eventID)
		c.reply <- deactivateResult{closed: closed, err: err}
	case configChangedCmd:
		// A global disable must not wait for the next tick to start draining.
		if !w.sched.Settings().IsGloballyEnabled && w.state.ActiveEvent != nil {
			now := time.Now()
			ctx := wrap.WithAction(wrap.WithZoneID(ctx, w.zoneID.String()), types.ActionGlobalDisable)
			w.closeActiveEvent(ctx, now, "dynamic pricing globally disabled")
			w.commit(ctx, models.ZoneMetricsSnapshot{ZoneID: w.zoneID}, now)
		}
	}
}

// safeTick isolates a panicking tick: it is logged and the zone retries at
// the next tick, other zones never notice.
func (w *zoneWorker) safeTick(ctx context.Context) {
	start := time.Now()
	outcome := "ok"

	defer func() {
		if p := recover(); p != nil {
			metrics.TickPanicsTotal.WithLabelValues(w.zoneID.String()).Inc()
			w.sched.log.Error(
				wrap.WithAction(wrap.WithZoneID(ctx, w.zoneID.String()), types.ActionZoneTickPanic),
				"zone tick panicked",
				errFromPanic(p),
			)
		}

		duration := time.Since(start)
		metrics.RecordEvaluationTick(w.zoneID.String(), outcome, duration)
		if duration > w.interval {
			w.sched.log.Warn(wrap.WithZoneID(ctx, w.zoneID.String()),
				"tick overran evaluation interval, next tick proceeds with latest snapshot",
				"duration", duration, "interval", w.interval)
		}
	}()

	outcome = w.tick(ctx, time.Now())
}

// tick runs one full evaluation cycle for the zone.
func (w *zoneWorker) tick(ctx context.Context, now time.Time) string {
	ctx = wrap.WithAction(wrap.WithZoneID(ctx, w.zoneID.String()), types.ActionZoneTick)
	settings := w.sched.Settings()

	if !settings.IsGloballyEnabled {
		if w.state.ActiveEvent != nil {
			w.closeActiveEvent(ctx, now, "dynamic pricing globally disabled")
			w.commit(ctx, models.ZoneMetricsSnapshot{ZoneID: w.zoneID}, now)
		}
		return "globally_disabled"
	}

	zone, rules, ok := w.sched.zoneSnapshot(w.zoneID)
	if !ok || !zone.IsActive {
		return "zone_inactive"
	}

	snap, haveSnap := w.sched.snapshots.Latest(w.zoneID)
	if !haveSnap || snap.IsStale(now, 2*w.interval) {
		metrics.StaleSnapshotsTotal.WithLabelValues(w.zoneID.String()).Inc()
		w.sched.log.Warn(ctx, "skipping tick, holding previous state",
			"reason", types.ErrStaleSnapshot.Error(), "have_snapshot", haveSnap)
		return "stale_snapshot"
	}

	// Rule edits replace the registry objects wholesale; re-resolve the
	// driving rule by ID so a mid-event disable, delete or reconfiguration
	// takes effect on this tick. A missing rule releases the event.
	if w.state.ActiveRule != nil {
		w.state.ActiveRule = findRuleByID(rules, w.state.ActiveRule.ID)
	}

	// Manual events bypass the evaluator until explicitly deactivated; the
	// ledger still accumulates their tallies.
	if ev := w.state.ActiveEvent; ev != nil && ev.IsManual() {
		if err := w.sched.ledger.RecordTick(ctx, ev, snap, w.ctrl.Current(), now); err != nil {
			w.sched.log.Warn(ctx, "record tick failed", "err", err.Error())
		}
		w.commit(ctx, snap, now)
		return "manual_hold"
	}

	decision := evaluator.Evaluate(zone, snap, rules, w.state, now)

	// The max-duration cap forces a release regardless of evaluator output.
	if ev := w.state.ActiveEvent; ev != nil && w.state.ActiveRule != nil {
		if d := w.state.ActiveRule.MaxDuration; d != nil && ev.Age(now) >= *d {
			decision = evaluator.Decision{
				Action: types.ShouldRelease,
				Rule:   w.state.ActiveRule,
				Reason: "max surge duration reached",
			}
		}
	}

	w.apply(ctx, decision, snap, settings, now)
	w.commit(ctx, snap, now)

	return decision.Action.String()
}

// apply advances the controller and the ledger for one decision.
func (w *zoneWorker) apply(ctx context.Context, decision evaluator.Decision, snap models.ZoneMetricsSnapshot, settings models.PricingSettings, now time.Time) {
	switch decision.Action {
	case types.ShouldTrigger:
		res := w.ctrl.Advance(types.ShouldTrigger, decision.Rule, settings, now)
		event := w.sched.ledger.Open(ctx, w.zoneID, decision.Rule.ID.String(),
			types.SourceRule, decision.Reason, res.Multiplier, snap, now)
		w.state.ActiveEvent = event
		w.state.ActiveRule = decision.Rule
		w.state.ConditionsFalseSince = nil
		metrics.ActiveSurgeEventsGauge.Inc()
		w.sched.publishLifecycle(ctx, copyEvent(event), TransitionStarted)
		w.sched.log.Info(wrap.WithEventID(ctx, event.ID.String()), "surge event started",
			"rule_id", event.RuleID, "multiplier", res.Multiplier, "reason", decision.Reason)

	case types.ShouldEscalate:
		w.state.ConditionsFalseSince = nil
		before := w.ctrl.Current()
		res := w.ctrl.Advance(types.ShouldEscalate, decision.Rule, settings, now)
		if err := w.sched.ledger.RecordTick(ctx, w.state.ActiveEvent, snap, res.Multiplier, now); err != nil {
			w.sched.log.Warn(ctx, "record tick failed", "err", err.Error())
		}
		if res.Multiplier > before && res.Multiplier >= settings.NotifyMultiplierThreshold {
			w.sched.publishLifecycle(ctx, copyEvent(w.state.ActiveEvent), TransitionEscalated)
		}

	case types.ShouldHold:
		if w.state.ConditionsFalseSince == nil {
			t := now
			w.state.ConditionsFalseSince = &t
		}
		if err := w.sched.ledger.RecordTick(ctx, w.state.ActiveEvent, snap, w.ctrl.Current(), now); err != nil {
			w.sched.log.Warn(ctx, "record tick failed", "err", err.Error())
		}

	case types.ShouldRelease:
		res := w.ctrl.Advance(types.ShouldRelease, decision.Rule, settings, now)
		if res.ReleaseComplete {
			w.closeActiveEvent(ctx, now, decision.Reason)
			return
		}
		if err := w.sched.ledger.RecordTick(ctx, w.state.ActiveEvent, snap, res.Multiplier, now); err != nil {
			w.sched.log.Warn(ctx, "record tick failed", "err", err.Error())
		}
		w.sched.publishLifecycle(ctx, copyEvent(w.state.ActiveEvent), TransitionReleased)
	}
}

// closeActiveEvent closes the event, starts the rule's retrigger cooldown
// and resets the controller to idle.
func (w *zoneWorker) closeActiveEvent(ctx context.Context, now time.Time, reason string) {
	event := w.state.ActiveEvent
	if event == nil {
		return
	}

	ctx = wrap.WithEventID(ctx, event.ID.String())
	if err := w.sched.ledger.Close(ctx, event, now); err != nil {
		w.sched.log.Warn(ctx, "close event write failed, in-memory state stays authoritative", "err", err.Error())
	}

	if w.state.ActiveRule != nil {
		w.state.LastCloseByRule[w.state.ActiveRule.ID] = now
		w.sched.recordRuleClose(w.zoneID, w.state.ActiveRule.ID, now)
	}

	metrics.ActiveSurgeEventsGauge.Dec()
	w.sched.publishLifecycle(ctx, copyEvent(event), TransitionClosed)
	w.sched.log.Info(ctx, "surge event closed",
		"reason", reason, "max_multiplier_reached", event.MaxMultiplierReached)

	w.state.ActiveEvent = nil
	w.state.ActiveRule = nil
	w.state.ConditionsFalseSince = nil
	w.ctrl.Reset()
}

// applyManual replaces whatever is active with an operator-controlled event.
func (w *zoneWorker) applyManual(ctx context.Context, multiplier float64, reason string) (*models.SurgeEvent, error) {
	now := time.Now()
	settings := w.sched.Settings()
	ctx = wrap.WithZoneID(ctx, w.zoneID.String())

	if w.state.ActiveEvent != nil {
		w.closeActiveEvent(ctx, now, "replaced by manual override")
	}

	m := w.ctrl.SetManual(multiplier, settings)

	snap, _ := w.sched.snapshots.Latest(w.zoneID)
	event := w.sched.ledger.Open(ctx, w.zoneID, types.RuleManual, types.SourceManual,
		"Manual activation: "+reason, m, snap, now)

	w.state.ActiveEvent = event
	w.state.ActiveRule = nil
	w.state.ConditionsFalseSince = nil
	metrics.ActiveSurgeEventsGauge.Inc()
	w.sched.publishLifecycle(ctx, copyEvent(event), TransitionStarted)
	w.commit(ctx, snap, now)

	return copyEvent(event), nil
}

func (w *zoneWorker) applyDeactivate(ctx context.Context, eventID uuid.UUID) (bool, error) {
	event := w.state.ActiveEvent
	if event == nil || event.ID != eventID {
		return false, nil
	}

	now := time.Now()
	w.closeActiveEvent(wrap.WithZoneID(ctx, w.zoneID.String()), now, "manual deactivation")

	snap, _ := w.sched.snapshots.Latest(w.zoneID)
	w.commit(ctx, snap, now)
	return true, nil
}

// activateManual enqueues the command and waits for the worker to apply it.
func (w *zoneWorker) activateManual(ctx context.Context, multiplier float64, reason string) (*models.SurgeEvent, error) {
	reply := make(chan manualResult, 1)
	select {
	case w.commands <- manualActivateCmd{multiplier: multiplier, reason: reason, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.event, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *zoneWorker) deactivate(ctx context.Context, eventID uuid.UUID) (bool, error) {
	reply := make(chan deactivateResult, 1)
	select {
	case w.commands <- deactivateCmd{eventID: eventID, reply: reply}:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.closed, res.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// commit publishes the committed zone state for non-blocking readers.
func (w *zoneWorker) commit(ctx context.Context, snap models.ZoneMetricsSnapshot, now time.Time) {
	view := ZoneView{
		ZoneID:      w.zoneID,
		Multiplier:  w.ctrl.Current(),
		ActiveEvent: copyEvent(w.state.ActiveEvent),
		Snapshot:    snap,
		UpdatedAt:   now,
	}
	metrics.CurrentMultiplierGauge.WithLabelValues(w.zoneID.String()).Set(view.Multiplier)
	w.sched.commitView(ctx, view)
}

// effectiveInterval picks the tick cadence: the driving rule's interval
// while an event is active, otherwise the tightest active rule, otherwise
// the settings default.
func (w *zoneWorker) effectiveInterval() time.Duration {
	settings := w.sched.Settings()
	fallback := settings.DefaultEvaluationInterval
	if fallback <= 0 {
		fallback = 5 * time.Minute
	}

	if w.state.ActiveRule != nil && w.state.ActiveRule.Multiplier.EvaluationInterval > 0 {
		return w.state.ActiveRule.Multiplier.EvaluationInterval
	}

	_, rules, ok := w.sched.zoneSnapshot(w.zoneID)
	if !ok {
		return fallback
	}

	best := time.Duration(0)
	for _, rule := range rules {
		if !rule.IsActive || rule.Multiplier.EvaluationInterval <= 0 {
			continue
		}
		if best == 0 || rule.Multiplier.EvaluationInterval < best {
			best = rule.Multiplier.EvaluationInterval
		}
	}
	if best > 0 {
		return best
	}
	return fallback
}

func findRuleByID(rules []*models.SurgeRule, id uuid.UUID) *models.SurgeRule {
	for _, rule := range rules {
		if rule.ID == id {
			return rule
		}
	}
	return nil
}

func copyEvent(event *models.SurgeEvent) *models.SurgeEvent {
	if event == nil {
		return nil
	}
	e := *event
	return &e
}

func errFromPanic(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", p)
}
