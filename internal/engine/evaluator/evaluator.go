package evaluator

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
)

// State is the per-zone evaluation memory the scheduler carries between
// ticks. It is an input, never mutated here: Evaluate is a pure function.
type State struct {
	ActiveEvent *models.SurgeEvent
	ActiveRule  *models.SurgeRule // rule driving the event; nil for manual events

	// ConditionsFalseSince is the first tick at which the active rule's
	// conditions stopped holding, used for flap damping against the rule's
	// cooldown period. Nil while conditions hold.
	ConditionsFalseSince *time.Time

	// LastCloseByRule maps rule ID to the close time of its last event in
	// this zone, enforcing the retrigger cooldown.
	LastCloseByRule map[uuid.UUID]time.Time
}

// Decision is the evaluator verdict for one zone tick.
type Decision struct {
	Action types.Decision
	Rule   *models.SurgeRule // set on ShouldTrigger and ShouldEscalate
	Reason string
}

// Evaluate decides whether surge should be triggered, escalated, held or
// released for a zone given its latest telemetry snapshot and candidate
// rules. Inactive zones and manually controlled events always yield
// NoAction: manual events bypass automatic evaluation until deactivated.
func Evaluate(zone *models.Zone, snap models.ZoneMetricsSnapshot, rules []*models.SurgeRule, st State, now time.Time) Decision {
	if zone == nil || !zone.IsActive {
		return Decision{Action: types.NoAction}
	}

	if st.ActiveEvent != nil && st.ActiveEvent.IsManual() {
		return Decision{Action: types.NoAction, Reason: "manual override in control"}
	}

	if st.ActiveEvent == nil {
		return evaluateIdle(snap, rules, st, now)
	}
	return evaluateActive(snap, st, now)
}

// evaluateIdle looks for a new trigger in a zone with no active event.
func evaluateIdle(snap models.ZoneMetricsSnapshot, rules []*models.SurgeRule, st State, now time.Time) Decision {
	firing := make([]*models.SurgeRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsActive || !RuleEligibleAt(rule, now) {
			continue
		}
		if inRetriggerCooldown(rule, st, now) {
			continue
		}
		if ConditionsMet(rule, snap) {
			firing = append(firing, rule)
		}
	}

	if len(firing) == 0 {
		return Decision{Action: types.NoAction}
	}

	winner := selectRule(firing)
	return Decision{
		Action: types.ShouldTrigger,
		Rule:   winner,
		Reason: triggerReason(winner, snap),
	}
}

// evaluateActive decides between escalate, hold and release for a zone with
// an active rule-driven event.
func evaluateActive(snap models.ZoneMetricsSnapshot, st State, now time.Time) Decision {
	rule := st.ActiveRule

	// The driving rule was deleted or deactivated out from under the event.
	if rule == nil || !rule.IsActive {
		return Decision{Action: types.ShouldRelease, Reason: "driving rule no longer active"}
	}

	if RuleEligibleAt(rule, now) && ConditionsMet(rule, snap) {
		return Decision{Action: types.ShouldEscalate, Rule: rule}
	}

	// Conditions stopped holding; damp flapping by holding until the rule's
	// cooldown has elapsed since the first condition-false tick.
	if rule.CooldownPeriod != nil && *rule.CooldownPeriod > 0 {
		falseSince := now
		if st.ConditionsFalseSince != nil {
			falseSince = *st.ConditionsFalseSince
		}
		if now.Sub(falseSince) < *rule.CooldownPeriod {
			return Decision{Action: types.ShouldHold, Rule: rule}
		}
	}

	return Decision{Action: types.ShouldRelease, Rule: rule, Reason: "trigger conditions no longer hold"}
}

// ConditionsMet reports whether every configured threshold of the rule is
// satisfied by the snapshot. Unset optional thresholds always pass.
func ConditionsMet(rule *models.SurgeRule, snap models.ZoneMetricsSnapshot) bool {
	c := rule.Conditions

	if snap.PendingDemand < c.DemandThreshold {
		return false
	}
	if snap.ActiveSupply > c.SupplyThreshold {
		return false
	}
	if snap.Ratio() < c.DemandSupplyRatio {
		return false
	}
	if c.WaitTimeThresholdMin != nil && snap.AvgWaitTimeMin < *c.WaitTimeThresholdMin {
		return false
	}
	if c.BookingVolumeThreshold != nil && snap.CompletedRides < *c.BookingVolumeThreshold {
		return false
	}
	return true
}

// inRetriggerCooldown reports whether the rule closed an event recently
// enough that it may not create a new one yet.
func inRetriggerCooldown(rule *models.SurgeRule, st State, now time.Time) bool {
	if rule.CooldownPeriod == nil || *rule.CooldownPeriod <= 0 {
		return false
	}
	closedAt, ok := st.LastCloseByRule[rule.ID]
	if !ok {
		return false
	}
	return now.Sub(closedAt) < *rule.CooldownPeriod
}

// selectRule resolves a conflict between simultaneously firing rules.
// Selection is deterministic and stable across ticks: highest priority wins,
// ties broken by larger base multiplier, then earliest creation, then ID.
func selectRule(firing []*models.SurgeRule) *models.SurgeRule {
	sorted := make([]*models.SurgeRule, len(firing))
	copy(sorted, firing)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Multiplier.BaseMultiplier != b.Multiplier.BaseMultiplier {
			return a.Multiplier.BaseMultiplier > b.Multiplier.BaseMultiplier
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return sorted[0]
}

func triggerReason(rule *models.SurgeRule, snap models.ZoneMetricsSnapshot) string {
	return fmt.Sprintf("rule %q fired: demand=%d supply=%d ratio=%.2f",
		rule.Name, snap.PendingDemand, snap.ActiveSupply, snap.Ratio())
}
