package evaluator

import (
	"testing"
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
)

// at builds a local timestamp on a known weekday: 2026-03-02 is a Monday.
func at(weekday time.Weekday, hour, minute int) time.Time {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day := (int(weekday) - int(time.Monday) + 7) % 7
	return base.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestRuleEligibleAt_NoRestrictionsAlwaysEligible(t *testing.T) {
	rule := testRule("always", 1)
	if !RuleEligibleAt(rule, at(time.Wednesday, 3, 17)) {
		t.Fatalf("rule without restrictions must always be eligible")
	}
}

func TestRuleEligibleAt_SameDayWindow(t *testing.T) {
	rule := testRule("rush", 1)
	rule.TimeRestrictions = []models.TimeRestriction{{
		DaysOfWeek: []time.Weekday{time.Monday, time.Friday},
		StartTime:  "07:00",
		EndTime:    "09:30",
	}}

	if !RuleEligibleAt(rule, at(time.Monday, 8, 0)) {
		t.Fatalf("Monday 08:00 must be inside the window")
	}
	if RuleEligibleAt(rule, at(time.Monday, 10, 0)) {
		t.Fatalf("Monday 10:00 must be outside the window")
	}
	if RuleEligibleAt(rule, at(time.Tuesday, 8, 0)) {
		t.Fatalf("Tuesday must be outside the window")
	}
}

func TestRuleEligibleAt_MidnightWrappingWindow(t *testing.T) {
	// Weekend nights: Fri, Sat, Sun 18:00 until 02:00 the next morning.
	rule := testRule("weekend-night", 1)
	rule.TimeRestrictions = []models.TimeRestriction{{
		DaysOfWeek: []time.Weekday{time.Friday, time.Saturday, time.Sunday},
		StartTime:  "18:00",
		EndTime:    "02:00",
	}}

	if !RuleEligibleAt(rule, at(time.Saturday, 23, 0)) {
		t.Fatalf("Saturday 23:00 must be eligible")
	}
	// Sunday 01:00 is the tail of the window that started Saturday evening.
	if !RuleEligibleAt(rule, at(time.Sunday, 1, 0)) {
		t.Fatalf("Sunday 01:00 must be eligible as the Saturday tail")
	}
	// Monday 01:00 is the tail of Sunday's window.
	if !RuleEligibleAt(rule, at(time.Monday, 1, 0)) {
		t.Fatalf("Monday 01:00 must be eligible as the Sunday tail")
	}
	if RuleEligibleAt(rule, at(time.Tuesday, 10, 0)) {
		t.Fatalf("Tuesday 10:00 must not be eligible")
	}
	if RuleEligibleAt(rule, at(time.Saturday, 12, 0)) {
		t.Fatalf("Saturday noon is between windows and must not be eligible")
	}
}

func TestRuleEligibleAt_WindowBoundsInclusive(t *testing.T) {
	rule := testRule("bounds", 1)
	rule.TimeRestrictions = []models.TimeRestriction{{
		DaysOfWeek: []time.Weekday{time.Monday},
		StartTime:  "07:00",
		EndTime:    "09:00",
	}}

	if !RuleEligibleAt(rule, at(time.Monday, 7, 0)) {
		t.Fatalf("window start must be inclusive")
	}
	if !RuleEligibleAt(rule, at(time.Monday, 9, 0)) {
		t.Fatalf("window end must be inclusive")
	}
	if RuleEligibleAt(rule, at(time.Monday, 9, 1)) {
		t.Fatalf("one minute past the end must be outside")
	}
}

func TestRuleEligibleAt_MalformedClockNeverMatches(t *testing.T) {
	rule := testRule("broken", 1)
	rule.TimeRestrictions = []models.TimeRestriction{{
		DaysOfWeek: []time.Weekday{time.Monday},
		StartTime:  "7am",
		EndTime:    "09:00",
	}}

	if RuleEligibleAt(rule, at(time.Monday, 8, 0)) {
		t.Fatalf("malformed start time must disable the window")
	}
}

func TestRuleEligibleAt_MultipleWindowsAnyMatch(t *testing.T) {
	rule := testRule("split", 1)
	rule.TimeRestrictions = []models.TimeRestriction{
		{DaysOfWeek: []time.Weekday{time.Monday}, StartTime: "07:00", EndTime: "09:00"},
		{DaysOfWeek: []time.Weekday{time.Monday}, StartTime: "17:00", EndTime: "19:00"},
	}

	if !RuleEligibleAt(rule, at(time.Monday, 18, 0)) {
		t.Fatalf("a rule is eligible when any of its windows matches")
	}
	if RuleEligibleAt(rule, at(time.Monday, 12, 0)) {
		t.Fatalf("noon is between the two windows")
	}
}
