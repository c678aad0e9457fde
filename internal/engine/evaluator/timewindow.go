package evaluator

import (
	"slices"
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
)

// minuteOfDay converts "HH:MM" to minutes since midnight. Callers validate
// the format at rule-create time; a malformed value here yields -1 and the
// window never matches.
func minuteOfDay(clock string) int {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

// withinRestriction reports whether now falls inside the restriction window.
// Windows that cross midnight (start > end, e.g. 18:00-02:00) wrap: the
// early-morning tail belongs to the day the window started on.
func withinRestriction(tr models.TimeRestriction, now time.Time) bool {
	start := minuteOfDay(tr.StartTime)
	end := minuteOfDay(tr.EndTime)
	if start < 0 || end < 0 {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	day := now.Weekday()

	if start <= end {
		return slices.Contains(tr.DaysOfWeek, day) && minute >= start && minute <= end
	}

	// Wrapping window: either today after start, or the tail of a window
	// that started yesterday.
	if minute >= start {
		return slices.Contains(tr.DaysOfWeek, day)
	}
	if minute <= end {
		yesterday := (day + 6) % 7
		return slices.Contains(tr.DaysOfWeek, yesterday)
	}
	return false
}

// RuleEligibleAt reports whether the rule's time restrictions allow it to
// fire at now. A rule with no restrictions is always eligible.
func RuleEligibleAt(rule *models.SurgeRule, now time.Time) bool {
	if len(rule.TimeRestrictions) == 0 {
		return true
	}
	for _, tr := range rule.TimeRestrictions {
		if withinRestriction(tr, now) {
			return true
		}
	}
	return false
}
