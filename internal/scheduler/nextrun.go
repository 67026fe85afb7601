package scheduler

import (
	"time"

	"github.com/quietridge/analystd/internal/calendar"
	"github.com/quietridge/analystd/internal/store"
)

// computeNextRunAt implements spec's per-frequency next_run_at arithmetic.
// stock is the schedule's target stock, consulted only by pre_earnings and
// post_earnings; it may be nil for every other frequency. A nil return means
// the schedule has no next occurrence (the "once" frequency — the caller is
// responsible for also disabling it).
func computeNextRunAt(cal *calendar.Calendar, s store.Schedule, stock *store.Stock, now time.Time) *time.Time {
	hour, minute := parseTimeOfDay(s.TimeOfDay)

	switch s.Frequency {
	case "once":
		return nil

	case "daily":
		next := cal.AtTimeOfDay(now.AddDate(0, 0, 1), hour, minute)
		if s.TradingDaysOnly {
			for !cal.IsTradingDay(next) {
				next = next.AddDate(0, 0, 1)
			}
		}
		return &next

	case "weekly":
		dow := 0
		if s.DayOfWeek != nil {
			dow = *s.DayOfWeek
		}
		next := nextWeekday(cal, now, time.Weekday(dow), hour, minute)
		return &next

	case "interval":
		minutes := 60
		if s.IntervalMinutes != nil {
			minutes = *s.IntervalMinutes
		}
		next := now.Add(time.Duration(minutes) * time.Minute)
		return &next

	case "pre_earnings":
		if stock == nil || stock.NextEarningsDate == nil {
			return nil
		}
		days := 0
		if s.DaysBeforeEarnings != nil {
			days = *s.DaysBeforeEarnings
		}
		e := *stock.NextEarningsDate
		target := time.Date(e.Year(), e.Month(), e.Day()-days, hour, minute, 0, 0, cal.Location())
		if !target.After(now) {
			target = target.AddDate(0, 0, 7)
		}
		return &target

	case "post_earnings":
		if stock == nil || stock.NextEarningsDate == nil {
			return nil
		}
		days := 0
		if s.DaysAfterEarnings != nil {
			days = *s.DaysAfterEarnings
		}
		e := *stock.NextEarningsDate
		target := time.Date(e.Year(), e.Month(), e.Day()+days, hour, minute, 0, 0, cal.Location())
		if !target.After(now) {
			target = target.AddDate(0, 0, 7)
		}
		return &target

	default:
		return nil
	}
}

// nextWeekday returns the next instant, strictly after now, that falls on
// weekday at hour:minute in the calendar's time zone.
func nextWeekday(cal *calendar.Calendar, now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	candidate := cal.AtTimeOfDay(now, hour, minute)
	for candidate.Weekday() != weekday || !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// parseTimeOfDay parses an "HH:MM" schedule column, defaulting to midnight
// when absent or malformed.
func parseTimeOfDay(s *string) (hour, minute int) {
	if s == nil {
		return 0, 0
	}
	t, err := time.Parse("15:04", *s)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}
