// Package calendar answers two pure, deterministic questions about an
// instant in time: is it a trading day, and is it within trading hours. It
// holds no state beyond a holiday set and a time zone, and performs no I/O.
package calendar

import (
	"fmt"
	"time"
)

// MarketOpen and MarketClose bound the half-open trading-hours interval
// [09:30, 16:00) in the configured trading time zone.
var (
	MarketOpen  = clockTime{hour: 9, minute: 30}
	MarketClose = clockTime{hour: 16, minute: 0}
)

type clockTime struct {
	hour, minute int
}

// Calendar decides trading-day and trading-hours membership for a fixed IANA
// time zone and holiday set.
type Calendar struct {
	loc      *time.Location
	holidays map[string]struct{} // "2026-01-01" style keys, in the calendar's own zone
}

// New builds a Calendar for the given IANA time zone name (e.g.
// "America/New_York") and a set of holiday dates in YYYY-MM-DD form.
func New(timezone string, holidays []string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid trading timezone %q: %w", timezone, err)
	}

	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h] = struct{}{}
	}

	return &Calendar{loc: loc, holidays: set}, nil
}

// Now returns the current wall time in the calendar's trading time zone.
func (c *Calendar) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the calendar's configured trading time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether d is a weekday that is not a configured
// holiday. Only the date portion of d matters; it is evaluated in the
// calendar's time zone regardless of d's own zone.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	local := d.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, isHoliday := c.holidays[dateKey(local)]
	return !isHoliday
}

// IsMarketHours reports whether t falls in the half-open trading-hours
// interval [09:30, 16:00) in the calendar's time zone. It does not consult
// IsTradingDay; callers that need both call both.
func (c *Calendar) IsMarketHours(t time.Time) bool {
	local := t.In(c.loc)
	minutesOfDay := local.Hour()*60 + local.Minute()
	openMinutes := MarketOpen.hour*60 + MarketOpen.minute
	closeMinutes := MarketClose.hour*60 + MarketClose.minute
	return minutesOfDay >= openMinutes && minutesOfDay < closeMinutes
}

// NextTradingDay returns the next trading day strictly after d, at midnight
// in the calendar's time zone.
func (c *Calendar) NextTradingDay(d time.Time) time.Time {
	cursor := startOfDay(d.In(c.loc)).AddDate(0, 0, 1)
	for !c.IsTradingDay(cursor) {
		cursor = cursor.AddDate(0, 0, 1)
	}
	return cursor
}

// AtTimeOfDay returns the instant on d's date, in the calendar's time zone,
// at the given hour:minute. Seconds and below are zeroed.
func (c *Calendar) AtTimeOfDay(d time.Time, hour, minute int) time.Time {
	local := d.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, c.loc)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
