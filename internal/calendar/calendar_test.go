package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, holidays ...string) *Calendar {
	t.Helper()
	c, err := New("America/New_York", holidays)
	require.NoError(t, err)
	return c
}

func TestIsTradingDay_WeekdayNoHoliday(t *testing.T) {
	c := mustNew(t)
	// 2026-07-30 is a Thursday.
	d := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	require.True(t, c.IsTradingDay(d))
}

func TestIsTradingDay_Weekend(t *testing.T) {
	c := mustNew(t)
	// 2026-08-01 is a Saturday, 2026-08-02 a Sunday.
	require.False(t, c.IsTradingDay(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)))
	require.False(t, c.IsTradingDay(time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)))
}

func TestIsTradingDay_ConfiguredHoliday(t *testing.T) {
	c := mustNew(t, "2026-01-01")
	d := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.False(t, c.IsTradingDay(d))
}

func TestIsMarketHours_HalfOpenBoundary(t *testing.T) {
	c := mustNew(t)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	atOpen := time.Date(2026, 7, 30, 9, 30, 0, 0, loc)
	require.True(t, c.IsMarketHours(atOpen))

	justBeforeClose := time.Date(2026, 7, 30, 15, 59, 0, 0, loc)
	require.True(t, c.IsMarketHours(justBeforeClose))

	atClose := time.Date(2026, 7, 30, 16, 0, 0, 0, loc)
	require.False(t, c.IsMarketHours(atClose))

	beforeOpen := time.Date(2026, 7, 30, 9, 29, 59, 0, loc)
	require.False(t, c.IsMarketHours(beforeOpen))
}

func TestNextTradingDay_SkipsWeekend(t *testing.T) {
	c := mustNew(t)
	// Friday 2026-07-31 -> next trading day should be Monday 2026-08-03.
	friday := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := c.NextTradingDay(friday)
	require.Equal(t, time.Monday, next.Weekday())
	require.Equal(t, 2026, next.Year())
	require.Equal(t, time.August, next.Month())
	require.Equal(t, 3, next.Day())
}

func TestNextTradingDay_SkipsHoliday(t *testing.T) {
	c := mustNew(t, "2026-08-03")
	friday := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := c.NextTradingDay(friday)
	require.Equal(t, 4, next.Day())
}

func TestAtTimeOfDay_PreservesCalendarDate(t *testing.T) {
	c := mustNew(t)
	d := time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC)
	at := c.AtTimeOfDay(d, 9, 30)
	require.Equal(t, 9, at.Hour())
	require.Equal(t, 30, at.Minute())
	require.Equal(t, d.In(c.Location()).Day(), at.Day())
}

func TestNew_RejectsInvalidTimezone(t *testing.T) {
	_, err := New("Not/A_Zone", nil)
	require.Error(t, err)
}
