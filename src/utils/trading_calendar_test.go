package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHolidays = `{
  "2025": ["2025-01-01", "2025-07-04", "2025-12-25"],
  "2026": ["2026-01-01", "2026-01-02", "2026-01-05", "2026-01-06", "2026-01-07", "2026-01-08", "2026-01-09", "2026-01-12", "2026-01-13"]
}`

type fakeExchange struct {
	closed map[string]bool
	open   bool
}

func (f *fakeExchange) IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !f.closed[t.Format(dateLayout)]
}

func (f *fakeExchange) IsOpen(t time.Time) bool { return f.open }

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func testCalendar(t *testing.T, exchange ExchangeCalendar) *MarketCalendar {
	t.Helper()
	set, err := ParseHolidays([]byte(testHolidays))
	require.NoError(t, err)
	return NewMarketCalendarWith(set, exchange, newYork(t), nil)
}

// -----------------------------------------------------------------------------

func TestMarketCalendar_IsTradingDay(t *testing.T) {
	loc := newYork(t)
	cal := testCalendar(t, nil)

	tests := []struct {
		name     string
		date     time.Time
		expected bool
	}{
		{"saturday", time.Date(2025, 3, 15, 12, 0, 0, 0, loc), false},
		{"sunday", time.Date(2025, 3, 16, 12, 0, 0, 0, loc), false},
		{"plain weekday", time.Date(2025, 3, 12, 12, 0, 0, 0, loc), true},
		{"listed holiday", time.Date(2025, 7, 4, 10, 0, 0, 0, loc), false},
		{"christmas", time.Date(2025, 12, 25, 10, 0, 0, 0, loc), false},
		// 2025-07-05 01:00 UTC is still July 4 in New York
		{"holiday in local time", time.Date(2025, 7, 5, 1, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cal.IsTradingDay(tt.date))
		})
	}
}

func TestMarketCalendar_MissingYear(t *testing.T) {
	loc := newYork(t)
	july4 := time.Date(2030, 7, 4, 12, 0, 0, 0, loc)

	t.Run("fails open without exchange calendar", func(t *testing.T) {
		cal := testCalendar(t, nil)
		assert.False(t, cal.IsHoliday(july4))
		assert.True(t, cal.IsTradingDay(july4))
	})

	t.Run("exchange calendar decides", func(t *testing.T) {
		cal := testCalendar(t, &fakeExchange{closed: map[string]bool{"2030-07-04": true}})
		assert.True(t, cal.IsHoliday(july4))
		assert.False(t, cal.IsTradingDay(july4))
		assert.True(t, cal.IsTradingDay(july4.AddDate(0, 0, 1)))
	})
}

func TestMarketCalendar_NextTradingDay(t *testing.T) {
	loc := newYork(t)
	cal := testCalendar(t, nil)

	t.Run("skips weekend", func(t *testing.T) {
		next, err := cal.NextTradingDay(time.Date(2025, 3, 14, 17, 0, 0, 0, loc))
		require.NoError(t, err)
		assert.Equal(t, "2025-03-17", next.Format(dateLayout))
	})

	t.Run("skips holiday", func(t *testing.T) {
		next, err := cal.NextTradingDay(time.Date(2025, 7, 3, 17, 0, 0, 0, loc))
		require.NoError(t, err)
		assert.Equal(t, "2025-07-07", next.Format(dateLayout))
	})

	t.Run("never returns a weekend", func(t *testing.T) {
		start := time.Date(2025, 1, 1, 12, 0, 0, 0, loc)
		for i := 0; i < 364; i++ {
			next, err := cal.NextTradingDay(start.AddDate(0, 0, i))
			require.NoError(t, err)
			assert.True(t, cal.IsWeekday(next))
			assert.False(t, cal.IsHoliday(next))
		}
	})

	t.Run("bounded search", func(t *testing.T) {
		_, err := cal.NextTradingDay(time.Date(2025, 12, 31, 12, 0, 0, 0, loc))
		assert.ErrorIs(t, err, ErrNoTradingDayFound)
	})
}

func TestMarketCalendar_IsMarketOpen(t *testing.T) {
	loc := newYork(t)
	cal := testCalendar(t, nil)

	assert.True(t, cal.IsMarketOpen(time.Date(2025, 3, 12, 9, 30, 0, 0, loc)))
	assert.True(t, cal.IsMarketOpen(time.Date(2025, 3, 12, 15, 59, 0, 0, loc)))
	assert.False(t, cal.IsMarketOpen(time.Date(2025, 3, 12, 16, 0, 0, 0, loc)))
	assert.False(t, cal.IsMarketOpen(time.Date(2025, 3, 12, 9, 29, 0, 0, loc)))
	assert.False(t, cal.IsMarketOpen(time.Date(2025, 7, 4, 11, 0, 0, 0, loc)))

	withExchange := testCalendar(t, &fakeExchange{open: false})
	assert.False(t, withExchange.IsMarketOpen(time.Date(2025, 3, 12, 11, 0, 0, 0, loc)))
}

func TestLoadHolidayCalendar_Cached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holidays.json")
	require.NoError(t, os.WriteFile(path, []byte(testHolidays), 0644))

	first, err := LoadHolidayCalendar(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"2025": []}`), 0644))
	second, err := LoadHolidayCalendar(path)
	require.NoError(t, err)

	assert.Same(t, first, second)
	hit, known := second.lookup(time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC))
	assert.True(t, known)
	assert.True(t, hit)
}

func TestParseHolidays_InvalidDate(t *testing.T) {
	_, err := ParseHolidays([]byte(`{"2025": ["2025-13-01"]}`))
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestEstimateNextRun(t *testing.T) {
	loc := newYork(t)

	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{"later today", time.Date(2025, 3, 12, 10, 0, 0, 0, loc), time.Date(2025, 3, 12, 17, 0, 0, 0, loc)},
		{"already passed", time.Date(2025, 3, 12, 17, 0, 0, 0, loc), time.Date(2025, 3, 13, 17, 0, 0, 0, loc)},
		{"friday evening rolls to monday", time.Date(2025, 3, 14, 18, 0, 0, 0, loc), time.Date(2025, 3, 17, 17, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := EstimateNextRun("0 17 * * 1-5", tt.now, loc)
			require.True(t, ok)
			assert.True(t, tt.expected.Equal(next), "got %s", next)
		})
	}

	_, ok := EstimateNextRun("*/5 * * * *", time.Now(), loc)
	assert.False(t, ok)
}
