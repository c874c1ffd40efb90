package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"github.com/scmhub/calendar"
)

// ErrNoTradingDayFound is returned when NextTradingDay exhausts its search window.
var ErrNoTradingDayFound = errors.New("no trading day found within search window")

const (
	maxNextTradingDaySteps = 10
	defaultExchangeMIC     = "xnys"
	dateLayout             = "2006-01-02"
)

// -----------------------------------------------------------------------------
// Holiday file
// -----------------------------------------------------------------------------

// HolidaySet maps a year ("2025") to its market-closed dates.
type HolidaySet struct {
	years map[string]map[string]struct{}
}

var (
	holidayCacheMu sync.Mutex
	holidayCache   = make(map[string]*HolidaySet)
)

// LoadHolidayCalendar reads a {"<year>": ["YYYY-MM-DD", ...]} file. Each path is
// read once per process; later calls return the cached set.
func LoadHolidayCalendar(path string) (*HolidaySet, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}

	holidayCacheMu.Lock()
	defer holidayCacheMu.Unlock()

	if set, ok := holidayCache[key]; ok {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holiday file '%s': %w", path, err)
	}

	set, err := ParseHolidays(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse holiday file '%s': %w", path, err)
	}

	holidayCache[key] = set
	return set, nil
}

// -----------------------------------------------------------------------------

func ParseHolidays(data []byte) (*HolidaySet, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	set := &HolidaySet{years: make(map[string]map[string]struct{}, len(raw))}
	for year, dates := range raw {
		days := make(map[string]struct{}, len(dates))
		for _, d := range dates {
			d = strings.TrimSpace(d)
			if _, err := time.Parse(dateLayout, d); err != nil {
				return nil, fmt.Errorf("year %s: invalid date %q", year, d)
			}
			days[d] = struct{}{}
		}
		set.years[year] = days
	}
	return set, nil
}

// lookup reports (isHoliday, yearKnown).
func (h *HolidaySet) lookup(date time.Time) (bool, bool) {
	if h == nil {
		return false, false
	}
	days, ok := h.years[strconv.Itoa(date.Year())]
	if !ok {
		return false, false
	}
	_, hit := days[date.Format(dateLayout)]
	return hit, true
}

// -----------------------------------------------------------------------------
// MarketCalendar
// -----------------------------------------------------------------------------

// ExchangeCalendar is the subset of scmhub/calendar used as a fallback.
type ExchangeCalendar interface {
	IsBusinessDay(t time.Time) bool
	IsOpen(t time.Time) bool
}

// MarketCalendar answers trading-day questions in the market timezone. The
// holiday file is authoritative; the exchange calendar covers missing years.
type MarketCalendar struct {
	holidays *HolidaySet
	exchange ExchangeCalendar
	loc      *time.Location
	Logger   *logger.Logger

	warnedYears sync.Map
}

// -----------------------------------------------------------------------------

func NewMarketCalendar(cfg *models.MCalendarConfig, log *logger.Logger) (*MarketCalendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone '%s': %w", cfg.Timezone, err)
	}

	holidays, err := LoadHolidayCalendar(cfg.HolidaysFile)
	if err != nil {
		return nil, err
	}

	mic := strings.ToLower(cfg.ExchangeMIC)
	if mic == "" {
		mic = defaultExchangeMIC
	}

	var exchange ExchangeCalendar
	if cal := calendar.GetCalendar(mic); cal != nil {
		exchange = cal
	} else if log != nil {
		log.Warning("No exchange calendar for MIC '%s'; missing holiday years will be treated as open", mic)
	}

	return NewMarketCalendarWith(holidays, exchange, loc, log), nil
}

// -----------------------------------------------------------------------------

// NewMarketCalendarWith builds a calendar from explicit parts. exchange may be nil.
func NewMarketCalendarWith(holidays *HolidaySet, exchange ExchangeCalendar, loc *time.Location, log *logger.Logger) *MarketCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return &MarketCalendar{
		holidays: holidays,
		exchange: exchange,
		loc:      loc,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

func (mc *MarketCalendar) Location() *time.Location {
	return mc.loc
}

// -----------------------------------------------------------------------------

func (mc *MarketCalendar) IsWeekday(date time.Time) bool {
	wd := date.In(mc.loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// -----------------------------------------------------------------------------

// IsHoliday checks the holiday file for date's local calendar day. A year absent
// from the file is decided by the exchange calendar, or treated as open.
func (mc *MarketCalendar) IsHoliday(date time.Time) bool {
	local := date.In(mc.loc)
	if hit, known := mc.holidays.lookup(local); known {
		return hit
	}

	year := local.Year()
	if _, warned := mc.warnedYears.LoadOrStore(year, struct{}{}); !warned && mc.Logger != nil {
		if mc.exchange != nil {
			mc.Logger.Warning("Holiday file has no entry for %d; using the exchange calendar", year)
		} else {
			mc.Logger.Warning("Holiday file has no entry for %d; assuming no holidays", year)
		}
	}

	if mc.exchange == nil {
		return false
	}
	return mc.IsWeekday(local) && !mc.exchange.IsBusinessDay(local)
}

// -----------------------------------------------------------------------------

func (mc *MarketCalendar) IsTradingDay(date time.Time) bool {
	return mc.IsWeekday(date) && !mc.IsHoliday(date)
}

// -----------------------------------------------------------------------------

// NextTradingDay returns the first trading day after date, searching at most
// ten days ahead.
func (mc *MarketCalendar) NextTradingDay(date time.Time) (time.Time, error) {
	d := date.In(mc.loc)
	for i := 0; i < maxNextTradingDaySteps; i++ {
		d = d.AddDate(0, 0, 1)
		if mc.IsTradingDay(d) {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %d days after %s", ErrNoTradingDayFound, maxNextTradingDaySteps, date.In(mc.loc).Format(dateLayout))
}

// -----------------------------------------------------------------------------

// IsMarketOpen checks if the regular session is open at t.
func (mc *MarketCalendar) IsMarketOpen(t time.Time) bool {
	local := t.In(mc.loc)
	if !mc.IsTradingDay(local) {
		return false
	}

	if mc.exchange != nil {
		return mc.exchange.IsOpen(local)
	}

	// 9:30 - 16:00 local time
	hour, minute := local.Hour(), local.Minute()
	return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
}
