package interfaces

import "time"

// -----------------------------------------------------------------------------
// IMarketCalendar answers trading-day questions in the market timezone.
// -----------------------------------------------------------------------------

type IMarketCalendar interface {
	IsTradingDay(date time.Time) bool

	// -----------------------------------------------------------------------------

	IsMarketOpen(t time.Time) bool

	// -----------------------------------------------------------------------------

	Location() *time.Location
}
