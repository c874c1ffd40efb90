package interfaces

import (
	"context"
	"time"

	"ir-stock-service/src/models"
)

// -----------------------------------------------------------------------------
// IMarketDataClient fetches raw market-data payloads for one symbol.
// Non-2xx answers are carried in the response, not returned as errors.
// -----------------------------------------------------------------------------

type IMarketDataClient interface {
	GetSnapshot(ctx context.Context, symbol string) (*models.MUpstreamResponse, error)

	// -----------------------------------------------------------------------------

	GetLastQuote(ctx context.Context, symbol string) (*models.MUpstreamResponse, error)

	// -----------------------------------------------------------------------------

	GetLastTrade(ctx context.Context, symbol string) (*models.MUpstreamResponse, error)

	// -----------------------------------------------------------------------------

	// GetDailyOpenClose returns the daily bar for the calendar date of day.
	GetDailyOpenClose(ctx context.Context, symbol string, day time.Time) (*models.MUpstreamResponse, error)
}

// -----------------------------------------------------------------------------
// IQuoteProvider produces a normalized quote.
// -----------------------------------------------------------------------------

type IQuoteProvider interface {
	GetQuote(ctx context.Context, symbol string, includeYesterdayFallback bool) (*models.MQuote, error)
}

// -----------------------------------------------------------------------------
// ILiveQuoteService serves cached live quotes and historical daily bars.
// -----------------------------------------------------------------------------

type ILiveQuoteService interface {
	GetLiveQuote(ctx context.Context, symbol string) (*models.MQuote, error)

	// -----------------------------------------------------------------------------

	GetDailyBar(ctx context.Context, symbol string, day time.Time) (*models.MDailyBar, error)
}
