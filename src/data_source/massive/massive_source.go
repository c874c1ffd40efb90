package massive

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
)

const DefaultBaseURL = "https://api.massive.com"

// Endpoint names used in diagnostics.
const (
	EndpointSnapshot  = "snapshot"
	EndpointQuote     = "quote"
	EndpointTrade     = "trade"
	EndpointDaily     = "daily"
	EndpointYesterday = "daily-previous"
)

// MassiveSource is the REST client for the Massive (Polygon-compatible) market data API.
type MassiveSource struct {
	BaseURL string
	APIKey  string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewMassiveSource(cfg *models.MMarketDataConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *MassiveSource {
	baseURL := DefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &MassiveSource{
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// GetSnapshot fetches the ticker snapshot (day, min, lastTrade, prevDay blocks).
func (s *MassiveSource) GetSnapshot(ctx context.Context, symbol string) (*models.MUpstreamResponse, error) {
	path := fmt.Sprintf("/v2/snapshot/locale/us/markets/stocks/tickers/%s", url.PathEscape(symbol))
	return s.fetch(ctx, EndpointSnapshot, path, nil)
}

// -----------------------------------------------------------------------------

// GetLastQuote fetches the most recent NBBO quote.
func (s *MassiveSource) GetLastQuote(ctx context.Context, symbol string) (*models.MUpstreamResponse, error) {
	path := fmt.Sprintf("/v3/quotes/%s", url.PathEscape(symbol))
	return s.fetch(ctx, EndpointQuote, path, map[string]string{
		"order": "desc",
		"limit": "1",
		"sort":  "timestamp",
	})
}

// -----------------------------------------------------------------------------

// GetLastTrade fetches the most recent trade.
func (s *MassiveSource) GetLastTrade(ctx context.Context, symbol string) (*models.MUpstreamResponse, error) {
	path := fmt.Sprintf("/v3/trades/%s", url.PathEscape(symbol))
	return s.fetch(ctx, EndpointTrade, path, map[string]string{
		"order": "desc",
		"limit": "1",
		"sort":  "timestamp",
	})
}

// -----------------------------------------------------------------------------

// GetDailyOpenClose fetches the open/close bar for day's calendar date.
func (s *MassiveSource) GetDailyOpenClose(ctx context.Context, symbol string, day time.Time) (*models.MUpstreamResponse, error) {
	path := fmt.Sprintf("/v1/open-close/%s/%s", url.PathEscape(symbol), day.Format("2006-01-02"))
	return s.fetch(ctx, EndpointDaily, path, map[string]string{"adjusted": "true"})
}

// -----------------------------------------------------------------------------

// fetch returns an error only for a missing credential. Transport failures are
// recorded on the response so one dead endpoint never masks the others.
func (s *MassiveSource) fetch(ctx context.Context, endpoint, path string, params map[string]string) (*models.MUpstreamResponse, error) {
	if s.APIKey == "" {
		return nil, helpers.NewConfigurationError("MASSIVE_API_KEY is not set")
	}

	query := map[string]string{"apiKey": s.APIKey}
	for k, v := range params {
		query[k] = v
	}

	out := &models.MUpstreamResponse{Endpoint: endpoint}
	resp, err := s.Network.Get(ctx, s.BaseURL+path, query, nil)
	if err != nil {
		out.Err = err
		if s.Logger != nil {
			s.Logger.Warning("Massive %s request failed: %v", endpoint, err)
		}
		return out, nil
	}

	out.StatusCode = resp.StatusCode
	out.Body = resp.Body
	if !resp.OK() && s.Logger != nil {
		s.Logger.Warning("Massive %s returned status %d", endpoint, resp.StatusCode)
	}
	return out, nil
}
