package quote

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// ErrNoDailyData is returned when the upstream has no bar for the requested date.
var ErrNoDailyData = errors.New("no daily data for the requested date")

// LiveQuoteService serves short-lived cached quotes and historical daily bars.
type LiveQuoteService struct {
	Provider interfaces.IQuoteProvider
	Client   interfaces.IMarketDataClient
	Cache    *QuoteCache
	Logger   *logger.Logger

	group singleflight.Group
}

// -----------------------------------------------------------------------------

func NewLiveQuoteService(provider interfaces.IQuoteProvider, client interfaces.IMarketDataClient, cache *QuoteCache, log *logger.Logger) *LiveQuoteService {
	return &LiveQuoteService{
		Provider: provider,
		Client:   client,
		Cache:    cache,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

// GetLiveQuote returns a cached quote when fresh, otherwise fetches one without
// the yesterday fallback. Concurrent misses for one symbol share a single fetch.
func (s *LiveQuoteService) GetLiveQuote(ctx context.Context, symbol string) (*models.MQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if q, ok := s.Cache.Get(symbol); ok {
		return q, nil
	}

	v, err, _ := s.group.Do(symbol, func() (interface{}, error) {
		if q, ok := s.Cache.Get(symbol); ok {
			return q, nil
		}
		q, err := s.Provider.GetQuote(ctx, symbol, false)
		if err != nil {
			return nil, err
		}
		s.Cache.Set(symbol, q)
		return q, nil
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("Live quote for %s failed: %v", symbol, err)
		}
		return nil, err
	}
	return v.(*models.MQuote), nil
}

// -----------------------------------------------------------------------------

// GetDailyBar returns the open/close bar for one date.
func (s *LiveQuoteService) GetDailyBar(ctx context.Context, symbol string, day time.Time) (*models.MDailyBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	resp, err := s.Client.GetDailyOpenClose(ctx, symbol, day)
	if err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoDailyData
	}
	if !resp.OK() {
		return nil, helpers.NewUpstreamError(resp.Endpoint, resp.StatusCode, resp.Body)
	}

	return parseDailyBar(symbol, day, resp.Body)
}

// -----------------------------------------------------------------------------

func parseDailyBar(symbol string, day time.Time, body []byte) (*models.MDailyBar, error) {
	doc := gjson.ParseBytes(body)
	status := doc.Get("status").String()
	if status != "" && !strings.EqualFold(status, "OK") {
		return nil, ErrNoDailyData
	}
	if !doc.Get("close").Exists() {
		return nil, ErrNoDailyData
	}

	bar := &models.MDailyBar{
		Status: "OK",
		Symbol: symbol,
		Date:   day.Format("2006-01-02"),
		Open:   doc.Get("open").Float(),
		High:   doc.Get("high").Float(),
		Low:    doc.Get("low").Float(),
		Close:  doc.Get("close").Float(),
		Volume: int64(doc.Get("volume").Float()),
		Source: "massive",
	}
	if from := doc.Get("from").String(); from != "" {
		bar.Date = from
	}
	if v, ok := number(body, "afterHours"); ok {
		bar.AfterHours = ptr(v)
	}
	if v, ok := number(body, "preMarket"); ok {
		bar.PreMarket = ptr(v)
	}
	return bar, nil
}
