package quote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// ErrNoPrice is returned when every answering source lacks a usable price.
var ErrNoPrice = errors.New("no price available from market data")

const (
	labelSnapshot      = "snapshot"
	labelQuote         = "quote"
	labelTrade         = "trade"
	labelDaily         = "daily"
	labelPreviousDaily = "daily-previous"

	// Epoch values above this are nanoseconds, below are milliseconds.
	nanosecondThreshold = 1e13
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

type EndpointStatus struct {
	Endpoint string
	Status   string
}

// SourcesUnavailableError lists the outcome of every endpoint when none answered.
type SourcesUnavailableError struct {
	Symbol   string
	Statuses []EndpointStatus
}

func (e *SourcesUnavailableError) Error() string {
	parts := make([]string, 0, len(e.Statuses))
	for _, s := range e.Statuses {
		parts = append(parts, fmt.Sprintf("%s=%s", s.Endpoint, s.Status))
	}
	return fmt.Sprintf("all market data sources unavailable for %s: %s", e.Symbol, strings.Join(parts, "; "))
}

// -----------------------------------------------------------------------------
// Raw inputs
// -----------------------------------------------------------------------------

// RawSources holds the raw payloads the normalizer merges. Any field may be nil.
type RawSources struct {
	Snapshot      *models.MUpstreamResponse
	Quote         *models.MUpstreamResponse
	Trade         *models.MUpstreamResponse
	Daily         *models.MUpstreamResponse
	PreviousDaily *models.MUpstreamResponse
}

// AnyAvailable reports whether at least one payload is usable.
func (r RawSources) AnyAvailable() bool {
	return r.Snapshot.OK() || r.Quote.OK() || r.Trade.OK() || r.Daily.OK() || r.PreviousDaily.OK()
}

// Statuses reports each requested endpoint in a fixed order.
func (r RawSources) Statuses() []EndpointStatus {
	out := []EndpointStatus{
		{labelSnapshot, r.Snapshot.Status()},
		{labelQuote, r.Quote.Status()},
		{labelTrade, r.Trade.Status()},
		{labelDaily, r.Daily.Status()},
	}
	if r.PreviousDaily != nil {
		out = append(out, EndpointStatus{labelPreviousDaily, r.PreviousDaily.Status()})
	}
	return out
}

// -----------------------------------------------------------------------------
// Normalizer
// -----------------------------------------------------------------------------

// Normalizer fetches every market-data endpoint for a symbol and merges the
// answers into one quote.
type Normalizer struct {
	Client   interfaces.IMarketDataClient
	Location *time.Location
	Clock    func() time.Time
	Logger   *logger.Logger
}

func NewNormalizer(client interfaces.IMarketDataClient, loc *time.Location, log *logger.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{
		Client:   client,
		Location: loc,
		Clock:    time.Now,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

// GetQuote fetches and merges. With includeYesterdayFallback the previous
// calendar day's bar stands in for today's when today's is not published yet.
func (n *Normalizer) GetQuote(ctx context.Context, symbol string, includeYesterdayFallback bool) (*models.MQuote, error) {
	now := n.Clock()
	sources, err := n.Fetch(ctx, symbol, now, includeYesterdayFallback)
	if err != nil {
		return nil, err
	}

	if !sources.AnyAvailable() {
		return nil, &SourcesUnavailableError{Symbol: symbol, Statuses: sources.Statuses()}
	}

	q, err := Resolve(symbol, sources, now)
	if err != nil {
		return nil, err
	}

	if n.Logger != nil {
		n.Logger.Debug("Resolved %s price=%.4f source=%s", symbol, q.Price, q.Source)
	}
	return q, nil
}

// -----------------------------------------------------------------------------

// Fetch runs the four requests concurrently. A failing endpoint never cancels
// the others; only a configuration error aborts.
func (n *Normalizer) Fetch(ctx context.Context, symbol string, now time.Time, includeYesterdayFallback bool) (RawSources, error) {
	var sources RawSources
	today := now.In(n.Location)

	var g errgroup.Group
	g.Go(func() error {
		r, err := n.Client.GetSnapshot(ctx, symbol)
		sources.Snapshot = r
		return err
	})
	g.Go(func() error {
		r, err := n.Client.GetLastQuote(ctx, symbol)
		sources.Quote = r
		return err
	})
	g.Go(func() error {
		r, err := n.Client.GetLastTrade(ctx, symbol)
		sources.Trade = r
		return err
	})
	g.Go(func() error {
		r, err := n.Client.GetDailyOpenClose(ctx, symbol, today)
		sources.Daily = r
		return err
	})

	if err := g.Wait(); err != nil {
		return sources, err
	}

	if includeYesterdayFallback && !sources.Daily.OK() {
		r, err := n.Client.GetDailyOpenClose(ctx, symbol, today.AddDate(0, 0, -1))
		if err != nil {
			return sources, err
		}
		if r != nil {
			r.Endpoint = labelPreviousDaily
		}
		sources.PreviousDaily = r
	}

	return sources, nil
}

// -----------------------------------------------------------------------------

// Resolve merges raw payloads into a quote. It is pure: now is used only when
// no upstream timestamp is present.
func Resolve(symbol string, src RawSources, now time.Time) (*models.MQuote, error) {
	snap := payload(src.Snapshot)
	quote := payload(src.Quote)
	trade := payload(src.Trade)
	daily := payload(src.Daily)
	usedPrevious := false
	if daily == nil {
		daily = payload(src.PreviousDaily)
		usedPrevious = daily != nil
	}

	ask, hasAsk := number(quote, "results.0.ask_price", "results.ask_price", "results.P")
	bid, hasBid := number(quote, "results.0.bid_price", "results.bid_price", "results.p")
	tradePrice, hasTrade := number(trade, "results.0.price", "results.price", "results.p")
	tradeSize, hasTradeSize := number(trade, "results.0.size", "results.size", "results.s")

	snapOpen, hasSnapOpen := number(snap, "ticker.day.o")
	snapHigh, hasSnapHigh := number(snap, "ticker.day.h")
	snapLow, hasSnapLow := number(snap, "ticker.day.l")
	snapClose, hasSnapClose := number(snap, "ticker.day.c")
	snapVolume, hasSnapVolume := number(snap, "ticker.day.v")
	prevClose, hasPrevClose := number(snap, "ticker.prevDay.c")

	dailyOpen, hasDailyOpen := number(daily, "open")
	dailyHigh, hasDailyHigh := number(daily, "high")
	dailyLow, hasDailyLow := number(daily, "low")
	dailyClose, hasDailyClose := number(daily, "close")
	dailyVolume, hasDailyVolume := number(daily, "volume")

	price, ok := first(
		candidate{ask, hasAsk},
		candidate{tradePrice, hasTrade},
		candidate{bid, hasBid},
		candidate{snapClose, hasSnapClose},
		lookup(snap, "ticker.min.c"),
		lookup(snap, "ticker.lastTrade.p"),
		candidate{dailyClose, hasDailyClose},
		lookup(daily, "afterHours"),
		candidate{dailyHigh, hasDailyHigh},
		candidate{dailyOpen, hasDailyOpen},
	)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoPrice, symbol)
	}

	q := &models.MQuote{
		Symbol: symbol,
		Price:  round4(price),
	}

	if open, ok := first(
		candidate{snapOpen, hasSnapOpen},
		candidate{dailyOpen, hasDailyOpen},
		candidate{tradePrice, hasTrade},
	); ok {
		q.Open = ptr(round4(open))
	}

	high, _ := first(candidate{snapHigh, hasSnapHigh}, candidate{dailyHigh, hasDailyHigh}, candidate{price, true})
	low, _ := first(candidate{snapLow, hasSnapLow}, candidate{dailyLow, hasDailyLow}, candidate{price, true})
	q.High = round4(high)
	q.Low = round4(low)

	if volume, ok := first(
		candidate{snapVolume, hasSnapVolume},
		candidate{dailyVolume, hasDailyVolume},
		candidate{tradeSize, hasTradeSize},
	); ok {
		q.Volume = int64(math.Round(volume))
	}

	if q.Open != nil {
		change := decimal.NewFromFloat(q.Price).Sub(decimal.NewFromFloat(*q.Open))
		q.Change = change.Round(4).InexactFloat64()
		q.ChangePercent = change.Div(decimal.NewFromFloat(*q.Open)).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
	}

	if hasPrevClose {
		q.PreviousClose = ptr(round4(prevClose))
	} else if usedPrevious && hasDailyClose {
		q.PreviousClose = ptr(round4(dailyClose))
	}

	if quote != nil {
		if hasBid {
			q.BidPrice = ptr(round4(bid))
		}
		if hasAsk {
			q.AskPrice = ptr(round4(ask))
		}
		if hasBid && hasAsk {
			q.Spread = ptr(round4(ask - bid))
		}
	}

	q.LastUpdated = resolveTimestamp(now,
		lookupEpoch(quote, "results.0.sip_timestamp", "results.sip_timestamp", "results.t"),
		lookupEpoch(trade, "results.0.sip_timestamp", "results.0.participant_timestamp", "results.sip_timestamp", "results.participant_timestamp", "results.t"),
		lookupEpoch(snap, "ticker.updated", "ticker.lastTrade.t"),
	)

	switch {
	case hasBid:
		q.Source = models.SourceRealtimeQuote
	case hasTrade:
		q.Source = models.SourceRealtimeTrade
	case hasSnapClose:
		q.Source = models.SourceSnapshot
	default:
		q.Source = models.SourceEndOfDay
	}

	return q, nil
}

// -----------------------------------------------------------------------------
// Field helpers
// -----------------------------------------------------------------------------

type candidate struct {
	value float64
	ok    bool
}

func first(cands ...candidate) (float64, bool) {
	for _, c := range cands {
		if c.ok {
			return c.value, true
		}
	}
	return 0, false
}

func lookup(body []byte, paths ...string) candidate {
	v, ok := number(body, paths...)
	return candidate{v, ok}
}

func payload(r *models.MUpstreamResponse) []byte {
	if !r.OK() {
		return nil
	}
	return r.Body
}

// number returns the first non-zero, finite numeric value among paths.
// Numeric strings are accepted.
func number(body []byte, paths ...string) (float64, bool) {
	if body == nil {
		return 0, false
	}
	for _, p := range paths {
		res := gjson.GetBytes(body, p)
		var v float64
		switch res.Type {
		case gjson.Number:
			v = res.Float()
		case gjson.String:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(res.Str), 64)
			if err != nil {
				continue
			}
			v = parsed
		default:
			continue
		}
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		return v, true
	}
	return 0, false
}

func lookupEpoch(body []byte, paths ...string) int64 {
	if body == nil {
		return 0
	}
	for _, p := range paths {
		res := gjson.GetBytes(body, p)
		if res.Type == gjson.Number && res.Int() > 0 {
			return res.Int()
		}
	}
	return 0
}

// resolveTimestamp takes the first non-zero epoch. Nanosecond values are
// detected by magnitude.
func resolveTimestamp(now time.Time, epochs ...int64) time.Time {
	for _, e := range epochs {
		if e <= 0 {
			continue
		}
		if float64(e) > nanosecondThreshold {
			return time.UnixMilli(e / int64(time.Millisecond)).UTC()
		}
		return time.UnixMilli(e).UTC()
	}
	return now.UTC()
}

func round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}

func ptr(v float64) *float64 {
	return &v
}
