package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ir-stock-service/src/data_source/massive"
	"ir-stock-service/src/helpers"
	"ir-stock-service/src/jobs"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
	"ir-stock-service/src/network"
	"ir-stock-service/src/quote"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeQuotes struct {
	mu      sync.Mutex
	quote   *models.MQuote
	err     error
	bar     *models.MDailyBar
	barErr  error
	symbols []string
	days    []time.Time
}

func (f *fakeQuotes) GetLiveQuote(ctx context.Context, symbol string) (*models.MQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbol)
	return f.quote, f.err
}

func (f *fakeQuotes) GetDailyBar(ctx context.Context, symbol string, day time.Time) (*models.MDailyBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbol)
	f.days = append(f.days, day)
	return f.bar, f.barErr
}

type fakeCalendar struct{ open bool }

func (f fakeCalendar) IsTradingDay(time.Time) bool { return true }
func (f fakeCalendar) IsMarketOpen(time.Time) bool { return f.open }
func (f fakeCalendar) Location() *time.Location    { return time.UTC }

type fakeTrigger struct {
	opts   []models.MRunOptions
	result *models.MJobResult
	err    error
}

func (f *fakeTrigger) TriggerManually(ctx context.Context, opts models.MRunOptions) (*models.MJobResult, error) {
	f.opts = append(f.opts, opts)
	return f.result, f.err
}

// -----------------------------------------------------------------------------

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(apiKey string) (*APIServer, *fakeQuotes, *fakeTrigger) {
	cfg := &models.MConfig{
		Host:     "127.0.0.1",
		Port:     0,
		LogLevel: "DEBUG",
		MarketData: models.MMarketDataConfig{
			Symbol:                   "irbt",
			BroadcastIntervalSeconds: 5,
		},
		Cron: models.MCronConfig{APIKey: apiKey},
	}
	quotes := &fakeQuotes{quote: &models.MQuote{Symbol: "IRBT", Price: 3.21, Source: models.SourceSnapshot}}
	trigger := &fakeTrigger{result: &models.MJobResult{RunID: "r1", DryRun: true, Subscribers: 2, StockPrice: 3.21}}

	s := NewAPIServer(cfg, quotes, fakeCalendar{open: true}, trigger, logger.Discard("server-test"))
	s.Clock = func() time.Time { return time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC) }
	return s, quotes, trigger
}

func do(s *APIServer, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// -----------------------------------------------------------------------------
// REST
// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer("")

	w := do(s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2025-03-12T15:00:00Z", body["timestamp"])
	assert.Equal(t, true, body["marketOpen"])
	assert.Equal(t, float64(0), body["connections"])
}

func TestLiveStock(t *testing.T) {
	t.Run("default symbol", func(t *testing.T) {
		s, quotes, _ := newTestServer("")

		w := do(s, http.MethodGet, "/api/live-stock", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3.21, decode(t, w)["price"])
		assert.Equal(t, []string{"IRBT"}, quotes.symbols)
	})

	t.Run("explicit symbol", func(t *testing.T) {
		s, quotes, _ := newTestServer("")

		do(s, http.MethodGet, "/api/live-stock?symbol=aapl", nil)
		assert.Equal(t, []string{"AAPL"}, quotes.symbols)
	})

	t.Run("upstream failure", func(t *testing.T) {
		s, quotes, _ := newTestServer("")
		quotes.err = errors.New("all market data sources unavailable")

		w := do(s, http.MethodGet, "/api/live-stock", nil)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "failed to fetch live stock data", decode(t, w)["error"])
	})
}

func TestLiveStock_DoesNotExposeAPIKey(t *testing.T) {
	const secret = "SUPERSECRETKEY"
	log := logger.Discard("server-test")

	netMgr := network.NewHTTPManager(&models.MNetworkConfig{RequestTimeout: 1}, log)
	source := massive.NewMassiveSource(&models.MMarketDataConfig{
		APIKey:  secret,
		BaseURL: "http://127.0.0.1:1",
		Symbol:  "IRBT",
	}, netMgr, log)
	normalizer := quote.NewNormalizer(source, time.UTC, log)
	live := quote.NewLiveQuoteService(normalizer, source, quote.NewQuoteCache(quote.DefaultCacheTTL, time.Now), log)

	_, err := live.GetLiveQuote(context.Background(), "IRBT")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), secret)

	s, _, _ := newTestServer("")
	s.Quotes = live

	w := do(s, http.MethodGet, "/api/live-stock", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), secret)
}

func TestStock(t *testing.T) {
	tests := []struct {
		name   string
		target string
		barErr error
		status int
	}{
		{"missing date", "/api/stock", nil, http.StatusBadRequest},
		{"malformed date", "/api/stock?date=12/03/2025", nil, http.StatusBadRequest},
		{"no data", "/api/stock?date=2025-03-15", quote.ErrNoDailyData, http.StatusNotFound},
		{"upstream error", "/api/stock?date=2025-03-12", errors.New("boom"), http.StatusInternalServerError},
		{"ok", "/api/stock?date=2025-03-12&symbol=irbt", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, quotes, _ := newTestServer("")
			quotes.bar = &models.MDailyBar{Symbol: "IRBT", Date: "2025-03-12", Close: 3.21}
			quotes.barErr = tt.barErr

			w := do(s, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, 3.21, decode(t, w)["close"])
				require.Len(t, quotes.days, 1)
				assert.Equal(t, "2025-03-12", quotes.days[0].Format(dateLayout))
			}
		})
	}
}

func TestTriggerEOD_Auth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		presented  string
		status     int
	}{
		{"no key configured", "", "anything", http.StatusUnauthorized},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"wrong key", "secret", "secreT", http.StatusUnauthorized},
		{"correct key", "secret", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, trigger := newTestServer(tt.configured)
			header := http.Header{}
			if tt.presented != "" {
				header.Set("X-API-Key", tt.presented)
			}

			w := do(s, http.MethodPost, "/api/cron/stock-eod/trigger", header)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Empty(t, trigger.opts)
			}
		})
	}
}

func TestTriggerEOD_Outcomes(t *testing.T) {
	auth := http.Header{}
	auth.Set("X-API-Key", "secret")

	t.Run("DRY_RUN is the default", func(t *testing.T) {
		s, _, trigger := newTestServer("secret")
		s.Config.Cron.DryRun = true

		w := do(s, http.MethodPost, "/api/cron/stock-eod/trigger", auth)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, trigger.opts, 1)
		assert.True(t, trigger.opts[0].DryRun)
	})

	t.Run("explicit dryRun overrides DRY_RUN", func(t *testing.T) {
		s, _, trigger := newTestServer("secret")
		s.Config.Cron.DryRun = true

		w := do(s, http.MethodPost, "/api/cron/stock-eod/trigger?dryRun=false", auth)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, trigger.opts, 1)
		assert.False(t, trigger.opts[0].DryRun)
	})

	t.Run("options are passed through", func(t *testing.T) {
		s, _, trigger := newTestServer("secret")

		w := do(s, http.MethodPost, "/api/cron/stock-eod/trigger?dryRun=true&testEmail=qa@example.com", auth)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []models.MRunOptions{{DryRun: true, TestEmail: "qa@example.com"}}, trigger.opts)
		assert.Equal(t, true, decode(t, w)["dryRun"])
	})

	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{"bad dryRun", "/api/cron/stock-eod/trigger?dryRun=maybe", nil, http.StatusBadRequest},
		{"already running", "/api/cron/stock-eod/trigger", jobs.ErrJobAlreadyRunning, http.StatusConflict},
		{"invalid test email", "/api/cron/stock-eod/trigger?testEmail=x", helpers.NewValidationError("invalid test email %q", "x"), http.StatusBadRequest},
		{"job failure", "/api/cron/stock-eod/trigger", errors.New("send campaign: apiKey=SUPERSECRETKEY"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, trigger := newTestServer("secret")
			trigger.err = tt.err
			trigger.result = nil

			w := do(s, http.MethodPost, tt.target, auth)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
			assert.NotContains(t, w.Body.String(), "SUPERSECRETKEY")
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := newTestServer("")
	header := http.Header{}
	header.Set("Origin", "https://investors.example.com")

	w := do(s, http.MethodOptions, "/api/live-stock", header)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://investors.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

// -----------------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------------

func readUpdate(t *testing.T, conn *websocket.Conn) models.MStockUpdateMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.MStockUpdateMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_InitialPushAndBroadcast(t *testing.T) {
	s, _, _ := newTestServer("")
	go s.handleWebsockets()
	defer s.Stop(context.Background())

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/stock"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readUpdate(t, conn)
	assert.Equal(t, models.MessageTypeStockUpdate, initial.Type)
	require.NotNil(t, initial.Data)
	assert.Equal(t, 3.21, initial.Data.Price)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Type: "subscribe", Symbol: "irbt"}))

	s.Broadcast(&models.MQuote{Symbol: "IRBT", Price: 3.3})
	update := readUpdate(t, conn)
	assert.Equal(t, 3.3, update.Data.Price)

	w := do(s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, float64(1), decode(t, w)["connections"])
}

func TestHandleClientMessage(t *testing.T) {
	s, _, _ := newTestServer("")
	client := &Client{hub: s}

	s.HandleClientMessage(client, []byte(`{"type":"subscribe","symbol":" irbt "}`))
	assert.Equal(t, "IRBT", client.Symbol())

	s.HandleClientMessage(client, []byte(`{"type":"unsubscribe","symbol":"AAPL"}`))
	s.HandleClientMessage(client, []byte(`not json`))
	assert.Equal(t, "IRBT", client.Symbol())
}

func TestBroadcastSkipsWhenIdle(t *testing.T) {
	s, quotes, _ := newTestServer("")

	s.broadcastOnce()
	assert.Empty(t, quotes.symbols)
}
