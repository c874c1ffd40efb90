package massive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
	"ir-stock-service/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc, apiKey string) *MassiveSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.Discard("massive-test")
	netMgr := network.NewHTTPManager(&models.MNetworkConfig{RequestTimeout: 5}, log)
	return NewMassiveSource(&models.MMarketDataConfig{BaseURL: srv.URL, APIKey: apiKey}, netMgr, log)
}

func TestMassiveSource_Endpoints(t *testing.T) {
	var paths []string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	}, "secret")

	ctx := context.Background()
	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	r, err := src.GetSnapshot(ctx, "IRBT")
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, EndpointSnapshot, r.Endpoint)

	_, err = src.GetLastQuote(ctx, "IRBT")
	require.NoError(t, err)
	_, err = src.GetLastTrade(ctx, "IRBT")
	require.NoError(t, err)
	_, err = src.GetDailyOpenClose(ctx, "IRBT", day)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/v2/snapshot/locale/us/markets/stocks/tickers/IRBT",
		"/v3/quotes/IRBT",
		"/v3/trades/IRBT",
		"/v1/open-close/IRBT/2025-03-12",
	}, paths)
}

func TestMassiveSource_StatusIsData(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"status":"NOT_AUTHORIZED"}`))
	}, "secret")

	r, err := src.GetLastQuote(context.Background(), "IRBT")
	require.NoError(t, err)
	assert.False(t, r.OK())
	assert.Equal(t, http.StatusForbidden, r.StatusCode)
	assert.Equal(t, "403 Forbidden", r.Status())
}

func TestMassiveSource_MissingKey(t *testing.T) {
	called := false
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "")

	_, err := src.GetSnapshot(context.Background(), "IRBT")
	assert.True(t, helpers.IsConfigurationError(err))
	assert.False(t, called)
}

func TestMassiveSource_TransportFailureRecorded(t *testing.T) {
	log := logger.Discard("massive-test")
	netMgr := network.NewHTTPManager(&models.MNetworkConfig{RequestTimeout: 1}, log)
	src := NewMassiveSource(&models.MMarketDataConfig{BaseURL: "http://127.0.0.1:1", APIKey: "k"}, netMgr, log)

	r, err := src.GetLastTrade(context.Background(), "IRBT")
	require.NoError(t, err)
	assert.Error(t, r.Err)
	assert.False(t, r.OK())
}
