package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/jobs"
	"ir-stock-service/src/models"
	"ir-stock-service/src/quote"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "x-api-key"
	dateLayout   = "2006-01-02"
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	now := s.now()

	s.stateMutex.RLock()
	connections := s.connections
	s.stateMutex.RUnlock()

	marketOpen := false
	if s.Calendar != nil {
		marketOpen = s.Calendar.IsMarketOpen(now)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   now.UTC().Format(time.RFC3339),
		"marketOpen":  marketOpen,
		"connections": connections,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getLiveStock(c *gin.Context) {
	symbol := s.symbolParam(c)

	q, err := s.Quotes.GetLiveQuote(c.Request.Context(), symbol)
	if err != nil {
		s.Logger.Error("Live quote for %s failed: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch live stock data"})
		return
	}
	c.JSON(http.StatusOK, q)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStock(c *gin.Context) {
	symbol := s.symbolParam(c)

	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required (YYYY-MM-DD)"})
		return
	}
	day, err := time.ParseInLocation(dateLayout, raw, s.location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	bar, err := s.Quotes.GetDailyBar(c.Request.Context(), symbol, day)
	switch {
	case errors.Is(err, quote.ErrNoDailyData):
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for " + symbol + " on " + raw})
	case err != nil:
		s.Logger.Error("Daily bar for %s on %s failed: %v", symbol, raw, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stock data"})
	default:
		c.JSON(http.StatusOK, bar)
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) triggerEOD(c *gin.Context) {
	if !s.authorized(c.GetHeader(apiKeyHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// DRY_RUN is the default; an explicit dryRun parameter wins
	opts := models.MRunOptions{
		DryRun:    s.Config.Cron.DryRun,
		TestEmail: strings.TrimSpace(c.Query("testEmail")),
	}
	if raw := c.Query("dryRun"); raw != "" {
		dryRun, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dryRun must be true or false"})
			return
		}
		opts.DryRun = dryRun
	}

	// The run outlives a dropped client connection
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.Trigger.TriggerManually(ctx, opts)

	var validation *helpers.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, jobs.ErrJobAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("Manual EOD trigger failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "EOD email job failed"})
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// authorized rejects every request when no key is configured.
func (s *APIServer) authorized(presented string) bool {
	expected := s.Config.Cron.APIKey
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

func (s *APIServer) symbolParam(c *gin.Context) string {
	if sym := strings.TrimSpace(c.Query("symbol")); sym != "" {
		return strings.ToUpper(sym)
	}
	return s.defaultSymbol()
}

func (s *APIServer) location() *time.Location {
	if s.Calendar != nil {
		return s.Calendar.Location()
	}
	return time.UTC
}
