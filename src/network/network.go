package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "ir-stock-service/1.0"
	maxResponseBytes = 10 << 20
)

// HTTPManager performs outbound requests with a shared timeout, user agent and
// rate limit. It does not retry: retries belong to the caller.
type HTTPManager struct {
	Config    *models.MNetworkConfig
	Client    *http.Client
	Logger    *logger.Logger
	limiter   *rate.Limiter
	userAgent string
}

// -----------------------------------------------------------------------------

func NewHTTPManager(cfg *models.MNetworkConfig, log *logger.Logger) *HTTPManager {
	timeout := defaultTimeout
	if cfg != nil && cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}

	userAgent := defaultUserAgent
	if cfg != nil && cfg.UserAgent != "" {
		userAgent = cfg.UserAgent
	}

	nm := &HTTPManager{
		Config:    cfg,
		Client:    &http.Client{Timeout: timeout},
		Logger:    log,
		userAgent: userAgent,
	}

	if cfg != nil && cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		nm.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return nm
}

// -----------------------------------------------------------------------------

// Get performs a GET request.
func (nm *HTTPManager) Get(ctx context.Context, urlStr string, params map[string]string, headers map[string]string) (*models.MHTTPResponse, error) {
	return nm.Do(ctx, models.MHTTPRequest{
		Method:  http.MethodGet,
		URL:     urlStr,
		Params:  params,
		Headers: headers,
	})
}

// -----------------------------------------------------------------------------

// Do executes req and returns the status and body regardless of the status code.
func (nm *HTTPManager) Do(ctx context.Context, req models.MHTTPRequest) (*models.MHTTPResponse, error) {
	reqURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, helpers.NewValidationError("invalid url %q: %v", req.URL, err)
	}

	if len(req.Params) > 0 {
		q := reqURL.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		reqURL.RawQuery = q.Encode()
	}

	if nm.limiter != nil {
		if err := nm.limiter.Wait(ctx); err != nil {
			return nil, helpers.NewNetworkError("rate limiter wait", err)
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, helpers.NewValidationError("build request: %v", err)
	}

	httpReq.Header.Set("User-Agent", nm.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := nm.Client.Do(httpReq)
	if err != nil {
		// *url.Error repeats the full request URL, credentials included
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redact(reqURL)
		}
		return nil, helpers.NewNetworkError(fmt.Sprintf("%s %s", method, redact(reqURL)), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, helpers.NewNetworkError(fmt.Sprintf("read body of %s", redact(reqURL)), err)
	}

	if resp.StatusCode >= 400 && nm.Logger != nil {
		nm.Logger.Debug("%s %s returned %d", method, redact(reqURL), resp.StatusCode)
	}

	return &models.MHTTPResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// -----------------------------------------------------------------------------

// redact strips credentials from URLs before they reach logs or errors.
func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	for _, key := range []string{"apiKey", "apikey", "api_key", "token"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	c.RawQuery = q.Encode()
	c.User = nil
	return c.String()
}
