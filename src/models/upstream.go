package models

import (
	"fmt"
	"net/http"
)

// -----------------------------------------------------------------------------
// Outbound HTTP
// -----------------------------------------------------------------------------

type MHTTPRequest struct {
	Method  string
	URL     string
	Params  map[string]string
	Headers map[string]string
	Body    []byte
}

type MHTTPResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *MHTTPResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// -----------------------------------------------------------------------------
// Market data payloads
// -----------------------------------------------------------------------------

// MUpstreamResponse keeps one market-data endpoint's raw answer. A non-2xx status is
// recorded, not raised, so the normalizer can fall back to other endpoints.
type MUpstreamResponse struct {
	Endpoint   string
	StatusCode int
	Body       []byte
	Err        error
}

// OK reports whether the payload is usable.
func (r *MUpstreamResponse) OK() bool {
	return r != nil && r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300 && len(r.Body) > 0
}

// Status renders the outcome for diagnostics.
func (r *MUpstreamResponse) Status() string {
	switch {
	case r == nil:
		return "not requested"
	case r.Err != nil:
		return fmt.Sprintf("error: %v", r.Err)
	case r.StatusCode == 0:
		return "no response"
	default:
		return fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
	}
}
