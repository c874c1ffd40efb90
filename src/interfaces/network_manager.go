package interfaces

import (
	"context"

	"ir-stock-service/src/models"
)

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for outbound HTTP requests.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// Do executes the request. Any HTTP status is returned as a response;
	// only transport failures produce an error.
	Do(ctx context.Context, req models.MHTTPRequest) (*models.MHTTPResponse, error)

	// -----------------------------------------------------------------------------

	// Get is Do for a GET request with query parameters and headers.
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) (*models.MHTTPResponse, error)
}
