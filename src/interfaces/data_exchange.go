package interfaces

import (
	"context"

	"ir-stock-service/src/models"
)

// -----------------------------------------------------------------------------
// IDataExchanger shares data with external systems (HTTP + WebSocket push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// Broadcast pushes a quote to every connected listener.
	Broadcast(quote *models.MQuote)

	// -----------------------------------------------------------------------------

	// Start serves until Stop is called.
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// IEODTrigger runs the EOD email job on demand.
// -----------------------------------------------------------------------------

type IEODTrigger interface {
	TriggerManually(ctx context.Context, opts models.MRunOptions) (*models.MJobResult, error)
}
