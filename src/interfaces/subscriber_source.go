package interfaces

import (
	"context"

	"ir-stock-service/src/models"
)

// -----------------------------------------------------------------------------
// ISubscriberSource lists email recipients.
// -----------------------------------------------------------------------------

type ISubscriberSource interface {
	Name() string

	// -----------------------------------------------------------------------------

	FetchSubscribers(ctx context.Context) ([]models.MSubscriber, error)
}
