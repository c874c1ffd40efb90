package interfaces

import (
	"context"

	"ir-stock-service/src/models"
)

// -----------------------------------------------------------------------------
// ICampaignSender drives an email platform's campaign lifecycle.
// -----------------------------------------------------------------------------

type ICampaignSender interface {
	// CreateCampaign returns the new campaign id.
	CreateCampaign(ctx context.Context, req models.MCampaignRequest) (string, error)

	// -----------------------------------------------------------------------------

	SetContent(ctx context.Context, campaignID string, content models.MRenderedEmail) error

	// -----------------------------------------------------------------------------

	// Send delivers the campaign to its audience.
	Send(ctx context.Context, campaignID string) error

	// -----------------------------------------------------------------------------

	// SendTest delivers the campaign only to the given addresses.
	SendTest(ctx context.Context, campaignID string, emails []string) error

	// -----------------------------------------------------------------------------

	ListID() string
}

// -----------------------------------------------------------------------------
// IAdminNotifier alerts an operator about a failed run.
// -----------------------------------------------------------------------------

type IAdminNotifier interface {
	NotifyFailure(ctx context.Context, subject string, body string) error
}
