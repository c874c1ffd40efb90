package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"ir-stock-service/src/email"
	"ir-stock-service/src/helpers"
	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
	"ir-stock-service/src/subscribers"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// ErrJobAlreadyRunning is returned when a run starts while another is in flight.
var ErrJobAlreadyRunning = errors.New("EOD email job is already running")

const (
	ReasonMarketClosed  = "Market closed"
	ReasonNoSubscribers = "No subscribers"

	sourceTestOverride = "test-override"
)

// SubscriberResolver is implemented by subscribers.Resolver.
type SubscriberResolver interface {
	Resolve(ctx context.Context) ([]models.MSubscriber, string, error)
}

// EmailRenderer is implemented by email.Renderer.
type EmailRenderer interface {
	Render(q *models.MQuote, opts email.RenderOptions) (models.MRenderedEmail, error)
}

// CampaignSettings are the static sender fields of each campaign.
type CampaignSettings struct {
	FromName string
	ReplyTo  string
}

// EODJob sends the end-of-day stock summary email.
type EODJob struct {
	Symbol      string
	Calendar    interfaces.IMarketCalendar
	Quotes      interfaces.IQuoteProvider
	Subscribers SubscriberResolver
	Renderer    EmailRenderer
	Sender      interfaces.ICampaignSender
	Reporter    *helpers.ErrorReporter
	Retry       helpers.RetryPolicy
	Campaign    CampaignSettings
	Clock       func() time.Time
	Logger      *logger.Logger

	running atomic.Bool
}

// -----------------------------------------------------------------------------

// Run gates on the market calendar, then fetches, renders and sends. Failures
// after the gate are reported to the admin and returned.
func (j *EODJob) Run(ctx context.Context, opts models.MRunOptions) (*models.MJobResult, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrJobAlreadyRunning
	}
	defer j.running.Store(false)

	if opts.TestEmail != "" && !subscribers.IsValidEmail(opts.TestEmail) {
		return nil, helpers.NewValidationError("invalid test email %q", opts.TestEmail)
	}

	runID := uuid.NewString()
	log := j.Logger.With("run-" + runID[:8])

	clock := j.Clock
	if clock == nil {
		clock = time.Now
	}
	now := clock().In(j.Calendar.Location())

	if !j.Calendar.IsTradingDay(now) {
		log.Info("%s is not a trading day, skipping", now.Format("2006-01-02"))
		return withRunID(models.SkippedResult(ReasonMarketClosed), runID), nil
	}

	log.Info("Starting EOD email job for %s (dryRun=%t, testEmail=%t)", j.Symbol, opts.DryRun, opts.TestEmail != "")

	result, err := j.execute(ctx, now, opts, log)
	if err != nil {
		if j.Reporter != nil {
			j.Reporter.Report(ctx, "EOD email job "+runID, err)
		}
		return nil, err
	}
	return withRunID(result, runID), nil
}

// -----------------------------------------------------------------------------

func (j *EODJob) execute(ctx context.Context, now time.Time, opts models.MRunOptions, log *logger.Logger) (*models.MJobResult, error) {
	quote, err := j.Quotes.GetQuote(ctx, j.Symbol, true)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetch stock data for email")
	}
	log.Info("Stock data: %s price=%.4f change=%.4f source=%s", quote.Symbol, quote.Price, quote.Change, quote.Source)

	recipients, source, err := j.recipients(ctx, opts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "resolve subscribers")
	}
	if len(recipients) == 0 {
		log.Warning("No subscribers found, skipping send")
		return models.SkippedResult(ReasonNoSubscribers), nil
	}
	log.Info("Resolved %d subscriber(s) from %s", len(recipients), source)

	content, err := j.Renderer.Render(quote, email.RenderOptions{
		MergeTags: opts.TestEmail == "",
		Recipient: &recipients[0],
		Date:      now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "render email")
	}

	if opts.DryRun {
		log.Info("Dry run: would send %q to %d subscriber(s)", content.Subject, len(recipients))
		return models.DryRunResult(len(recipients), quote.Price), nil
	}

	campaignID, err := helpers.Retry(ctx, j.Retry, "create campaign", func(ctx context.Context) (string, error) {
		return j.Sender.CreateCampaign(ctx, models.MCampaignRequest{
			ListID:   j.Sender.ListID(),
			Title:    "EOD " + j.Symbol + " " + now.Format("2006-01-02"),
			Subject:  content.Subject,
			FromName: j.Campaign.FromName,
			ReplyTo:  j.Campaign.ReplyTo,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create campaign")
	}

	err = helpers.RetryWithBackoff(ctx, j.Retry, "set campaign content", func(ctx context.Context) error {
		return j.Sender.SetContent(ctx, campaignID, content)
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "set content of campaign %s", campaignID)
	}

	err = helpers.RetryWithBackoff(ctx, j.Retry, "send campaign", func(ctx context.Context) error {
		if opts.TestEmail != "" {
			return j.Sender.SendTest(ctx, campaignID, []string{opts.TestEmail})
		}
		return j.Sender.Send(ctx, campaignID)
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "send campaign %s", campaignID)
	}

	log.Info("Campaign %s sent to %d subscriber(s)", campaignID, len(recipients))
	return models.SuccessResult(campaignID, len(recipients), quote), nil
}

// -----------------------------------------------------------------------------

// recipients returns the test override when set, otherwise the resolved list.
func (j *EODJob) recipients(ctx context.Context, opts models.MRunOptions) ([]models.MSubscriber, string, error) {
	if opts.TestEmail != "" {
		return []models.MSubscriber{{Email: opts.TestEmail, FirstName: "Test", LastName: "User"}}, sourceTestOverride, nil
	}
	return j.Subscribers.Resolve(ctx)
}

func withRunID(r *models.MJobResult, runID string) *models.MJobResult {
	r.RunID = runID
	return r
}
