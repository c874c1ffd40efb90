package jobs

import (
	"context"
	"fmt"
	"time"

	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
	"ir-stock-service/src/utils"

	"github.com/robfig/cron/v3"
)

// EODSchedule fires at 17:00 market time on weekdays, after the close.
const EODSchedule = "0 17 * * 1-5"

const defaultRunTimeout = 10 * time.Minute

// Runner is implemented by EODJob.
type Runner interface {
	Run(ctx context.Context, opts models.MRunOptions) (*models.MJobResult, error)
}

// CronOrchestrator schedules the EOD job and exposes the manual trigger.
type CronOrchestrator struct {
	Job           Runner
	Enabled       bool
	Schedule      string
	Location      *time.Location
	DefaultDryRun bool
	RunTimeout    time.Duration
	Logger        *logger.Logger
	Clock         func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID
}

// -----------------------------------------------------------------------------

func NewCronOrchestrator(job Runner, cfg *models.MCronConfig, log *logger.Logger) (*CronOrchestrator, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid cron timezone '%s': %w", cfg.Timezone, err)
	}
	return &CronOrchestrator{
		Job:           job,
		Enabled:       cfg.Enabled,
		Schedule:      EODSchedule,
		Location:      loc,
		DefaultDryRun: cfg.DryRun,
		RunTimeout:    defaultRunTimeout,
		Logger:        log,
		Clock:         time.Now,
	}, nil
}

// -----------------------------------------------------------------------------

// Start registers the schedule. It is a no-op when cron is disabled.
func (c *CronOrchestrator) Start() error {
	if !c.Enabled {
		c.Logger.Info("Cron disabled; EOD email job runs only via manual trigger")
		return nil
	}

	c.cron = cron.New(cron.WithLocation(c.Location))
	id, err := c.cron.AddFunc(c.Schedule, c.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to schedule EOD job with '%s': %w", c.Schedule, err)
	}
	c.entryID = id
	c.cron.Start()

	if next, ok := c.NextRunEstimate(); ok {
		c.Logger.Info("EOD email job scheduled '%s' (%s), next run around %s", c.Schedule, c.Location, next.Format(time.RFC1123))
	} else {
		c.Logger.Info("EOD email job scheduled '%s' (%s)", c.Schedule, c.Location)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop prevents new runs and waits for a running one, bounded by ctx.
func (c *CronOrchestrator) Stop(ctx context.Context) {
	if c.cron == nil {
		return
	}
	done := c.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		c.Logger.Warning("EOD job still running at shutdown")
	}
}

// -----------------------------------------------------------------------------

// TriggerManually runs the job immediately with the caller's options.
func (c *CronOrchestrator) TriggerManually(ctx context.Context, opts models.MRunOptions) (*models.MJobResult, error) {
	c.Logger.Info("Manual EOD trigger (dryRun=%t, testEmail=%t)", opts.DryRun, opts.TestEmail != "")
	return c.Job.Run(ctx, opts)
}

// -----------------------------------------------------------------------------

// NextRunEstimate is for logs only.
func (c *CronOrchestrator) NextRunEstimate() (time.Time, bool) {
	return utils.EstimateNextRun(c.Schedule, c.Clock(), c.Location)
}

// -----------------------------------------------------------------------------

// runScheduled never lets an error or panic escape into the scheduler.
func (c *CronOrchestrator) runScheduled() {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("Scheduled EOD job panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.RunTimeout)
	defer cancel()

	result, err := c.Job.Run(ctx, models.MRunOptions{DryRun: c.DefaultDryRun})
	if err != nil {
		c.Logger.Error("Scheduled EOD job failed: %v", err)
		return
	}
	c.logResult(result)
}

func (c *CronOrchestrator) logResult(r *models.MJobResult) {
	switch {
	case r.Skipped:
		c.Logger.Info("Scheduled EOD job %s skipped: %s", r.RunID, r.Reason)
	case r.DryRun:
		c.Logger.Info("Scheduled EOD job %s dry run: %d subscriber(s), price %.4f", r.RunID, r.Subscribers, r.StockPrice)
	default:
		c.Logger.Info("Scheduled EOD job %s sent campaign %s to %d subscriber(s)", r.RunID, r.CampaignID, r.SubscriberCount)
	}
}
