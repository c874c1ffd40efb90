package app

import (
	"context"
	"fmt"
	"time"

	"ir-stock-service/src/config"
	"ir-stock-service/src/data_source/massive"
	"ir-stock-service/src/email"
	"ir-stock-service/src/helpers"
	"ir-stock-service/src/jobs"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/mailchimp"
	"ir-stock-service/src/network"
	"ir-stock-service/src/notify"
	"ir-stock-service/src/quote"
	"ir-stock-service/src/server"
	"ir-stock-service/src/subscribers"
	"ir-stock-service/src/utils"
)

// -----------------------------------------------------------------------------

// App holds every wired component of the service.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Calendar *utils.MarketCalendar
	Quotes   *quote.LiveQuoteService
	Job      *jobs.EODJob
	Cron     *jobs.CronOrchestrator
	Server   *server.APIServer
}

// -----------------------------------------------------------------------------

// New builds the component graph. Nothing is started and no network call is made.
func New(cfg *config.Config, appLogger *logger.Logger) (*App, error) {
	conf := cfg.MConfig
	loc := cfg.Location()

	// 1. Calendar
	calendar, err := utils.NewMarketCalendar(&conf.Calendar, logger.NewLogger(conf, "Calendar"))
	if err != nil {
		return nil, fmt.Errorf("market calendar: %w", err)
	}

	// 2. Network + market data
	networkManager := network.NewHTTPManager(&conf.Network, logger.NewLogger(conf, "NetworkManager"))
	marketData := massive.NewMassiveSource(&conf.MarketData, networkManager, logger.NewLogger(conf, "Massive"))

	normalizer := quote.NewNormalizer(marketData, loc, logger.NewLogger(conf, "Normalizer"))
	cache := quote.NewQuoteCache(time.Duration(conf.MarketData.CacheTTLSeconds)*time.Second, time.Now)
	quotes := quote.NewLiveQuoteService(normalizer, marketData, cache, logger.NewLogger(conf, "LiveQuotes"))

	// 3. Email platform, subscribers, rendering, alerts
	jobLogger := logger.NewLogger(conf, "EODJob")
	retry := helpers.DefaultRetryPolicy(jobLogger)

	mc := mailchimp.NewClient(&conf.Mailchimp, networkManager, logger.NewLogger(conf, "Mailchimp"))
	resolver := subscribers.NewResolver(
		subscribers.NewStrapiSource(&conf.Strapi, networkManager, logger.NewLogger(conf, "Strapi")),
		subscribers.NewAudienceSource(mc, conf.Mailchimp.PageSize, logger.NewLogger(conf, "Audience")),
		retry,
		logger.NewLogger(conf, "Subscribers"),
	)

	renderer, err := email.NewRenderer(&conf.Email, loc, logger.NewLogger(conf, "Renderer"))
	if err != nil {
		return nil, err
	}

	notifier := notify.NewAdminNotifier(conf.Alerts, logger.NewLogger(conf, "AdminNotifier"))

	// 4. Job + scheduler
	job := &jobs.EODJob{
		Symbol:      conf.MarketData.Symbol,
		Calendar:    calendar,
		Quotes:      normalizer,
		Subscribers: resolver,
		Renderer:    renderer,
		Sender:      mc,
		Reporter:    helpers.NewErrorReporter(jobLogger, notifier),
		Retry:       retry,
		Campaign:    jobs.CampaignSettings{FromName: conf.Mailchimp.FromName, ReplyTo: conf.Mailchimp.ReplyTo},
		Clock:       time.Now,
		Logger:      jobLogger,
	}

	orchestrator, err := jobs.NewCronOrchestrator(job, &conf.Cron, logger.NewLogger(conf, "Cron"))
	if err != nil {
		return nil, err
	}

	// 5. API server
	srv := server.NewAPIServer(conf, quotes, calendar, orchestrator, logger.NewLogger(conf, "APIServer"))

	return &App{
		Config:   cfg,
		Logger:   appLogger,
		Calendar: calendar,
		Quotes:   quotes,
		Job:      job,
		Cron:     orchestrator,
		Server:   srv,
	}, nil
}

// -----------------------------------------------------------------------------

// Shutdown stops the scheduler and the server within ctx.
func (a *App) Shutdown(ctx context.Context) error {
	a.Cron.Stop(ctx)
	return a.Server.Stop(ctx)
}
