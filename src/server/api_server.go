package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultBroadcastInterval = 5 * time.Second
	quoteFetchTimeout        = 15 * time.Second
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Quotes   interfaces.ILiveQuoteService
	Calendar interfaces.IMarketCalendar
	Trigger  interfaces.IEODTrigger
	Clock    func() time.Time

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients, owned by the hub loop
	clients    map[*Client]struct{}
	broadcast  chan *models.MQuote
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// Read by handlers outside the hub loop
	stateMutex  sync.RWMutex
	connections int
	latestQuote *models.MQuote
}

type directMessage struct {
	client  *Client
	message models.MStockUpdateMessage
}

var _ interfaces.IDataExchanger = (*APIServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, quotes interfaces.ILiveQuoteService, calendar interfaces.IMarketCalendar, trigger interfaces.IEODTrigger, logger *logger.Logger) *APIServer {
	// Set Gin mode
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:   cfg,
		Logger:   logger,
		Quotes:   quotes,
		Calendar: calendar,
		Trigger:  trigger,
		Clock:    time.Now,
		engine:   gin.New(),
		clients:  make(map[*Client]struct{}),
		// Buffered so the broadcaster never waits on the hub
		broadcast:  make(chan *models.MQuote, 16),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(corsMiddleware())

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-API-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/live-stock", s.getLiveStock)
	api.GET("/stock", s.getStock)
	api.POST("/cron/stock-eod/trigger", s.triggerEOD)

	// WebSocket endpoint
	s.engine.GET("/ws/stock", s.handleWebSocket)
}

// Handler exposes the router for tests and embedding.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called. It returns nil after a graceful shutdown.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.handleWebsockets()
	go s.runBroadcaster()

	s.Logger.Info("Starting server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", addr, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop closes the listener, waits for in-flight requests and drops all sockets.
func (s *APIServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.Logger.Info("Server stopped")
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *APIServer) defaultSymbol() string {
	return strings.ToUpper(s.Config.MarketData.Symbol)
}
