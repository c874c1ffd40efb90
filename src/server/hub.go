package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ir-stock-service/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop. It alone touches the clients map.
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.setConnections(0)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.setConnections(len(s.clients))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.setConnections(len(s.clients))
			}

		case msg := <-s.direct:
			if _, ok := s.clients[msg.client]; ok {
				s.deliver(msg.client, msg.message)
			}

		case quote := <-s.broadcast:
			s.stateMutex.Lock()
			s.latestQuote = quote
			s.stateMutex.Unlock()

			message := models.NewStockUpdate(quote)
			for client := range s.clients {
				s.deliver(client, message)
			}
		}
	}
}

// deliver drops a client whose buffer is full rather than block the hub.
func (s *APIServer) deliver(client *Client, message models.MStockUpdateMessage) {
	select {
	case client.send <- message:
	default:
		delete(s.clients, client)
		close(client.send)
		s.setConnections(len(s.clients))
		s.Logger.Warning("Dropped slow WebSocket client")
	}
}

func (s *APIServer) setConnections(n int) {
	s.stateMutex.Lock()
	s.connections = n
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a quote for every connected client. It never blocks.
func (s *APIServer) Broadcast(quote *models.MQuote) {
	if quote == nil {
		return
	}
	select {
	case s.broadcast <- quote:
	default:
		s.Logger.Warning("Broadcast queue full, dropping update for %s", quote.Symbol)
	}
}

// -----------------------------------------------------------------------------

// runBroadcaster pushes a fresh quote to all clients on a fixed interval.
func (s *APIServer) runBroadcaster() {
	interval := time.Duration(s.Config.MarketData.BroadcastIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultBroadcastInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.broadcastOnce()
		}
	}
}

func (s *APIServer) broadcastOnce() {
	s.stateMutex.RLock()
	idle := s.connections == 0
	s.stateMutex.RUnlock()
	if idle {
		return
	}

	q, err := s.fetchQuote()
	if err != nil {
		s.Logger.Warning("Broadcast quote fetch failed: %v", err)
		return
	}
	s.Broadcast(q)
}

func (s *APIServer) fetchQuote() (*models.MQuote, error) {
	ctx, cancel := context.WithTimeout(context.Background(), quoteFetchTimeout)
	defer cancel()
	return s.Quotes.GetLiveQuote(ctx, s.defaultSymbol())
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan models.MStockUpdateMessage, 16),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
	go s.pushInitial(client)
}

// pushInitial sends the current quote to a client that just connected.
func (s *APIServer) pushInitial(client *Client) {
	q, err := s.fetchQuote()
	if err != nil {
		s.Logger.Warning("Initial quote for new client failed: %v", err)
		return
	}
	select {
	case s.direct <- directMessage{client: client, message: models.NewStockUpdate(q)}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage records a subscribe preference. Broadcasts stay global.
func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Debug("Ignoring malformed client message: %v", err)
		return
	}

	if cmd.Type != "subscribe" {
		return
	}
	client.SetSymbol(cmd.Symbol)
	s.Logger.Debug("Client subscribed to %s", client.Symbol())
}
