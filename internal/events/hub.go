// Package events streams detection progress to the browser UI over
// websockets.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// EventType represents the type of event sent to clients
type EventType string

const (
	// EventTypeDetection is emitted when a document finishes detection
	EventTypeDetection EventType = "detection"
	// EventTypePassProgress is emitted after each pipeline pass
	EventTypePassProgress EventType = "pass_progress"
	// EventTypeSystem carries engine status messages
	EventTypeSystem EventType = "system"
)

// Event is the envelope broadcast to all connected clients
type Event struct {
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	DocumentID string    `json:"document_id,omitempty"`
	Data       any       `json:"data"`
}

// DetectionEvent summarizes one finished detection run. It carries counts
// only, never entity text, so the socket can be logged safely.
type DetectionEvent struct {
	DocumentID   string                `json:"document_id"`
	DocumentType string                `json:"document_type"`
	EntityCount  int                   `json:"entity_count"`
	PassResults  []pipeline.PassResult `json:"pass_results"`
	DurationMS   float64               `json:"duration_ms"`
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	cfg        config.EventsConfig
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewHub creates a new event hub
func NewHub(cfg config.EventsConfig, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cfg:        cfg,
		logger:     log,
	}
}

// Run handles client registration, unregistration, and broadcasting.
// It blocks and is meant to run in its own goroutine.
func (h *Hub) Run() {
	h.logger.Info("Starting event hub")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.cfg.MaxConnections > 0 && len(h.clients) >= h.cfg.MaxConnections {
				h.mu.Unlock()
				close(client.send)
				h.logger.Warn("Rejecting websocket client, connection limit reached")
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Websocket client connected", zap.Int("clients", h.ClientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("Websocket client disconnected", zap.Int("clients", h.ClientCount()))

		case event := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// Slow client; drop the event rather than block.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for all connected clients; it never blocks.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Debug("Event queue full, dropping event", zap.String("type", string(event.Type)))
	}
}

// BroadcastDetection publishes a detection summary for one document.
func (h *Hub) BroadcastDetection(docID string, result *pipeline.Result) {
	h.Broadcast(Event{
		Type:       EventTypeDetection,
		DocumentID: docID,
		Data: DetectionEvent{
			DocumentID:   docID,
			DocumentType: result.DocumentType,
			EntityCount:  len(result.Entities),
			PassResults:  result.PassResults,
			DurationMS:   float64(result.Duration.Microseconds()) / 1000.0,
		},
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request to a websocket client connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan Event, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
