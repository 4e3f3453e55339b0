// Package events streams pipeline run events to dashboard clients over
// WebSocket. Payloads are limited to run metadata and aggregate counts.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are not validated; the hub is expected to sit behind the
		// deployment's ingress.
		return true
	},
}

// HubConfig gates which event classes are broadcast.
type HubConfig struct {
	BroadcastRuns        bool
	BroadcastConnections bool
}

// Hub maintains the set of active clients and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	config     HubConfig
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub; call Run on its own goroutine before serving.
func NewHub(config HubConfig, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     config,
		logger:     log.WithComponent("events-hub"),
	}
}

// Run processes registration and broadcast traffic until the process exits.
func (h *Hub) Run() {
	h.logger.Info("starting events hub")
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// PublishRun emits a run lifecycle event if run broadcasting is enabled.
func (h *Hub) PublishRun(eventType EventType, run RunEvent) {
	if !h.config.BroadcastRuns {
		return
	}
	select {
	case h.broadcast <- Event{Type: eventType, Timestamp: time.Now(), Data: run}:
	default:
		h.logger.Warn("event dropped, broadcast buffer full", zap.String("type", string(eventType)))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected",
		zap.String("client_id", client.id),
		zap.Int("active_connections", active))

	if h.config.BroadcastConnections {
		h.broadcastEvent(Event{
			Type:      EventTypeConnection,
			Timestamp: time.Now(),
			Data:      ConnectionEvent{Action: "connected", ClientID: client.id},
		})
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client disconnected",
		zap.String("client_id", client.id),
		zap.Int("active_connections", active))
}

func (h *Hub) broadcastEvent(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Slow client; drop the event rather than block the hub.
		}
	}
}

// ServeWS upgrades an HTTP request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn, r.RemoteAddr)
	h.register <- client

	go client.writePump()
	go client.readPump()
}
