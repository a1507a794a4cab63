// Package hub fans rider-facing events out to connected WebSocket clients.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"busmate/internal/domain"
)

const (
	EventBusMatched       = "bus_matched"
	EventNoNearbyStops    = "no_nearby_stops"
	EventNearbyStopsFound = "nearby_stops_found"
	EventTrackingStopped  = "tracking_stopped"
)

type Client struct {
	ID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		send: make(chan []byte, bufferSize),
	}
}

// Receive is the client's outbound message stream. It is closed when the
// client leaves the hub or the hub shuts down.
func (c *Client) Receive() <-chan []byte {
	return c.send
}

// TrySend queues data for the client's write loop. Returns false when
// the client is closed or its buffer is full; never blocks and is safe
// against a client torn down mid-send.
func (c *Client) TrySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// Event is the envelope sent to every connected client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan Event, 256),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", h.ClientCount())

		case client := <-h.unregister:
			h.removeClient(client)

		case event := <-h.broadcast:
			h.fanout(event)
		}
	}
}

// Broadcast queues an event for all connected clients. Drops the event
// when the queue is full rather than blocking the caller.
func (h *Hub) Broadcast(eventType string, payload any) {
	select {
	case h.broadcast <- Event{Type: eventType, Payload: payload}:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", eventType)
	}
}

// Notify publishes a positive match decision; implements the
// reconciliation engine's notifier.
func (h *Hub) Notify(decision domain.MatchDecision) {
	h.Broadcast(EventBusMatched, decision)
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanout(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.TrySend(data) {
			h.logger.Debug("event dropped for client", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.close()
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]struct{})
}
