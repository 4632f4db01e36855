// Package realtime pushes store changes to connected dashboards over websocket.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ErrClientClosed is returned when attempting to send to a closed (or too slow) client.
var ErrClientClosed = errors.New("client is closed")

// Subscriber is anything the hub can push encoded events to.
type Subscriber interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Hub tracks connected dashboards. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Subscriber
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]Subscriber),
		logger:  logger,
	}
}

func (h *Hub) Register(c Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID()] = c
	h.logger.Debug("websocket client registered", zap.String("client_id", c.ID()))
}

func (h *Hub) Unregister(c Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID()]; ok {
		delete(h.clients, c.ID())
		h.logger.Debug("websocket client unregistered", zap.String("client_id", c.ID()))
	}
}

// Publish encodes event once and queues it on every client.
// Sends are non-blocking, so per-client order follows publish order.
func (h *Hub) Publish(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to serialize event", zap.String("event_type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(data); err != nil {
			h.logger.Warn("dropping slow websocket client", zap.String("client_id", c.ID()), zap.Error(err))
			h.Unregister(c)
			c.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Subscriber)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
