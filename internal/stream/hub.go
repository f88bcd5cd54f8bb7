// internal/stream/hub.go

// Package stream broadcasts live device telemetry to websocket subscribers.
// A hub fans decimated servo samples out to connected clients; the feeder
// bridges the sampler subscription onto the hub and annotates frames with
// the active session's controller state.
package stream

import (
	"context"
	"sync/atomic"

	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/metrics"
)

// Hub owns the set of connected telemetry clients. Registration, removal,
// and broadcast all flow through the run loop, so the client map needs no
// lock.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	clients    map[*Client]bool
	maxClients int
	count      atomic.Int64
	done       chan struct{}
	log        logger.Logger
}

// NewHub builds an idle hub. Run must be started before clients connect.
func NewHub(cfg config.StreamConfig, log logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		clients:    make(map[*Client]bool),
		maxClients: cfg.MaxClients,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until the context is canceled. On return every client
// send channel is closed, which unwinds the write pumps and closes the
// underlying connections.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.count.Store(0)
		metrics.StreamClients.Set(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case client := <-h.register:
			if h.maxClients > 0 && len(h.clients) >= h.maxClients {
				h.log.Warn("Subscriber limit reached, rejecting client", map[string]interface{}{
					"subject":    client.subject,
					"maxClients": h.maxClients,
				})
				close(client.send)
				continue
			}
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.log.Info("Telemetry subscriber connected", map[string]interface{}{
				"subject": client.subject,
				"clients": len(h.clients),
			})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setCount(len(h.clients))
				h.log.Info("Telemetry subscriber disconnected", map[string]interface{}{
					"subject": client.subject,
					"clients": len(h.clients),
				})
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// A full send buffer means the client cannot keep up
					// with the frame rate. Drop it rather than queue.
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("Dropping slow telemetry subscriber", map[string]interface{}{
						"subject": client.subject,
					})
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

// Register queues the client for admission. Clients arriving over the limit
// or after shutdown have their send channel closed immediately.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes the client and closes its send channel. Safe to call
// for a client the hub already dropped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast fans one message out to every connected client. Messages sent
// after shutdown are discarded.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) setCount(n int) {
	h.count.Store(int64(n))
	metrics.StreamClients.Set(float64(n))
}
