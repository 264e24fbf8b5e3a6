package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"transcript-insights-service/internal/models"
)

// Hub fans record events out to connected WebSocket clients. A client may
// subscribe to a single tenant with ?tenant=; without it it sees every event.
type Hub struct {
	clients    map[*websocket.Conn]string
	broadcast  chan models.RecordEvent
	register   chan subscription
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

type subscription struct {
	conn   *websocket.Conn
	tenant string
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan models.RecordEvent, 100),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
	}
}

// Publish queues event for delivery.
func (h *Hub) Publish(ctx context.Context, event models.RecordEvent) {
	select {
	case h.broadcast <- event:
	case <-ctx.Done():
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.clients[sub.conn] = sub.tenant
			total := len(h.clients)
			h.mu.Unlock()
			log.Info().Str("tenantFilter", sub.tenant).Int("clients", total).Msg("Client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", total).Msg("Client disconnected")

		case event := <-h.broadcast:
			h.mu.Lock()
			for conn, tenant := range h.clients {
				if tenant != "" && tenant != event.TenantID {
					continue
				}
				if err := conn.WriteJSON(event); err != nil {
					log.Warn().Err(err).Msg("WebSocket write failed")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	// The viewer is a local debugging tool.
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsHandler(ctx context.Context, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		select {
		case hub.register <- subscription{conn: conn, tenant: r.URL.Query().Get("tenant")}:
		case <-ctx.Done():
			conn.Close()
			return
		}

		// Reads only detect disconnects.
		go func() {
			defer func() {
				select {
				case hub.unregister <- conn:
				case <-ctx.Done():
				}
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
