package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Hub fans events out to connected websocket clients. It doubles as a Sink so
// the engine stays unaware of the transport.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	logger     *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Run owns the client set until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	logger := h.logger.With("component", "notify_hub")
	logger.Info("Websocket hub started")

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			logger.Info("Websocket hub stopped")
			return
		case c := <-h.register:
			h.clients[c] = true
			logger.Debug("Client connected", "clients", len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			logger.Debug("Client disconnected", "clients", len(h.clients))
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer, drop it rather than block the hub
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Publish implements Sink. A full broadcast buffer drops the event.
func (h *Hub) Publish(_ context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event",
			"component", "notify_hub", "event_type", event.Type, "error", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Event dropped, broadcast buffer full",
			"component", "notify_hub", "event_type", event.Type)
	}
}

// ServeWS upgrades an HTTP request to a websocket subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("component", "notify_hub", "operation", "serve_ws", "remote_addr", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Failed to upgrade websocket connection", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump discards inbound frames; the stream is server-to-client only.
// Reading is still required to notice closed connections.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
