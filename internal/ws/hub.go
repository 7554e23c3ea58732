package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleettrack/internal/bus"
	"fleettrack/internal/models"
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub pushes live canonical locations to connected dashboard clients. It
// subscribes to gps.updated on the bus; a slow client gets disconnected
// rather than backing up the pipeline.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	log        *slog.Logger
}

type wsMessage struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		log:        log,
	}
}

// Register subscribes the hub to location events.
func (h *Hub) Register(b *bus.Bus) {
	b.Subscribe(bus.TopicGPSUpdated, func(payload any) {
		loc, ok := payload.(models.CanonicalLocation)
		if !ok {
			return
		}
		data, err := json.Marshal(wsMessage{
			Type:      bus.TopicGPSUpdated,
			Payload:   loc,
			Timestamp: time.Now(),
		})
		if err != nil {
			h.log.Error("failed to marshal live update", "error", err)
			return
		}
		select {
		case h.broadcast <- data:
		default:
			// Hub backlogged; live feed is best effort.
		}
	})
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("live feed client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Info("live feed client disconnected", "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeHTTP upgrades /ws/live connections.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}
	client := &Client{Conn: conn, Send: make(chan []byte, 32)}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// The feed is one-way; reads only service control frames.
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}
