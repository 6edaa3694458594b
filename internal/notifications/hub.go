package notifications

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fundrise/invest-portal/invest-portal-backend/internal/investing"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// Message is the envelope pushed to dashboard subscribers.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Hub fans investment events out to connected websocket clients. Delivery
// is fire-and-forget: a slow or absent subscriber never blocks the
// recorder, events for full buffers are dropped.
type Hub struct {
	connections map[string]*connection
	mu          sync.RWMutex
	broadcast   chan Message
	upgrader    websocket.Upgrader
	done        chan struct{}
}

type connection struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

// NewHub creates the hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		connections: make(map[string]*connection),
		broadcast:   make(chan Message, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		done: make(chan struct{}),
	}
	go h.run()
	return h
}

// InvestmentCreated implements investing.Notifier.
func (h *Hub) InvestmentCreated(event investing.InvestmentEvent) {
	msg := Message{Type: "investment_created", Payload: event, SentAt: time.Now()}
	select {
	case h.broadcast <- msg:
	default:
		// No room means no listener keeping up; the event is not part of
		// any transactional contract, so it is dropped.
	}
}

// HandleConnection upgrades an HTTP request into a subscriber connection.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &connection{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan Message, sendBufferSize),
	}

	h.mu.Lock()
	h.connections[c.id] = c
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

// Close shuts the broadcast loop down and drops all connections.
func (h *Hub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.connections {
		c.conn.Close()
		delete(h.connections, id)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.connections {
				select {
				case c.send <- msg:
				default:
					// Subscriber too slow; skip it for this event.
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) writeLoop(c *connection) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("websocket write to %s failed: %v", c.id, err)
			h.drop(c)
			return
		}
	}
}

// readLoop exists to notice disconnects; subscribers never send anything
// the hub acts on.
func (h *Hub) readLoop(c *connection) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c.id]; ok {
		delete(h.connections, c.id)
		close(c.send)
		c.conn.Close()
	}
}
