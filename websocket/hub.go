package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/yieldnest/invest_api/services"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type delivery struct {
	userID uuid.UUID
	event  services.LedgerEvent
}

// Hub fans ledger events out to each user's open sockets. Publish never
// blocks; events for a full queue are dropped.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan delivery
	done       chan struct{}

	mu      sync.RWMutex
	clients map[uuid.UUID]map[Conn]struct{}
}

var _ services.EventPublisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan delivery, 256),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID]map[Conn]struct{}),
	}
}

func (h *Hub) Publish(userID uuid.UUID, event services.LedgerEvent) {
	select {
	case h.broadcast <- delivery{userID: userID, event: event}:
	default:
		log.Printf("⚠️ Event queue full, dropping %s for user %s", event.Type, userID)
	}
}

// Connected reports how many sockets the user has open.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Join registers a client. It reports false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters a client; after shutdown it returns immediately.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			log.Printf("Client registered: %s", client.UserID)
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[Conn]struct{})
			}
			h.clients[client.UserID][client.Conn] = struct{}{}
			h.mu.Unlock()
		case client := <-h.Unregister:
			log.Printf("Client unregistered: %s", client.UserID)
			h.remove(client.UserID, client.Conn)
		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.clients[d.userID]))
	for conn := range h.clients[d.userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(d.event); err != nil {
			log.Printf("Error sending event to client %s: %v", d.userID, err)
			conn.Close()
			h.remove(d.userID, conn)
		}
	}
}

func (h *Hub) remove(userID uuid.UUID, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for conn := range conns {
			conn.Close()
		}
		delete(h.clients, userID)
	}
}
