// server/internal/socket/hub.go
package socket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"freshchain-ledger-server/internal/ledger"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Client is one websocket subscriber. BatchID 0 receives every notification.
type Client struct {
	ID      string
	Caller  ledger.Address
	BatchID uint64

	conn *websocket.Conn
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

func NewClient(id string, caller ledger.Address, batchID uint64, conn *websocket.Conn) *Client {
	return &Client{ID: id, Caller: caller, BatchID: batchID, conn: conn}
}

func (c *Client) wants(n ledger.Notification) bool {
	if c.BatchID == 0 {
		return true
	}
	_, registration := n.Name.RegisteredRole()
	return !registration && n.BatchID == c.BatchID
}

func (c *Client) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub keeps the connected websocket clients and broadcasts ledger notifications to them.
type Hub struct {
	// clients is keyed by connection id
	clients map[string]*Client
	mu      sync.RWMutex
}

var _ ledger.Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	log.Printf("WebSocket client registered: %s (%s, batch %d)", c.ID, c.Caller.Hex(), c.BatchID)
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		log.Printf("WebSocket client unregistered: %s", id)
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends n to every interested client. A failed write drops only that client.
func (h *Hub) Publish(ctx context.Context, n ledger.Notification) error {
	message, err := json.Marshal(n)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.wants(n) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.write(message); err != nil {
			log.Printf("WebSocket write to %s failed, dropping client: %v", c.ID, err)
			h.Unregister(c.ID)
			c.conn.Close()
		}
	}
	return nil
}
