package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Envelope is the frame exchanged with clients.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Encode builds an envelope frame for msgType carrying payload.
func Encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Payload: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", msgType, err)
	}
	return frame, nil
}

// Client represents a connected WebSocket client.
type Client struct {
	id   string
	conn Conn
	mu   sync.Mutex // serialises writes to conn
}

// NewClient wraps conn under the given connection id.
func NewClient(id string, conn Conn) *Client {
	return &Client{id: id, conn: conn}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Send writes a single typed frame to the client.
func (c *Client) Send(msgType string, payload any) error {
	frame, err := Encode(msgType, payload)
	if err != nil {
		return err
	}
	return c.write(frame)
}

// SendError writes an error frame to the client.
func (c *Client) SendError(message string) error {
	frame, err := json.Marshal(Envelope{Type: "error", Error: message})
	if err != nil {
		return fmt.Errorf("failed to marshal error envelope: %w", err)
	}
	return c.write(frame)
}

func (c *Client) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Hub manages connected clients and fans messages out to them.
// Broadcasts are processed one at a time in submission order.
type Hub struct {
	clients    map[string]*Client // clientID -> Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	mu         sync.RWMutex
}

// BroadcastMessage represents a message to broadcast.
type BroadcastMessage struct {
	Type     string
	Payload  any
	ExceptID string
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// closeAllClients closes all connected client connections.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.conn.Close()
	}
	h.clients = make(map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.id] = client
	log.Printf("[hub] Client %s registered", client.id)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		log.Printf("[hub] Client %s unregistered", client.id)
	}
}

func (h *Hub) handleBroadcast(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	frame, err := Encode(msg.Type, msg.Payload)
	if err != nil {
		log.Printf("[hub] Failed to encode broadcast message: %v", err)
		return
	}

	for id, client := range h.clients {
		if id == msg.ExceptID {
			continue
		}
		if err := client.write(frame); err != nil {
			log.Printf("[hub] Failed to send to client %s: %v", id, err)
		}
	}
}

// Register adds a client to the hub. It is a no-op once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for every client except exceptID.
// An empty exceptID reaches every client.
func (h *Hub) Broadcast(msgType string, payload any, exceptID string) {
	select {
	case h.broadcast <- &BroadcastMessage{Type: msgType, Payload: payload, ExceptID: exceptID}:
	case <-h.done:
	}
}

// GetClient returns a client by ID.
func (h *Hub) GetClient(clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[clientID]
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
