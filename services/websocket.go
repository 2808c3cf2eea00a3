package services

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kmishra1204/OneDialAI-UAT/models"
)

// Client represents a connected WebSocket client watching a session feed
type Client struct {
	ID        string
	Conn      *websocket.Conn
	SessionID string
	Send      chan []byte
	Hub       *WebSocketHub
}

// WebSocketHub maintains the set of active clients and broadcasts session
// updates to the clients watching each session
type WebSocketHub struct {
	// Registered clients
	clients map[*Client]bool

	// Clients organized by session ID
	sessionClients map[string][]*Client

	// Register requests from the clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Mutex for safe concurrent access
	mutex sync.RWMutex
}

// NewWebSocketHub creates a new WebSocketHub instance
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		clients:        make(map[*Client]bool),
		sessionClients: make(map[string][]*Client),
	}
}

// Run starts the WebSocketHub
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			if client.SessionID != "" {
				h.sessionClients[client.SessionID] = append(h.sessionClients[client.SessionID], client)
			}
			h.mutex.Unlock()
		case client := <-h.Unregister:
			h.mutex.Lock()
			h.removeClientLocked(client)
			h.mutex.Unlock()
		}
	}
}

// removeClientLocked drops a client from both indexes and closes its send
// channel. Callers must hold the write lock. Removing an already-removed
// client is a no-op, so a client dropped by Broadcast can still be
// unregistered by its handler without closing the channel twice.
func (h *WebSocketHub) removeClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	if client.SessionID != "" {
		clients := h.sessionClients[client.SessionID]
		for i, c := range clients {
			if c == client {
				h.sessionClients[client.SessionID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}

		if len(h.sessionClients[client.SessionID]) == 0 {
			delete(h.sessionClients, client.SessionID)
		}
	}
}

// BroadcastStatus notifies clients watching a session about a status change
func (h *WebSocketHub) BroadcastStatus(update models.StatusUpdate) {
	h.Broadcast(update.SessionID, update)
}

// Broadcast sends a message to all clients subscribed to a specific session
func (h *WebSocketHub) Broadcast(sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling broadcast message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients, ok := h.sessionClients[sessionID]
	if !ok {
		// No clients are listening for this session
		return
	}

	// A slow client is removed from both indexes, never just one: leaving it
	// in sessionClients would make the next broadcast send on its closed
	// channel and panic.
	var dropped []*Client
	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			log.Printf("Failed to send message to client, buffer full")
			dropped = append(dropped, client)
		}
	}
	for _, client := range dropped {
		h.removeClientLocked(client)
	}
}

// SessionClientCount returns the number of clients watching a session
func (h *WebSocketHub) SessionClientCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessionClients[sessionID])
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	defer func() {
		c.Conn.Close()
	}()

	for {
		message, ok := <-c.Send
		if !ok {
			// The hub closed the channel
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		err := c.Conn.WriteMessage(websocket.TextMessage, message)
		if err != nil {
			log.Printf("Error writing to WebSocket: %v", err)
			return
		}
	}
}

// Global instance of the WebSocket hub
var wsHub *WebSocketHub
var wsHubOnce sync.Once

// GetWebSocketHub returns the singleton WebSocket hub
func GetWebSocketHub() *WebSocketHub {
	wsHubOnce.Do(func() {
		wsHub = NewWebSocketHub()
		go wsHub.Run()
	})
	return wsHub
}
