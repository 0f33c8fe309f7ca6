package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventPublisher is what services use to broadcast.
// Services depend on this interface, not on *Hub, so tests can pass a
// recorder instead.
type EventPublisher interface {
	BroadcastToAll(event Event)
	GetOnlineUserIDs() []string
}

// Hub tracks the live connections and fans events out to them.
//
// register/unregister are served by Run; broadcasts take the read lock and
// push the encoded event into every client's buffered send channel.
type Hub struct {
	// clients: userID → set of connections (one per open tab).
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	quitOnce   sync.Once

	seq atomic.Int64
}

// NewHub returns an empty hub. Start it with `go hub.Run()`.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run serves register/unregister until Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.quit:
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	log.Printf("[ws] client connected: user=%s (connections for user: %d)",
		client.userID, len(h.clients[client.userID]))
}

// removeClient drops a client and closes its send channel.
// Unknown clients are ignored, so a double unregister is harmless.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.clients, client.userID)
		log.Printf("[ws] user fully disconnected: %s", client.userID)
	} else {
		log.Printf("[ws] client disconnected: user=%s (remaining: %d)", client.userID, len(clients))
	}
}

// BroadcastToAll sends event to every connection.
func (h *Hub) BroadcastToAll(event Event) {
	data, ok := h.encode(&event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for client := range clients {
			h.deliver(client, data)
		}
	}
}

// GetOnlineUserIDs returns the users with at least one connection.
func (h *Hub) GetOnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// Shutdown closes every connection and stops Run.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	h.quitOnce.Do(func() { close(h.quit) })
	log.Println("[ws] hub shut down, all connections closed")
}

func (h *Hub) encode(event *Event) ([]byte, bool) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", event.Op, err)
		return nil, false
	}
	return data, true
}

// deliver must be called with h.mu held for reading.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Slow client: buffer full, drop it.
		go h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}
