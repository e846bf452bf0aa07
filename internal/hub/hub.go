package hub

import (
	"sync"

	"github.com/weiawesome/tt-live-music-player/internal/config"
	pkglog "github.com/weiawesome/tt-live-music-player/pkg/log"
)

// Hub manages all operator WebSocket connections. Messages are either
// addressed to one client or broadcast to every client.
type Hub struct {
	clients    map[string]*Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		quit:       make(chan struct{}),
		config:     cfg,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	l := pkglog.L()
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.ID]
			if ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

			if ok {
				l.Info().Str(pkglog.FieldSessionID, client.ID).Msg("client unregistered")
				if client.disconnectHandler != nil {
					go client.disconnectHandler(client)
				}
			}

		case data := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.Send <- data:
				default:
					// Client's send buffer is full
					go h.removeClient(client)
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			return
		}
	}
}

// Stop ends Run. Registered clients are left for their pumps to close.
func (h *Hub) Stop() {
	close(h.quit)
}

// Register adds a client. It is visible to SendToClient as soon as Register returns.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	l := pkglog.L()
	l.Info().Str(pkglog.FieldSessionID, client.ID).Msg("client registered")
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Broadcast queues message for every connected client.
func (h *Hub) Broadcast(message interface{}) error {
	data, err := marshal(message)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
	case <-h.quit:
	}
	return nil
}

// SendToClient sends a message to a specific client. Unknown clients are ignored.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return nil
	}

	select {
	case client.Send <- data:
	default:
		go h.removeClient(client)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) removeClient(client *Client) {
	h.Unregister(client)
}
