package bridge

import (
	"sync"

	"zolo/internal/logging"
)

// Hub indexes live connections four ways: the full client set, the
// authenticated subset, user -> connections (multiple tabs per user), and
// connection -> user for O(1) cleanup.
type Hub struct {
	mu            sync.RWMutex
	clients       map[*Client]struct{}
	authenticated map[*Client]struct{}
	userConns     map[string]map[*Client]struct{}
	connUsers     map[*Client]string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]struct{}),
		authenticated: make(map[*Client]struct{}),
		userConns:     make(map[string]map[*Client]struct{}),
		connUsers:     make(map[*Client]string),
	}
}

// Register adds a client to every applicable index.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if c.Authenticated() {
		h.authenticated[c] = struct{}{}
		set, ok := h.userConns[c.Auth.User]
		if !ok {
			set = make(map[*Client]struct{})
			h.userConns[c.Auth.User] = set
		}
		set[c] = struct{}{}
		h.connUsers[c] = c.Auth.User
	}
	logging.Bridge("Client %s connected (%d live)", c.ID, len(h.clients))
}

// Unregister removes a client from all indices.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	delete(h.authenticated, c)
	if user, ok := h.connUsers[c]; ok {
		delete(h.connUsers, c)
		if set, ok := h.userConns[user]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.userConns, user)
			}
		}
	}
	logging.Bridge("Client %s disconnected (%d live)", c.ID, len(h.clients))
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Clients returns a snapshot of the live set.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast queues a message for every client except the sender. Each
// delivery is independent; a slow client never delays the rest.
func (h *Hub) Broadcast(message any, sender *Client) {
	for _, c := range h.Clients() {
		if c == sender {
			continue
		}
		go c.Send(message)
	}
}

// SendToUser queues a message on every connection the user holds and
// returns how many were queued.
func (h *Hub) SendToUser(userID string, message any) int {
	h.mu.RLock()
	set := h.userConns[userID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		go c.Send(message)
	}
	return len(targets)
}

// Clear drops every index entry without touching the connections. Used by
// the synchronous shutdown path.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients = make(map[*Client]struct{})
	h.authenticated = make(map[*Client]struct{})
	h.userConns = make(map[string]map[*Client]struct{})
	h.connUsers = make(map[*Client]string)
}
