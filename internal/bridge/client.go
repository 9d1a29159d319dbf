// Package bridge is the WebSocket layer: it accepts connections, indexes
// them by user, routes JSON events to the engine and caches, and streams
// chunked-render output back to clients.
package bridge

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"zolo/internal/cache"
	"zolo/internal/display"
	"zolo/internal/logging"
	"zolo/internal/session"
	"zolo/internal/wizard"
)

// sendBuffer bounds the per-client outbound queue. A full queue drops the
// message rather than blocking the sender.
const sendBuffer = 64

// AuthInfo is the handshake's authentication outcome.
type AuthInfo struct {
	User    string
	Context session.AuthContext
}

// Client is one live WebSocket connection and its per-connection state:
// outbound queue, pending inputs, paused chunked runs, and a private
// schema cache whose handles die with the connection.
type Client struct {
	ID   string
	Auth AuthInfo

	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}

	Inputs *display.PendingInputs
	Schema *cache.SchemaCache

	mu      sync.Mutex
	runners map[string]*wizard.Runner
}

func newClient(conn *websocket.Conn, auth AuthInfo) *Client {
	return &Client{
		ID:      session.NewID(),
		Auth:    auth,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		closed:  make(chan struct{}),
		Inputs:  display.NewPendingInputs(),
		Schema:  cache.NewSchemaCache(),
		runners: make(map[string]*wizard.Runner),
	}
}

// Send queues a JSON message. Closed-connection and full-queue conditions
// are swallowed; slow or dead clients must not stall callers.
func (c *Client) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.BridgeError("marshal outbound: %v", err)
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		logging.BridgeWarn("client %s send queue full; dropping message", c.ID)
	}
}

// SendEvent queues an event-shaped message.
func (c *Client) SendEvent(event string, fields map[string]any) {
	msg := map[string]any{"event": event}
	for k, v := range fields {
		msg[k] = v
	}
	c.Send(msg)
}

// SendError reports a handler failure to the client.
func (c *Client) SendError(errName, message string) {
	c.Send(map[string]any{"error": errName, "message": message})
}

// writePump drains the outbound queue onto the socket.
func (c *Client) writePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.BridgeDebug("client %s write: %v", c.ID, err)
				return
			}
		case <-c.closed:
			return
		}
	}
}

// close tears the connection down once.
func (c *Client) close() {
	select {
	case <-c.closed:
		return
	default:
	}
	close(c.closed)
	_ = c.conn.Close()
}

// SetRunner registers a suspended chunked run under its pause key.
func (c *Client) SetRunner(key string, r *wizard.Runner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runners[key] = r
}

// Runner returns the suspended run for key, removing every registration
// that points at it. Runs register under both the pause key and the block
// name, so a lookup by either must clear the alias too.
func (c *Client) Runner(key string) (*wizard.Runner, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.runners[key]
	if !ok {
		return nil, false
	}
	for k, v := range c.runners {
		if v == r {
			delete(c.runners, k)
		}
	}
	return r, true
}

// soleRunner returns the connection's only suspended run, if exactly one
// exists, clearing its registrations.
func (c *Client) soleRunner() (*wizard.Runner, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sole *wizard.Runner
	for _, r := range c.runners {
		if sole != nil && sole != r {
			return nil, false
		}
		sole = r
	}
	if sole == nil {
		return nil, false
	}
	c.runners = make(map[string]*wizard.Runner)
	return sole, true
}

// CancelRunners aborts every suspended run for this connection.
func (c *Client) CancelRunners() {
	c.mu.Lock()
	runners := c.runners
	c.runners = make(map[string]*wizard.Runner)
	c.mu.Unlock()
	for _, r := range runners {
		r.Cancel()
	}
}

// Authenticated reports whether the handshake produced a non-guest user.
func (c *Client) Authenticated() bool {
	return c.Auth.User != "" && c.Auth.Context != session.AuthContextGuest
}
