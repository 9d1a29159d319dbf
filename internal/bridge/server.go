package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"zolo/internal/cache"
	"zolo/internal/config"
	"zolo/internal/data"
	"zolo/internal/display"
	"zolo/internal/logging"
	"zolo/internal/nav"
	"zolo/internal/session"
	"zolo/internal/wizard"
)

// EngineFactory builds a loop engine bound to one connection's display.
type EngineFactory func(d display.Display) *wizard.Engine

// Handler is a custom event handler. Custom handlers run as background
// goroutines so one awaiting user input never blocks the read loop.
type Handler func(ctx context.Context, c *Client, msg map[string]any)

// Server is the WebSocket bridge.
type Server struct {
	cfg       config.WebSocketConfig
	version   string
	hub       *Hub
	cache     *cache.Orchestrator
	catalog   data.Catalog
	sess      *session.Session
	loader    *nav.Loader
	newEngine EngineFactory

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	handlers map[string]Handler
}

// Options wires the server's collaborators.
type Options struct {
	Config    config.WebSocketConfig
	Version   string
	Cache     *cache.Orchestrator
	Catalog   data.Catalog
	Session   *session.Session
	Loader    *nav.Loader
	NewEngine EngineFactory
}

// NewServer creates a bridge server.
func NewServer(opts Options) *Server {
	s := &Server{
		cfg:       opts.Config,
		version:   opts.Version,
		hub:       NewHub(),
		cache:     opts.Cache,
		catalog:   opts.Catalog,
		sess:      opts.Session,
		loader:    opts.Loader,
		newEngine: opts.NewEngine,
		handlers:  make(map[string]Handler),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Origin is validated after the upgrade so an invalid origin can
		// be answered with close code 1008 instead of an HTTP 403.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// Hub returns the connection index.
func (s *Server) Hub() *Hub { return s.hub }

// Handle registers a custom event handler.
func (s *Server) Handle(event string, h Handler) {
	s.handlers[event] = h
}

// Start listens and serves until the context is done or Shutdown is
// called.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleUpgrade(ctx, w, r)
	})
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	logging.Bridge("Listening on ws://%s/ws", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.BridgeWarn("upgrade failed: %v", err)
		return
	}

	if origin := r.Header.Get("Origin"); !s.originAllowed(origin) {
		logging.BridgeWarn("rejecting origin %q", origin)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "origin not allowed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	if s.cfg.MaxConnections > 0 && s.hub.Count() >= s.cfg.MaxConnections {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "connection limit reached")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	auth := s.authenticate(r)
	if s.cfg.RequireAuth && auth.Context == session.AuthContextGuest {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	client := newClient(conn, auth)
	s.hub.Register(client)
	go client.writePump()

	client.SendEvent("connection_info", s.connectionInfo())
	s.readLoop(ctx, client)
}

// originAllowed prefix-matches the request origin against the allow list.
// Non-browser clients without an Origin header are admitted.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// authenticate derives the connection's identity from the handshake.
// Token verification belongs to the auth collaborator; the bridge only
// classifies the context.
func (s *Server) authenticate(r *http.Request) AuthInfo {
	q := r.URL.Query()
	user := q.Get("user")
	if user == "" {
		return AuthInfo{Context: session.AuthContextGuest}
	}
	ctx := session.AuthContext(q.Get("auth_context"))
	switch ctx {
	case session.AuthContextSession, session.AuthContextApplication, session.AuthContextDual:
	default:
		ctx = session.AuthContextSession
	}
	return AuthInfo{User: user, Context: ctx}
}

func (s *Server) connectionInfo() map[string]any {
	info := map[string]any{
		"server_version": s.version,
		"features":       []string{"chunked_render", "menus", "gates", "cache_control"},
		"cache_stats":    s.cache.Stats(cache.TierAll),
		"session":        s.sess.Hash(),
	}
	if s.catalog != nil {
		info["available_models"] = s.catalog.Models()
	}
	return info
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	defer s.disconnect(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			logging.BridgeDebug("client %s read: %v", c.ID, err)
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendError("Invalid message format", "Message must be a JSON object")
			continue
		}
		event, _ := msg["event"].(string)
		if event == "" {
			c.SendError("Invalid message format", "The 'event' field is required")
			continue
		}
		s.dispatchEvent(ctx, c, event, msg)
	}
}

// disconnect cleans up everything the connection owned: index entries,
// suspended runs, and the private schema cache with its live DB handles.
func (s *Server) disconnect(c *Client) {
	s.hub.Unregister(c)
	c.CancelRunners()
	c.Schema.Clear()
	c.close()
}

// Shutdown notifies every client, closes the connections concurrently,
// and stops the listener within the timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.hub.Broadcast(map[string]any{
		"event":   "server_shutdown",
		"message": "server is shutting down",
	}, nil)

	g, _ := errgroup.WithContext(ctx)
	for _, c := range s.hub.Clients() {
		client := c
		g.Go(func() error {
			s.disconnect(client)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logging.BridgeWarn("shutdown: %v", err)
	}

	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		logging.BridgeWarn("shutdown timed out: %v", err)
		return err
	}
	return nil
}

// SyncShutdown is the reentrant variant used from inside a running
// handler: no notifications, indices cleared, listener closed now.
func (s *Server) SyncShutdown() {
	for _, c := range s.hub.Clients() {
		c.CancelRunners()
		c.Schema.Clear()
		c.close()
	}
	s.hub.Clear()
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
}
