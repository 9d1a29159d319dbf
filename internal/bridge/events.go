package bridge

import (
	"context"
	"time"

	"zolo/internal/accumulator"
	"zolo/internal/cache"
	"zolo/internal/dispatch"
	"zolo/internal/logging"
	"zolo/internal/nav"
	"zolo/internal/session"
	"zolo/internal/wizard"
	"zolo/internal/zpath"
)

// dispatchEvent routes one inbound event. Built-in events run inline on
// the read loop; custom handlers run as background goroutines.
func (s *Server) dispatchEvent(ctx context.Context, c *Client, event string, msg map[string]any) {
	switch event {
	case "input_response":
		s.handleInputResponse(c, msg)
	case "connection_info":
		c.SendEvent("connection_info", s.connectionInfo())
	case "menu_selection":
		s.handleMenuSelection(c, msg)
	case "form_submit":
		s.handleFormSubmit(c, msg)
	case "get_schema":
		s.handleGetSchema(c, msg)
	case "discover":
		s.handleDiscover(c)
	case "introspect":
		s.handleIntrospect(c)
	case "clear_cache":
		s.handleClearCache(c)
	case "cache_stats":
		c.SendEvent("cache_stats", map[string]any{"stats": s.cache.Stats(cache.TierAll)})
	case "set_cache_ttl":
		s.handleSetCacheTTL(c, msg)
	case "dispatch":
		s.handleDispatch(ctx, c, msg)
	case "execute_walker":
		s.handleExecute(ctx, c, msg, false)
	case "load_page":
		s.handleExecute(ctx, c, msg, true)
	case "page_unload":
		s.handlePageUnload(c, msg)
	default:
		if h, ok := s.handlers[event]; ok {
			go h(ctx, c, msg)
			return
		}
		c.SendError("unknown_event", "no handler for event: "+event)
	}
}

func (s *Server) handleInputResponse(c *Client, msg map[string]any) {
	requestID, _ := msg["requestId"].(string)
	value, _ := msg["value"].(string)
	if requestID == "" {
		c.SendError("invalid_request", "input_response requires requestId")
		return
	}
	if !c.Inputs.Resolve(requestID, value) {
		logging.BridgeDebug("input_response for unknown request %s", requestID)
	}
}

// handleMenuSelection resumes the chunked run paused on this menu and
// records the navigation in the breadcrumb trail.
func (s *Server) handleMenuSelection(c *Client, msg map[string]any) {
	menuKey, _ := msg["menu_key"].(string)
	selected, _ := msg["selected"].(string)
	runner, ok := c.Runner(wizard.KeyBase(menuKey))
	if !ok {
		c.SendEvent("menu_selected", map[string]any{
			"menu_key": menuKey, "selected": selected, "success": false,
		})
		return
	}
	if scope := s.currentScope(); scope != "" {
		crumbs := nav.NewCrumbs(s.sess)
		crumbs.Append(scope, wizard.KeyBase(menuKey))
		crumbs.Append(scope, selected)
	}
	runner.Resume(selected)
	c.SendEvent("menu_selected", map[string]any{
		"menu_key": menuKey, "selected": selected, "success": true,
	})
}

// handleFormSubmit resumes the run suspended at a gate; the submitted
// data becomes the next step's result context. Clients name the executing
// block; the run is registered under both the block name and the gate
// key, and a connection with a single suspended run accepts either.
func (s *Server) handleFormSubmit(c *Client, msg map[string]any) {
	blockKey, _ := msg["block"].(string)
	data, _ := msg["data"].(map[string]any)
	runner, ok := c.Runner(wizard.KeyBase(blockKey))
	if !ok {
		runner, ok = c.soleRunner()
	}
	if !ok {
		c.SendError("no_pending_form", "no suspended run for block: "+blockKey)
		return
	}
	runner.Resume(data)
}

func (s *Server) handleGetSchema(c *Client, msg map[string]any) {
	model, _ := msg["model"].(string)
	if s.catalog == nil {
		c.SendError("no_catalog", "no data catalog configured")
		return
	}
	schema, ok := s.catalog.Schema(model)
	if !ok {
		c.SendError("unknown_model", "no schema for model: "+model)
		return
	}
	c.SendEvent("schema", map[string]any{"model": model, "schema": schema})
}

func (s *Server) handleDiscover(c *Client) {
	models := []string{}
	if s.catalog != nil {
		models = s.catalog.Models()
	}
	c.SendEvent("discover", map[string]any{"models": models})
}

func (s *Server) handleIntrospect(c *Client) {
	out := map[string]any{}
	if s.catalog != nil {
		for _, model := range s.catalog.Models() {
			if schema, ok := s.catalog.Schema(model); ok {
				out[model] = schema
			}
		}
	}
	c.SendEvent("introspect", map[string]any{"models": out})
}

// handleClearCache infers the clear scope from the auth context:
// application connections clear the shared derived tiers, session users
// clear their private handles plus pinned aliases, and guests fall back
// to the historical global clear.
func (s *Server) handleClearCache(c *Client) {
	switch c.Auth.Context {
	case session.AuthContextApplication:
		_ = s.cache.Clear(cache.TierSystem, "*")
		_ = s.cache.Clear(cache.TierPlugin, "*")
	case session.AuthContextSession, session.AuthContextDual:
		c.Schema.Clear()
		_ = s.cache.Clear(cache.TierPinned, "*")
	default:
		_ = s.cache.Clear(cache.TierAll, "*")
	}
	c.SendEvent("cache_cleared", map[string]any{"context": string(c.Auth.Context)})
}

func (s *Server) handleSetCacheTTL(c *Client, msg map[string]any) {
	ttl, ok := msg["ttl"].(float64)
	if !ok || ttl < cache.MinTTLSeconds || ttl > cache.MaxTTLSeconds {
		c.SendError("invalid_ttl", "ttl must be between 1 and 3600 seconds")
		return
	}
	s.cache.System().SetTTL(time.Duration(ttl) * time.Second)
	c.SendEvent("cache_ttl_set", map[string]any{"ttl": ttl})
}

// handleDispatch runs a single step on behalf of the client.
func (s *Server) handleDispatch(ctx context.Context, c *Client, msg map[string]any) {
	key, _ := msg["key"].(string)
	engine := s.newEngine(NewDisplay(c))
	result, err := engine.Dispatcher().Dispatch(ctx, key, msg["value"], &dispatch.Context{
		WizardMode: string(session.ModeBifrost),
		Schema:     c.Schema,
		Acc:        accumulator.New(),
	})
	if err != nil {
		c.SendError("dispatch_error", err.Error())
		return
	}
	c.SendEvent("dispatch_result", map[string]any{"key": key, "result": result})
}

// handleExecute starts a chunked run over the addressed block and streams
// its chunks. load_page additionally rewrites the session triple and
// enters a breadcrumb scope.
func (s *Server) handleExecute(ctx context.Context, c *Client, msg map[string]any, isPage bool) {
	raw, _ := msg["zpath"].(string)
	if raw == "" {
		raw, _ = msg["page"].(string)
	}
	p, err := zpath.Parse(raw)
	if err != nil {
		c.SendError("invalid_zpath", err.Error())
		return
	}
	b, err := s.loader.Block(p)
	if err != nil {
		c.SendError("load_error", err.Error())
		return
	}
	if isPage {
		s.sess.SetTriple(p.Triple())
		nav.NewCrumbs(s.sess).EnterScope(p.Scope(), p.Block())
	}

	engine := s.newEngine(NewDisplay(c))
	runner := engine.StartChunked(ctx, b, wizard.ExecOptions{})
	go s.pumpChunks(c, runner, p.Block())
}

// pumpChunks forwards chunks as render_chunk events and registers the
// runner whenever the run suspends, under both the pause key and the
// executing block's name so form_submit can address either.
func (s *Server) pumpChunks(c *Client, r *wizard.Runner, blockName string) {
	for {
		chunk, ok := r.Next()
		if !ok {
			break
		}
		fields := map[string]any{"keys": chunk.Keys, "is_gate": chunk.IsGate}
		if chunk.GateValue != nil {
			fields["value"] = chunk.GateValue
		}
		c.SendEvent("render_chunk", fields)

		if pauseKey := suspendKey(chunk); pauseKey != "" {
			c.SetRunner(pauseKey, r)
			if base := wizard.KeyBase(blockName); base != "" {
				c.SetRunner(base, r)
			}
		}
	}
	if err := r.Err(); err != nil && err != wizard.ErrCancelled {
		c.SendError("execution_error", err.Error())
	}
}

// suspendKey returns the key a suspended chunk pauses under, or "".
func suspendKey(chunk wizard.Chunk) string {
	paused := chunk.IsGate
	if m, ok := chunk.GateValue.(map[string]any); ok {
		if p, ok := m["_paused"].(bool); ok && p {
			paused = true
		}
	}
	if !paused || len(chunk.Keys) == 0 {
		return ""
	}
	return wizard.KeyBase(chunk.Keys[len(chunk.Keys)-1])
}

// handlePageUnload cancels any runs the departing page left suspended.
func (s *Server) handlePageUnload(c *Client, msg map[string]any) {
	reason, _ := msg["reason"].(string)
	logging.BridgeDebug("page_unload from %s: %s", c.ID, reason)
	c.CancelRunners()
}

func (s *Server) currentScope() string {
	p, err := zpath.FromTriple(s.sess.Triple())
	if err != nil {
		return ""
	}
	return p.Scope()
}
