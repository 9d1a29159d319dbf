// Package nav owns the navigation state machine: breadcrumb trails, link
// following, and the menu subsystem. The session stores the raw trails;
// every transition goes through this package.
package nav

import (
	"strings"

	"zolo/internal/logging"
	"zolo/internal/session"
)

// Crumbs is the breadcrumb state machine over the session's trail store.
// Scopes stack in creation order; the first scope is the root and is never
// dropped.
type Crumbs struct {
	sess *session.Session
}

// NewCrumbs wraps the session's trail store.
func NewCrumbs(s *session.Session) *Crumbs {
	return &Crumbs{sess: s}
}

// Append records key at the end of the scope's trail unless it already is
// the last entry (menu re-entry must not stutter the trail).
func (c *Crumbs) Append(scope, key string) {
	trail := c.sess.Trail(scope)
	if n := len(trail); n > 0 && trail[n-1] == key {
		return
	}
	trail = append(trail, key)
	c.sess.SetTrail(scope, trail)
	logging.NavDebug("crumb append %s <- %s", scope, key)
}

// Pop removes the last trail entry for scope. When the trail is already
// empty and the scope is not the root, the scope itself is dropped and the
// parent trail loses its last element (the link that opened this scope).
// Pop returns the scope that is active afterwards and the back target: the
// new last entry of the active trail, or "" when none remains.
func (c *Crumbs) Pop(scope string) (activeScope, backTarget string) {
	trail := c.sess.Trail(scope)
	if len(trail) > 0 {
		trail = trail[:len(trail)-1]
		c.sess.SetTrail(scope, trail)
		return scope, lastOf(trail)
	}

	scopes := c.sess.Scopes()
	if len(scopes) == 0 || scopes[0] == scope {
		// Root scope with an empty trail: nowhere further back.
		return scope, ""
	}
	parent := c.sess.ParentScope(scope)
	c.sess.DropScope(scope)
	if parent == "" {
		return scope, ""
	}
	parentTrail := c.sess.Trail(parent)
	if len(parentTrail) > 0 {
		parentTrail = parentTrail[:len(parentTrail)-1]
		c.sess.SetTrail(parent, parentTrail)
	}
	logging.NavDebug("crumb pop: dropped scope %s, active %s", scope, parent)
	return parent, lastOf(parentTrail)
}

// PopTo truncates the scope's trail so key becomes its last entry. Unknown
// keys leave the trail untouched; repeating the call is a no-op.
func (c *Crumbs) PopTo(scope, key string) bool {
	trail := c.sess.Trail(scope)
	for i := len(trail) - 1; i >= 0; i-- {
		if trail[i] == key {
			c.sess.SetTrail(scope, trail[:i+1])
			return true
		}
	}
	return false
}

// Trail returns a copy of the scope's trail.
func (c *Crumbs) Trail(scope string) []string {
	return c.sess.Trail(scope)
}

// EnterScope registers a new scope with key as its first trail entry.
func (c *Crumbs) EnterScope(scope, key string) {
	if !c.sess.HasScope(scope) {
		c.sess.SetTrail(scope, nil)
	}
	c.Append(scope, key)
}

// ActiveScope returns the most recently created scope, or "".
func (c *Crumbs) ActiveScope() string {
	scopes := c.sess.Scopes()
	if len(scopes) == 0 {
		return ""
	}
	return scopes[len(scopes)-1]
}

// Banner materialises each scope's trail as "k1 > k2 > … > kn", keyed by
// scope, for the display collaborator.
func (c *Crumbs) Banner() map[string]string {
	out := make(map[string]string)
	for _, scope := range c.sess.Scopes() {
		out[scope] = strings.Join(c.sess.Trail(scope), " > ")
	}
	return out
}

func lastOf(trail []string) string {
	if len(trail) == 0 {
		return ""
	}
	return trail[len(trail)-1]
}
