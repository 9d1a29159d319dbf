package nav

import (
	"errors"
	"fmt"
	"strings"

	"zolo/internal/block"
	"zolo/internal/logging"
	"zolo/internal/session"
	"zolo/internal/zpath"
)

// ErrLinkDenied is returned when a link's permission predicate does not
// hold against the session's auth fields.
var ErrLinkDenied = errors.New("link permission check failed")

// Navigator performs scope transitions: following links forward and
// unwinding breadcrumbs backward. It is the only writer of the session's
// zPath triple.
type Navigator struct {
	sess   *session.Session
	loader *Loader
	crumbs *Crumbs
}

// NewNavigator creates a navigator over the session and loader.
func NewNavigator(s *session.Session, l *Loader) *Navigator {
	return &Navigator{sess: s, loader: l, crumbs: NewCrumbs(s)}
}

// Crumbs returns the breadcrumb state machine.
func (n *Navigator) Crumbs() *Crumbs { return n.crumbs }

// Loader returns the block loader.
func (n *Navigator) Loader() *Loader { return n.loader }

// ParseLink splits a zLink expression into its target path and required
// permission predicates. Accepted shapes: a bare path string, or an object
// with "target" (or "zpath") and an optional "require" mapping.
func ParseLink(expr any) (zpath.ZPath, map[string]any, error) {
	switch v := expr.(type) {
	case string:
		p, err := zpath.Parse(v)
		return p, nil, err
	case *block.Block:
		return parseLinkFields(func(name string) (any, bool) { return v.Get(name) })
	case map[string]any:
		return parseLinkFields(func(name string) (any, bool) { val, ok := v[name]; return val, ok })
	}
	return zpath.ZPath{}, nil, fmt.Errorf("unsupported zLink expression: %T", expr)
}

func parseLinkFields(get func(string) (any, bool)) (zpath.ZPath, map[string]any, error) {
	var raw string
	for _, name := range []string{"target", "zpath"} {
		if v, ok := get(name); ok {
			raw, _ = v.(string)
			break
		}
	}
	p, err := zpath.Parse(raw)
	if err != nil {
		return zpath.ZPath{}, nil, err
	}
	var require map[string]any
	if v, ok := get("require"); ok {
		switch r := v.(type) {
		case map[string]any:
			require = r
		case *block.Block:
			require = make(map[string]any, r.Len())
			for _, k := range r.Keys() {
				val, _ := r.Get(k)
				require[k] = val
			}
		}
	}
	return p, require, nil
}

// checkRequire verifies every required key equals the corresponding
// session zAuth field. Any mismatch or unknown field denies.
func (n *Navigator) checkRequire(require map[string]any) error {
	for key, want := range require {
		got, ok := n.sess.Lookup("zAuth." + key)
		if !ok {
			return fmt.Errorf("%w: unknown auth field %q", ErrLinkDenied, key)
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return fmt.Errorf("%w: field %q", ErrLinkDenied, key)
		}
	}
	return nil
}

// FollowLink resolves a zLink expression: permission check, target load,
// session triple rewrite, and breadcrumb scope entry. The caller re-enters
// the loop engine on the returned block.
func (n *Navigator) FollowLink(expr any) (*block.Block, zpath.ZPath, error) {
	p, require, err := ParseLink(expr)
	if err != nil {
		return nil, zpath.ZPath{}, err
	}
	if err := n.checkRequire(require); err != nil {
		return nil, zpath.ZPath{}, err
	}
	b, err := n.loader.Block(p)
	if err != nil {
		return nil, zpath.ZPath{}, err
	}
	n.sess.SetTriple(p.Triple())
	n.crumbs.EnterScope(p.Scope(), p.Block())
	logging.Nav("Followed link to %s", p)
	return b, p, nil
}

// Back pops the breadcrumb trail for scope and re-establishes the session
// triple and block for the resulting position. It returns the reloaded
// block and the key to resume at; a back target that no longer exists in
// the reloaded block falls through to "start from first" (empty key).
func (n *Navigator) Back(scope string) (*block.Block, string, error) {
	activeScope, target := n.crumbs.Pop(scope)
	if activeScope == "" {
		return nil, "", fmt.Errorf("no active scope to return to")
	}
	p, err := zpath.Parse(activeScope)
	if err != nil {
		return nil, "", fmt.Errorf("invalid crumb scope %q: %w", activeScope, err)
	}
	n.sess.SetTriple(p.Triple())
	b, err := n.loader.Block(p)
	if err != nil {
		return nil, "", err
	}
	if target != "" && !hasBaseKey(b, target) {
		logging.NavDebug("back target %q gone from %s; starting from first", target, p)
		target = ""
	}
	return b, target, nil
}

// hasBaseKey matches a crumb (a base name) against the block's possibly
// decorated keys.
func hasBaseKey(b *block.Block, name string) bool {
	if b.Has(name) {
		return true
	}
	for _, k := range b.Keys() {
		if block.BaseKey(k) == name {
			return true
		}
	}
	return false
}

// Banner renders the active scope's trail for display.
func (n *Navigator) Banner() string {
	scope := n.crumbs.ActiveScope()
	if scope == "" {
		return ""
	}
	return strings.Join(n.sess.Trail(scope), " > ")
}
