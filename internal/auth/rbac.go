// Package auth evaluates the zRBAC access-control metadata attached to
// steps and blocks. Evaluation sits on the hot path before every dispatch,
// so the absence of zRBAC short-circuits immediately.
package auth

import (
	"zolo/internal/block"
	"zolo/internal/logging"
	"zolo/internal/session"
)

// Decision is the outcome of an RBAC check.
type Decision int

const (
	Granted     Decision = iota
	Denied               // step is skipped
	DeniedGuest          // authenticated user hit a zGuest-only step; block returns zBack
)

// Requirement is the parsed zRBAC metadata.
// Role/permission lists mean "one of"; a role or permission requirement
// implies require_auth. zGuest=true denies authenticated users (login pages).
type Requirement struct {
	RequireAuth       bool
	RequireRole       []string
	RequirePermission []string
	ZGuest            bool
}

// Empty reports whether the requirement imposes nothing.
func (r *Requirement) Empty() bool {
	return r == nil || (!r.RequireAuth && !r.ZGuest && len(r.RequireRole) == 0 && len(r.RequirePermission) == 0)
}

// Authenticator is the auth collaborator consulted during evaluation.
type Authenticator interface {
	Authenticated(a session.Auth) bool
	HasRole(a session.Auth, role string) bool
	HasPermission(a session.Auth, perm string) bool
}

// ParseRequirement reads a zRBAC value (a nested block or map) into a
// Requirement. Scalar role/permission values are accepted as one-element
// lists. A nil value yields nil.
func ParseRequirement(v any) *Requirement {
	if v == nil {
		return nil
	}
	get := func(key string) (any, bool) {
		switch val := v.(type) {
		case *block.Block:
			return val.Get(key)
		case map[string]any:
			out, ok := val[key]
			return out, ok
		}
		return nil, false
	}

	req := &Requirement{}
	if raw, ok := get("require_auth"); ok {
		if b, ok := raw.(bool); ok {
			req.RequireAuth = b
		}
	}
	if raw, ok := get("zGuest"); ok {
		if b, ok := raw.(bool); ok {
			req.ZGuest = b
		}
	}
	req.RequireRole = stringList(get("require_role"))
	req.RequirePermission = stringList(get("require_permission"))

	// Role or permission implies auth.
	if len(req.RequireRole) > 0 || len(req.RequirePermission) > 0 {
		req.RequireAuth = true
	}
	return req
}

func stringList(v any, ok bool) []string {
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	}
	return nil
}

// Evaluate checks a requirement against the session auth state. With no
// auth collaborator wired at all, any non-empty requirement denies
// (fail-safe bias).
func Evaluate(req *Requirement, authn Authenticator, a session.Auth) Decision {
	if req.Empty() {
		return Granted
	}
	if authn == nil {
		logging.Get(logging.CategorySession).Warn("RBAC requirement present but no auth collaborator wired; denying")
		return Denied
	}

	authed := authn.Authenticated(a)

	// zGuest pages deny authenticated users first.
	if req.ZGuest {
		if authed {
			return DeniedGuest
		}
		return Granted
	}

	if req.RequireAuth && !authed {
		return Denied
	}

	if len(req.RequireRole) > 0 {
		matched := false
		for _, role := range req.RequireRole {
			if authn.HasRole(a, role) {
				matched = true
				break
			}
		}
		if !matched {
			return Denied
		}
	}

	if len(req.RequirePermission) > 0 {
		matched := false
		for _, perm := range req.RequirePermission {
			if authn.HasPermission(a, perm) {
				matched = true
				break
			}
		}
		if !matched {
			return Denied
		}
	}

	return Granted
}

// FromStep extracts and parses the zRBAC metadata on a step value.
func FromStep(stepValue any) *Requirement {
	raw, ok := block.RBACValue(stepValue)
	if !ok {
		return nil
	}
	return ParseRequirement(raw)
}
