package auth

import "zolo/internal/session"

// Local is the bundled authenticator. It answers from the session's auth
// state directly: the active identity's flags and grants, with dual
// context merging application grants on top of the session identity.
type Local struct{}

// NewLocal returns the bundled session-backed authenticator.
func NewLocal() *Local {
	return &Local{}
}

// Authenticated reports whether the active identity is authenticated.
func (l *Local) Authenticated(a session.Auth) bool {
	if a.ActiveContext == session.AuthContextGuest {
		return false
	}
	if a.ActiveContext == session.AuthContextDual {
		app, ok := a.Applications[a.ActiveApp]
		return a.ZSession.Authenticated && ok && app.Authenticated
	}
	return a.Active().Authenticated
}

// HasRole reports whether any identity the active context selects carries
// the role.
func (l *Local) HasRole(a session.Auth, role string) bool {
	for _, id := range l.identities(a) {
		for _, r := range id.Roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// HasPermission reports whether any identity the active context selects
// carries the permission.
func (l *Local) HasPermission(a session.Auth, perm string) bool {
	for _, id := range l.identities(a) {
		for _, p := range id.Permissions {
			if p == perm {
				return true
			}
		}
	}
	return false
}

func (l *Local) identities(a session.Auth) []session.Identity {
	switch a.ActiveContext {
	case session.AuthContextDual:
		ids := []session.Identity{a.ZSession}
		if app, ok := a.Applications[a.ActiveApp]; ok {
			ids = append(ids, app)
		}
		return ids
	case session.AuthContextGuest:
		return nil
	default:
		return []session.Identity{a.Active()}
	}
}
