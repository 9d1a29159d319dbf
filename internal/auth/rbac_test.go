package auth

import (
	"testing"

	"zolo/internal/session"
)

func sessionAuth(authenticated bool, roles, perms []string) session.Auth {
	return session.Auth{
		ActiveContext: session.AuthContextSession,
		ZSession: session.Identity{
			UserID:        "ada",
			Authenticated: authenticated,
			Roles:         roles,
			Permissions:   perms,
		},
		Applications: map[string]session.Identity{},
	}
}

func TestParseRequirementScalarsBecomeLists(t *testing.T) {
	req := ParseRequirement(map[string]any{
		"require_role":       "admin",
		"require_permission": []any{"read", "write"},
	})
	if len(req.RequireRole) != 1 || req.RequireRole[0] != "admin" {
		t.Errorf("RequireRole = %v", req.RequireRole)
	}
	if len(req.RequirePermission) != 2 {
		t.Errorf("RequirePermission = %v", req.RequirePermission)
	}
	if !req.RequireAuth {
		t.Error("role requirement must imply require_auth")
	}
}

func TestEvaluateFailSafeWithoutAuthenticator(t *testing.T) {
	req := ParseRequirement(map[string]any{"require_auth": true})
	if d := Evaluate(req, nil, sessionAuth(true, nil, nil)); d != Denied {
		t.Errorf("no authenticator = %v, want Denied", d)
	}
	// An empty requirement stays granted even with nothing wired.
	if d := Evaluate(nil, nil, sessionAuth(false, nil, nil)); d != Granted {
		t.Errorf("empty requirement = %v, want Granted", d)
	}
}

func TestEvaluateDecisions(t *testing.T) {
	authn := NewLocal()
	tests := []struct {
		name string
		req  map[string]any
		auth session.Auth
		want Decision
	}{
		{"guest page blocks authenticated", map[string]any{"zGuest": true}, sessionAuth(true, nil, nil), DeniedGuest},
		{"guest page admits guests", map[string]any{"zGuest": true}, sessionAuth(false, nil, nil), Granted},
		{"auth required denies guests", map[string]any{"require_auth": true}, sessionAuth(false, nil, nil), Denied},
		{"auth required admits users", map[string]any{"require_auth": true}, sessionAuth(true, nil, nil), Granted},
		{"role matches one-of", map[string]any{"require_role": []any{"admin", "editor"}}, sessionAuth(true, []string{"editor"}, nil), Granted},
		{"role mismatch denies", map[string]any{"require_role": "admin"}, sessionAuth(true, []string{"viewer"}, nil), Denied},
		{"permission matches", map[string]any{"require_permission": "users.read"}, sessionAuth(true, nil, []string{"users.read"}), Granted},
		{"permission mismatch denies", map[string]any{"require_permission": "users.write"}, sessionAuth(true, nil, []string{"users.read"}), Denied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(ParseRequirement(tt.req), authn, tt.auth)
			if got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDualContextMergesGrants(t *testing.T) {
	authn := NewLocal()
	a := session.Auth{
		ActiveContext: session.AuthContextDual,
		ActiveApp:     "crm",
		ZSession:      session.Identity{UserID: "ada", Authenticated: true, Roles: []string{"user"}},
		Applications: map[string]session.Identity{
			"crm": {UserID: "ada", Authenticated: true, Roles: []string{"crm-admin"}},
		},
	}
	if !authn.HasRole(a, "user") {
		t.Error("dual context should keep session roles")
	}
	if !authn.HasRole(a, "crm-admin") {
		t.Error("dual context should merge application roles")
	}
}
