package session

// Raw breadcrumb accessors. The navigation component owns the breadcrumb
// state machine (APPEND/POP/POP_TO semantics); the session only stores the
// scope -> trail mapping and the scope insertion order.

// Trail returns a copy of the trail for scope.
func (s *Session) Trail(scope string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.crumbs[scope]...)
}

// SetTrail replaces the trail for scope, registering the scope on first use.
func (s *Session) SetTrail(scope string, trail []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.crumbs[scope]; !ok {
		s.crumbScopes = append(s.crumbScopes, scope)
	}
	s.crumbs[scope] = append([]string(nil), trail...)
}

// DropScope removes a scope and its trail entirely.
func (s *Session) DropScope(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.crumbs, scope)
	for i, sc := range s.crumbScopes {
		if sc == scope {
			s.crumbScopes = append(s.crumbScopes[:i], s.crumbScopes[i+1:]...)
			break
		}
	}
}

// Scopes returns the crumb scopes in creation order. The first scope is
// the root scope, which POP never removes.
func (s *Session) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.crumbScopes...)
}

// HasScope reports whether a trail exists for scope.
func (s *Session) HasScope(scope string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.crumbs[scope]
	return ok
}

// ParentScope returns the scope registered immediately before the given
// one, or "" when the scope is the root or unknown.
func (s *Session) ParentScope(scope string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, sc := range s.crumbScopes {
		if sc == scope && i > 0 {
			return s.crumbScopes[i-1]
		}
	}
	return ""
}
