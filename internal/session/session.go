// Package session holds the process-wide session state shared by the loop
// engine, navigation, and the bridge. The session is a single logical
// object; concurrent readers take snapshots and every mutation goes
// through a mutator method, so ownership stays with the navigation and
// config components.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Mode selects the execution strategy for the loop engine.
type Mode string

const (
	ModeTerminal Mode = "Terminal"
	ModeWalker   Mode = "Walker"
	ModeBifrost  Mode = "Bifrost"
	ModeEmpty    Mode = "Empty"
)

// AuthContext names the active auth tier.
type AuthContext string

const (
	AuthContextSession     AuthContext = "zSession"
	AuthContextApplication AuthContext = "application"
	AuthContextDual        AuthContext = "dual"
	AuthContextGuest       AuthContext = "guest"
)

// Identity describes one authenticated principal.
type Identity struct {
	UserID        string   `yaml:"user_id" json:"user_id"`
	Authenticated bool     `yaml:"authenticated" json:"authenticated"`
	Roles         []string `yaml:"roles" json:"roles"`
	Permissions   []string `yaml:"permissions" json:"permissions"`
}

// Auth is the three-tier auth state: a session-level identity, per-application
// identities, and an active context selecting which tier (or both) applies.
type Auth struct {
	ActiveContext AuthContext         `yaml:"active_context" json:"active_context"`
	ActiveApp     string              `yaml:"active_app" json:"active_app"`
	ZSession      Identity            `yaml:"zSession" json:"zSession"`
	Applications  map[string]Identity `yaml:"applications" json:"applications"`
}

// Active returns the identity the active context selects. In dual context
// the session identity wins for identity questions; application grants are
// merged by the auth package.
func (a *Auth) Active() Identity {
	switch a.ActiveContext {
	case AuthContextApplication:
		if id, ok := a.Applications[a.ActiveApp]; ok {
			return id
		}
		return Identity{}
	case AuthContextGuest:
		return Identity{}
	default:
		return a.ZSession
	}
}

// Session is the process-wide keyed state. zVaFolder/zVaFile/zBlock form the
// current zPath triple; zCrumbs is the breadcrumb store owned here and
// mutated only through the navigation component.
type Session struct {
	mu sync.RWMutex

	mode   Mode
	folder string // zVaFolder
	file   string // zVaFile
	block  string // zBlock

	auth Auth

	// Breadcrumbs: scope -> ordered trail, plus scope insertion order so
	// POP on an emptied scope can fall back to its parent.
	crumbScopes []string
	crumbs      map[string][]string

	// zSpark start-time defaults and zCache metadata, both opaque to the core.
	spark map[string]any
	cache map[string]any
}

// New creates a session in Empty mode.
func New() *Session {
	return &Session{
		mode:   ModeEmpty,
		crumbs: make(map[string][]string),
		spark:  make(map[string]any),
		cache:  make(map[string]any),
		auth:   Auth{ActiveContext: AuthContextGuest, Applications: make(map[string]Identity)},
	}
}

// NewID generates a hierarchical session id of the form zS_xxxx:zB_xxxx.
func NewID() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("zS_%s:zB_%s", s[:8], s[8:16])
}

// Mode returns the current execution mode.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches execution mode.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// Triple returns the current (folder, file, block) zPath triple.
func (s *Session) Triple() (folder, file, block string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folder, s.file, s.block
}

// SetTriple rewrites the zPath triple. Called by navigation on link follow
// and breadcrumb POP.
func (s *Session) SetTriple(folder, file, block string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folder, s.file, s.block = folder, file, block
}

// Auth returns a copy of the auth state.
func (s *Session) Auth() Auth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.auth
	apps := make(map[string]Identity, len(a.Applications))
	for k, v := range a.Applications {
		apps[k] = v
	}
	a.Applications = apps
	return a
}

// SetAuth replaces the auth state.
func (s *Session) SetAuth(a Auth) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Applications == nil {
		a.Applications = make(map[string]Identity)
	}
	s.auth = a
}

// Logout clears auth state and resets breadcrumbs.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = Auth{ActiveContext: AuthContextGuest, Applications: make(map[string]Identity)}
	s.crumbScopes = nil
	s.crumbs = make(map[string][]string)
}

// Spark returns a start-time default by name.
func (s *Session) Spark(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.spark[key]
	return v, ok
}

// SetSpark records a start-time default.
func (s *Session) SetSpark(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spark[key] = v
}

// CacheMeta returns cache metadata mirrored into the session. Live schema
// handles are never stored here, only serialisable metadata.
func (s *Session) CacheMeta(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

// SetCacheMeta records cache metadata.
func (s *Session) SetCacheMeta(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = v
}

// Lookup resolves a dotted session reference used by variable interpolation
// (e.g. "zMode", "zVaFile", "zAuth.active_app", "zSpark.editor").
func (s *Session) Lookup(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segs := strings.SplitN(path, ".", 2)
	switch segs[0] {
	case "zMode":
		return string(s.mode), true
	case "zVaFolder":
		return s.folder, true
	case "zVaFile":
		return s.file, true
	case "zBlock":
		return s.block, true
	case "zAuth":
		if len(segs) == 1 {
			return s.auth, true
		}
		return lookupAuth(s.auth, segs[1])
	case "zSpark":
		if len(segs) == 1 {
			return s.spark, true
		}
		v, ok := s.spark[segs[1]]
		return v, ok
	case "zCache":
		if len(segs) == 1 {
			return s.cache, true
		}
		v, ok := s.cache[segs[1]]
		return v, ok
	case "session_hash":
		return s.hashLocked(), true
	}
	return nil, false
}

func lookupAuth(a Auth, path string) (any, bool) {
	switch path {
	case "active_context":
		return string(a.ActiveContext), true
	case "active_app":
		return a.ActiveApp, true
	case "user_id":
		return a.Active().UserID, true
	case "authenticated":
		return a.Active().Authenticated, true
	}
	return nil, false
}

// Hash returns a stable sha256 over the public session fields, used for
// cache invalidation and exposed in connection_info.
func (s *Session) Hash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hashLocked()
}

func (s *Session) hashLocked() string {
	h := sha256.New()
	fmt.Fprintf(h, "mode=%s|folder=%s|file=%s|block=%s|", s.mode, s.folder, s.file, s.block)
	fmt.Fprintf(h, "ctx=%s|app=%s|user=%s|", s.auth.ActiveContext, s.auth.ActiveApp, s.auth.ZSession.UserID)
	scopes := append([]string(nil), s.crumbScopes...)
	sort.Strings(scopes)
	for _, sc := range scopes {
		fmt.Fprintf(h, "crumb:%s=%s|", sc, strings.Join(s.crumbs[sc], ">"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
