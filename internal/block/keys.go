package block

import "strings"

// Metadata and key-shape conventions. Keys carry semantics by shape:
//
//	leading "_"  metadata, never executed
//	"~"          anchored (persists across navigation, POP_TO target)
//	"*"          menu (presents choices, pauses for input)
//	"!"          gate (chunk boundary in progressive mode)
//	leading "^"  interactive / form-producing step
const (
	MetaData        = "_data"
	MetaTransaction = "_transaction"
	MetaConfig      = "_config"
	MetaRBAC        = "zRBAC"
)

// IsMeta reports whether key is a metadata key (leading underscore).
func IsMeta(key string) bool {
	return strings.HasPrefix(key, "_")
}

// IsAnchor reports whether key is anchored.
func IsAnchor(key string) bool {
	return strings.Contains(key, "~")
}

// IsMenu reports whether key is a menu.
func IsMenu(key string) bool {
	return strings.Contains(key, "*")
}

// IsGate reports whether key is a gate (chunk boundary).
func IsGate(key string) bool {
	return strings.Contains(key, "!")
}

// IsInteractive reports whether key is an interactive/form step.
func IsInteractive(key string) bool {
	return strings.HasPrefix(key, "^")
}

// IsAnchoredMenu reports whether key is both anchored and a menu.
// Anchored menus loop until explicitly exited and are POP_TO targets.
func IsAnchoredMenu(key string) bool {
	return IsAnchor(key) && IsMenu(key)
}

// BaseKey strips the shape markers from key. Breadcrumbs, chunk keys,
// and wire payloads carry base names; the decorated form lives only in
// the block itself.
func BaseKey(key string) string {
	key = strings.TrimPrefix(key, "^")
	key = strings.ReplaceAll(key, "~", "")
	key = strings.ReplaceAll(key, "*", "")
	return strings.ReplaceAll(key, "!", "")
}
