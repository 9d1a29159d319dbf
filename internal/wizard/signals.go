// Package wizard is the loop engine: it iterates ordered blocks, gates
// each step on RBAC, interpolates variables, dispatches by step shape,
// and interprets the navigation signals steps return. Two strategies
// exist: sequential (Terminal/Walker) and chunked (Bifrost).
package wizard

import "zolo/internal/block"

// Signal is a navigation value a step may return to redirect control.
type Signal string

const (
	SignalNone  Signal = ""
	SignalBack  Signal = "zBack"
	SignalExit  Signal = "exit"
	SignalStop  Signal = "stop"
	SignalError Signal = "error"
)

// IsSignal reports whether s is in the closed signal set. The empty
// string is a member (no-op signal).
func IsSignal(s string) bool {
	switch Signal(s) {
	case SignalNone, SignalBack, SignalExit, SignalStop, SignalError:
		return true
	}
	return false
}

// Terminating reports whether a signal ends the current loop.
func (s Signal) Terminating() bool {
	return s == SignalBack || s == SignalExit || s == SignalStop || s == SignalError
}

// Normalize maps a step result onto the signal set. A bare signal string
// is itself; a mapping with exactly one key from the signal set collapses
// to that signal ({zBack: anything} behaves like "zBack"); everything
// else is not a signal.
func Normalize(result any) (Signal, bool) {
	switch v := result.(type) {
	case string:
		if IsSignal(v) && v != "" {
			return Signal(v), true
		}
	case Signal:
		if v != SignalNone {
			return v, true
		}
	case map[string]any:
		if len(v) == 1 {
			for k := range v {
				if IsSignal(k) && k != "" {
					return Signal(k), true
				}
			}
		}
	case *block.Block:
		if v.Len() == 1 {
			k := v.Keys()[0]
			if IsSignal(k) && k != "" {
				return Signal(k), true
			}
		}
	}
	return SignalNone, false
}
