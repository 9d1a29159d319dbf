package wizard

import (
	"testing"

	"zolo/internal/block"
)

func TestNormalizeSignals(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Signal
		ok   bool
	}{
		{"bare zBack", "zBack", SignalBack, true},
		{"bare exit", "exit", SignalExit, true},
		{"bare stop", "stop", SignalStop, true},
		{"bare error", "error", SignalError, true},
		{"single-key map collapses", map[string]any{"zBack": "whatever"}, SignalBack, true},
		{"single-key map with nil payload", map[string]any{"exit": nil}, SignalExit, true},
		{"two-key map is not a signal", map[string]any{"zBack": 1, "exit": 2}, SignalNone, false},
		{"non-signal key", map[string]any{"jump": "B"}, SignalNone, false},
		{"plain string", "B", SignalNone, false},
		{"empty string", "", SignalNone, false},
		{"list", []any{"zBack"}, SignalNone, false},
		{"nil", nil, SignalNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Normalize(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalizeBlockValue(t *testing.T) {
	b := block.New()
	b.Set("zBack", true)
	if sig, ok := Normalize(b); !ok || sig != SignalBack {
		t.Errorf("single-key block = %v, %v", sig, ok)
	}
	b.Set("other", 1)
	if _, ok := Normalize(b); ok {
		t.Error("two-key block must not normalise")
	}
}

func TestKeyBase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"home~*", "home"},
		{"ask!", "ask"},
		{"^form", "form"},
		{"plain", "plain"},
		{"pick*", "pick"},
	}
	for _, tt := range tests {
		if got := KeyBase(tt.in); got != tt.want {
			t.Errorf("KeyBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
