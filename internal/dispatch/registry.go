// Package dispatch routes classified step values to their collaborators
// and holds the function registry behind &fname calls.
package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"zolo/internal/logging"
)

// Func is a registered callable reachable from workflows as &fname.
type Func func(args ...any) (any, error)

// Registry maps function names to callables. Plugin modules register
// their exports here when loaded.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register binds name to fn, replacing any previous binding.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
	logging.DispatchDebug("registered function &%s", name)
}

// Lookup returns the function bound to name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Call invokes a registered function by name.
func (r *Registry) Call(name string, args ...any) (any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown function: &%s", name)
	}
	return fn(args...)
}

// Names lists registered function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	return out
}

// IsCallExpr reports whether s looks like a &fname or &fname(args) call.
func IsCallExpr(s string) bool {
	return strings.HasPrefix(s, "&") && len(s) > 1
}

// ParseCall splits "&fname(a, 'b', 3)" into the function name and its
// argument list. A bare "&fname" yields no arguments.
func ParseCall(expr string) (name string, args []any, err error) {
	if !IsCallExpr(expr) {
		return "", nil, fmt.Errorf("not a function call: %s", expr)
	}
	body := expr[1:]
	open := strings.IndexByte(body, '(')
	if open < 0 {
		return body, nil, nil
	}
	if !strings.HasSuffix(body, ")") {
		return "", nil, fmt.Errorf("unterminated function call: %s", expr)
	}
	name = body[:open]
	inner := strings.TrimSpace(body[open+1 : len(body)-1])
	if inner == "" {
		return name, nil, nil
	}
	for _, raw := range splitArgs(inner) {
		args = append(args, parseArg(strings.TrimSpace(raw)))
	}
	return name, args, nil
}

// splitArgs splits on commas outside quotes.
func splitArgs(s string) []string {
	var out []string
	var b strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == ',':
			out = append(out, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	out = append(out, b.String())
	return out
}

// parseArg interprets one literal argument: quoted string, bool, number,
// or bare string.
func parseArg(raw string) any {
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			return raw[1 : len(raw)-1]
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
