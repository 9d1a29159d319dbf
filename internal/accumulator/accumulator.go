// Package accumulator provides the ordered, append-only result container
// a workflow carries while it executes. Every step result is reachable
// three ways - by insertion index, by step key, and by attribute-style
// lookup - and all three return the identical object.
package accumulator

import "fmt"

// Accumulator maps step key -> step result, additionally indexable by
// insertion position. Appending is O(1); a key is never rebound.
type Accumulator struct {
	keys    []string
	results map[string]any
}

// New creates an empty accumulator for a top-level workflow.
func New() *Accumulator {
	return &Accumulator{results: make(map[string]any)}
}

// Append records a step result under key. Re-appending an existing key is
// an error: results are immutable once recorded.
func (a *Accumulator) Append(key string, result any) error {
	if _, exists := a.results[key]; exists {
		return fmt.Errorf("accumulator key already bound: %s", key)
	}
	a.keys = append(a.keys, key)
	a.results[key] = result
	return nil
}

// ByKey returns the result recorded under key.
func (a *Accumulator) ByKey(key string) (any, bool) {
	v, ok := a.results[key]
	return v, ok
}

// ByIndex returns the result at insertion position i.
func (a *Accumulator) ByIndex(i int) (any, bool) {
	if i < 0 || i >= len(a.keys) {
		return nil, false
	}
	return a.results[a.keys[i]], true
}

// Attr is the attribute-style view: a dotted path walks into nested
// results ("user.name" reads field "name" of the result under "user").
// A bare key behaves exactly like ByKey.
func (a *Accumulator) Attr(path string) (any, bool) {
	return walkPath(a.resolveRoot, path)
}

func (a *Accumulator) resolveRoot(key string) (any, bool) {
	return a.ByKey(key)
}

// Len returns the number of recorded results.
func (a *Accumulator) Len() int {
	return len(a.keys)
}

// Keys returns the step keys in execution order.
func (a *Accumulator) Keys() []string {
	return a.keys
}

// Last returns the most recently appended key and result.
func (a *Accumulator) Last() (string, any, bool) {
	if len(a.keys) == 0 {
		return "", nil, false
	}
	k := a.keys[len(a.keys)-1]
	return k, a.results[k], true
}
