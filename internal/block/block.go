// Package block defines the ordered key/value block that the loop engine
// executes, the key-shape conventions that carry semantics, and the YAML
// loader that preserves author order.
package block

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Block is an ordered mapping from string keys to step values.
// Key order is preserved on load and on iteration. A block is immutable
// during execution; only the workflow accumulator grows.
type Block struct {
	keys   []string
	values map[string]any
}

// New returns an empty block.
func New() *Block {
	return &Block{values: make(map[string]any)}
}

// Set appends a key/value pair. Re-setting an existing key replaces the
// value but keeps the original position.
func (b *Block) Set(key string, value any) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

// Get returns the value for key.
func (b *Block) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not mutate it.
func (b *Block) Keys() []string {
	return b.keys
}

// Len returns the number of keys.
func (b *Block) Len() int {
	return len(b.keys)
}

// At returns the key/value pair at position i.
func (b *Block) At(i int) (string, any) {
	k := b.keys[i]
	return k, b.values[k]
}

// IndexOf returns the position of key, or -1.
func (b *Block) IndexOf(key string) int {
	for i, k := range b.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Has reports whether key is present.
func (b *Block) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// ExecutableKeys returns the keys with metadata keys (leading underscore
// and zRBAC) filtered out, preserving order.
func (b *Block) ExecutableKeys() []string {
	out := make([]string, 0, len(b.keys))
	for _, k := range b.keys {
		if IsMeta(k) || k == MetaRBAC {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Nested returns the value at key as a nested *Block, if it is one.
func (b *Block) Nested(key string) (*Block, bool) {
	v, ok := b.values[key]
	if !ok {
		return nil, false
	}
	nb, ok := v.(*Block)
	return nb, ok
}

// UnmarshalYAML decodes a YAML mapping node into an ordered block.
// Nested mappings become nested *Block values so order survives at
// every depth; sequences and scalars decode to plain Go values.
func (b *Block) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("block must be a mapping, got %v at line %d", node.Kind, node.Line)
	}
	b.values = make(map[string]any, len(node.Content)/2)
	b.keys = b.keys[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		var key string
		if err := keyNode.Decode(&key); err != nil {
			return fmt.Errorf("block key at line %d: %w", keyNode.Line, err)
		}
		val, err := decodeValue(valNode)
		if err != nil {
			return fmt.Errorf("block value for %q: %w", key, err)
		}
		b.Set(key, val)
	}
	return nil
}

// decodeValue converts a YAML node into a step value: *Block for mappings,
// []any for sequences, scalar Go value otherwise.
func decodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		nb := New()
		if err := nb.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return nb, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.AliasNode:
		return decodeValue(node.Alias)
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// MarshalYAML renders the block back out in key order.
func (b *Block) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range b.keys {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(k); err != nil {
			return nil, err
		}
		valNode := &yaml.Node{}
		if err := valNode.Encode(b.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}
