package block

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"zolo/internal/logging"
)

// Document is an ordered mapping of top-level block names to blocks,
// parsed from one YAML file.
type Document struct {
	Path   string
	blocks *Block
}

// LoadDocument parses a YAML workspace file into an ordered document.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read block file: %w", err)
	}
	return ParseDocument(path, data)
}

// ParseDocument parses YAML bytes into an ordered document.
func ParseDocument(path string, data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse block file %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return &Document{Path: path, blocks: New()}, nil
	}

	top := New()
	if err := top.UnmarshalYAML(root.Content[0]); err != nil {
		return nil, fmt.Errorf("failed to decode blocks in %s: %w", path, err)
	}

	logging.Get(logging.CategoryCache).Debug("Loaded document %s (%d top-level blocks)", path, top.Len())
	return &Document{Path: path, blocks: top}, nil
}

// Block returns the named top-level block.
func (d *Document) Block(name string) (*Block, bool) {
	v, ok := d.blocks.Get(name)
	if !ok {
		return nil, false
	}
	b, ok := v.(*Block)
	return b, ok
}

// FirstBlock returns the first top-level block and its name.
func (d *Document) FirstBlock() (string, *Block, bool) {
	for _, name := range d.blocks.Keys() {
		if b, ok := d.Block(name); ok {
			return name, b, true
		}
	}
	return "", nil, false
}

// BlockNames lists top-level block names in author order.
func (d *Document) BlockNames() []string {
	return d.blocks.Keys()
}
