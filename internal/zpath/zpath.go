// Package zpath implements the dotted absolute path grammar used to address
// blocks within a workspace: "@" is the workspace root, dotted segments map
// to directories and files, and the final segment names the block.
// Example: "@.UI.zUI.index" is block "index" in file "zUI.yaml" under "UI/".
package zpath

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Root is the literal that anchors every zPath at the workspace root.
const Root = "@"

// ZPath is a parsed, validated path. Segments never include the root marker.
type ZPath struct {
	Segments []string
}

// Parse parses and validates a zPath expression.
// A fully-qualified block scope needs at least three segments
// (folder, file, block); shorter paths are rejected here so the
// navigation layer can assume the precondition holds.
func Parse(raw string) (ZPath, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ZPath{}, fmt.Errorf("empty zPath")
	}
	if !strings.HasPrefix(raw, Root) {
		return ZPath{}, fmt.Errorf("zPath must start with %q: %s", Root, raw)
	}
	rest := strings.TrimPrefix(raw, Root)
	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return ZPath{}, fmt.Errorf("zPath has no segments: %s", raw)
	}
	segs := strings.Split(rest, ".")
	for _, s := range segs {
		if s == "" {
			return ZPath{}, fmt.Errorf("zPath has empty segment: %s", raw)
		}
	}
	if len(segs) < 3 {
		return ZPath{}, fmt.Errorf("zPath needs at least 3 segments (folder.file.block): %s", raw)
	}
	return ZPath{Segments: segs}, nil
}

// MustParse is Parse for statically known paths; it panics on error.
func MustParse(raw string) ZPath {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Folder returns the dotted folder portion (all segments before the file).
func (p ZPath) Folder() string {
	if len(p.Segments) < 3 {
		return ""
	}
	return strings.Join(p.Segments[:len(p.Segments)-2], ".")
}

// File returns the file segment.
func (p ZPath) File() string {
	if len(p.Segments) < 2 {
		return ""
	}
	return p.Segments[len(p.Segments)-2]
}

// Block returns the block name segment.
func (p ZPath) Block() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// Triple returns the (folder, file, block) triple mirrored into the session.
func (p ZPath) Triple() (folder, file, block string) {
	return p.Folder(), p.File(), p.Block()
}

// String renders the canonical form.
func (p ZPath) String() string {
	return Root + "." + strings.Join(p.Segments, ".")
}

// FilePath resolves the on-disk YAML document the path addresses,
// relative to the given workspace root.
func (p ZPath) FilePath(workspace string) string {
	parts := append([]string{workspace}, p.Segments[:len(p.Segments)-1]...)
	return filepath.Join(parts...) + ".yaml"
}

// Scope returns the fully-qualified scope string used as a breadcrumb key.
func (p ZPath) Scope() string {
	return p.String()
}

// FromTriple builds a ZPath from a session triple. The folder portion may
// itself be dotted.
func FromTriple(folder, file, block string) (ZPath, error) {
	if folder == "" || file == "" || block == "" {
		return ZPath{}, fmt.Errorf("incomplete triple (%q, %q, %q)", folder, file, block)
	}
	raw := Root + "." + folder + "." + file + "." + block
	return Parse(raw)
}
