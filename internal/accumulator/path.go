package accumulator

import (
	"strconv"
	"strings"

	"zolo/internal/block"
)

// walkPath resolves a dotted path: the first segment goes through root,
// subsequent segments walk into maps, blocks, and list indices.
func walkPath(root func(string) (any, bool), path string) (any, bool) {
	segs := strings.Split(path, ".")
	if len(segs) == 0 || segs[0] == "" {
		return nil, false
	}
	cur, ok := root(segs[0])
	if !ok {
		return nil, false
	}
	for _, seg := range segs[1:] {
		cur, ok = walkInto(cur, seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func walkInto(v any, seg string) (any, bool) {
	switch val := v.(type) {
	case map[string]any:
		out, ok := val[seg]
		return out, ok
	case map[string]string:
		out, ok := val[seg]
		return out, ok
	case *block.Block:
		return val.Get(seg)
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(val) {
			return nil, false
		}
		return val[i], true
	case []map[string]any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(val) {
			return nil, false
		}
		return val[i], true
	default:
		return nil, false
	}
}
