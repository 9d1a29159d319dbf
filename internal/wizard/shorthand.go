package wizard

import (
	"strings"

	"zolo/internal/block"
)

// Shorthand keys rewrite to their canonical zDisplay form before dispatch.
// Plural forms (zTexts, zURLs, ...) pass through unchanged; the dispatcher
// expands their item lists.
var shorthandEvents = map[string]string{
	"zText":  "text",
	"zMD":    "markdown",
	"zImage": "image",
	"zURL":   "url",
	"zUL":    "list",
	"zOL":    "list",
	"zTable": "table",
}

// ExpandShorthand rewrites recognised shorthand keys to the canonical
// {zDisplay: {event: ..., ...}} form. The key is matched on its base name
// (decorations like "~" and "*" stripped). Non-shorthand values return
// unchanged.
func ExpandShorthand(key string, value any) any {
	base := KeyBase(key)

	if level, ok := headerLevel(base); ok {
		return displayStep("header", value, map[string]any{"indent": level})
	}
	event, ok := shorthandEvents[base]
	if !ok {
		return value
	}
	extra := map[string]any{}
	if base == "zOL" {
		extra["ordered"] = true
	}
	return displayStep(event, value, extra)
}

// headerLevel parses zH1..zH6.
func headerLevel(base string) (int, bool) {
	if len(base) == 3 && strings.HasPrefix(base, "zH") && base[2] >= '1' && base[2] <= '6' {
		return int(base[2] - '0'), true
	}
	return 0, false
}

// displayStep builds {zDisplay: {event: ..., <payload>, <extra>}}.
// A scalar value lands in the event's natural field; a mapping value is
// merged field-by-field.
func displayStep(event string, value any, extra map[string]any) any {
	payload := map[string]any{"event": event}
	for k, v := range extra {
		payload[k] = v
	}
	switch v := value.(type) {
	case string:
		payload[scalarField(event)] = v
	case []any:
		payload["items"] = v
	case []string:
		payload["items"] = v
	case *block.Block:
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			payload[k] = val
		}
	case map[string]any:
		for k, val := range v {
			payload[k] = val
		}
	default:
		payload[scalarField(event)] = v
	}
	return map[string]any{block.TagDisplay: payload}
}

// scalarField names where a bare scalar lands for each display event.
func scalarField(event string) string {
	switch event {
	case "url":
		return "href"
	case "image":
		return "src"
	}
	return "text"
}

// KeyBase strips the shape decorations ("~", "*", "!", leading "^") from
// a key, leaving the name used for matching, jumps, and accumulation.
func KeyBase(key string) string {
	return block.BaseKey(key)
}
