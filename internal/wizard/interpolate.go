package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"zolo/internal/block"
	"zolo/internal/logging"
)

// placeholderRe matches %x.y.z variable references. A lone "%" (SQL LIKE
// wildcard) is not followed by an identifier character and never matches.
var placeholderRe = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)`)

// Resolver resolves a dotted reference path to its value.
type Resolver func(path string) (any, bool)

// Interpolator substitutes %x.y.z references and &fname() calls inside
// step values before dispatch.
type Interpolator struct {
	// Resolve looks up a reference path (accumulator, resolved _data,
	// session - in that order, wired by the engine).
	Resolve Resolver
	// Call evaluates a &fname(args) expression. Optional.
	Call func(expr string) (any, error)
}

// String applies the two-mode substitution rule: when the placeholder is
// the entire value, the raw object is substituted (type preserved); when
// embedded, its string form is. Missing references interpolate literally
// to "None" with a warning.
func (in *Interpolator) String(s string) any {
	if m := placeholderRe.FindStringSubmatch(s); m != nil && m[0] == s {
		if v, ok := in.Resolve(m[1]); ok {
			return v
		}
		logging.WizardWarn("unresolved reference %%%s", m[1])
		return "None"
	}
	return in.embedded(s, false)
}

// Where substitutes references inside a WHERE clause. Embedded text values
// are single-quoted unless they look numeric; substitution inside an
// existing quoted LIKE pattern still quotes, so '%%name%' with name
// "John Doe" yields '%'John Doe'%'.
func (in *Interpolator) Where(s string) string {
	return in.embedded(s, true)
}

func (in *Interpolator) embedded(s string, quote bool) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		path := match[1:]
		v, ok := in.Resolve(path)
		if !ok {
			logging.WizardWarn("unresolved reference %%%s", path)
			return "None"
		}
		text := fmt.Sprintf("%v", v)
		if quote && !looksNumeric(text) {
			return "'" + text + "'"
		}
		return text
	})
}

// looksNumeric reports whether a substituted string should stay unquoted
// in SQL context.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Value walks a step value and substitutes references in every string it
// contains. String values under a "where" field use WHERE quoting; whole
// values that are &fname() calls are evaluated when a Call hook is wired.
func (in *Interpolator) Value(v any) any {
	return in.value(v, false)
}

func (in *Interpolator) value(v any, inWhere bool) any {
	switch val := v.(type) {
	case string:
		if in.Call != nil && strings.HasPrefix(val, "&") && len(val) > 1 {
			out, err := in.Call(val)
			if err != nil {
				logging.WizardWarn("call %s failed: %v", val, err)
				return "None"
			}
			return out
		}
		if inWhere {
			return in.Where(val)
		}
		return in.String(val)
	case *block.Block:
		out := block.New()
		for _, k := range val.Keys() {
			item, _ := val.Get(k)
			out.Set(k, in.value(item, inWhere || k == "where"))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = in.value(item, inWhere || k == "where")
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = in.value(item, inWhere)
		}
		return out
	}
	return v
}
