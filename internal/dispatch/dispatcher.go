package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"zolo/internal/accumulator"
	"zolo/internal/block"
	"zolo/internal/cache"
	"zolo/internal/display"
	"zolo/internal/logging"
)

// Context carries the per-workflow collaborators a dispatched step may
// touch: the session mode, the live-handle tier, and the accumulator.
type Context struct {
	WizardMode string
	Schema     *cache.SchemaCache
	Acc        *accumulator.Accumulator
	Resolved   map[string]any
}

// Link is returned for zLink steps. The dispatcher never follows links
// itself; navigation consumes the expression and re-enters the engine.
type Link struct {
	Expr any
}

// Dispatcher routes classified step values to the display collaborator,
// the data tier, and the function registry.
type Dispatcher struct {
	display  display.Display
	registry *Registry
}

// New creates a dispatcher over a display collaborator and a registry.
func New(d display.Display, reg *Registry) *Dispatcher {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Dispatcher{display: d, registry: reg}
}

// Registry exposes the function registry for plugin registration.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch executes one step value and returns its result. Scalar strings
// that are not &calls come back unchanged so the engine can interpret
// them as signals or key-jumps.
func (d *Dispatcher) Dispatch(ctx context.Context, key string, value any, dc *Context) (any, error) {
	kind, payload := block.Classify(value)
	switch kind {
	case block.KindNil:
		return nil, nil
	case block.KindScalar:
		if s, ok := payload.(string); ok && IsCallExpr(s) {
			return d.callExpr(s)
		}
		return payload, nil
	case block.KindDisplay:
		return nil, d.handleDisplay(payload)
	case block.KindData:
		return d.handleData(ctx, payload, dc)
	case block.KindFunc:
		return d.handleFunc(payload)
	case block.KindLink:
		return Link{Expr: payload}, nil
	case block.KindDialog:
		return d.handleDialog(payload)
	case block.KindNested:
		// The engine recurses into nested blocks itself.
		return value, nil
	case block.KindList:
		return d.handleList(ctx, key, payload, dc)
	}
	logging.DispatchWarn("unknown step type for key %s; skipping", key)
	return nil, nil
}

func (d *Dispatcher) handleList(ctx context.Context, key string, payload any, dc *Context) (any, error) {
	items, _ := payload.([]any)
	results := make([]any, 0, len(items))
	for _, item := range items {
		r, err := d.Dispatch(ctx, key, item, dc)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// ====== Display ======

func (d *Dispatcher) handleDisplay(payload any) error {
	if d.display == nil {
		return fmt.Errorf("no display collaborator")
	}
	// A bare string displays as text.
	if s, ok := payload.(string); ok {
		d.display.Text(s)
		return nil
	}
	event := fieldString(payload, "event")
	switch event {
	case "text", "":
		d.display.Text(contentOf(payload))
	case "header":
		d.display.Header(fieldInt(payload, "indent", 1), contentOf(payload))
	case "markdown":
		d.display.Markdown(contentOf(payload))
	case "list":
		items := stringList(fieldAny(payload, "items"))
		d.display.List(items, fieldBool(payload, "ordered"))
	case "table":
		headers := stringList(fieldAny(payload, "headers"))
		rows := rowList(fieldAny(payload, "rows"))
		d.display.Table(headers, rows)
	case "url":
		d.display.URL(fieldString(payload, "label"), fieldString(payload, "href"))
	case "image":
		d.display.Image(fieldString(payload, "src"), fieldString(payload, "alt"))
	default:
		logging.DispatchWarn("unknown display event %q; rendering as text", event)
		d.display.Text(contentOf(payload))
	}
	return nil
}

// ====== Data ======

// handleData executes a zData step against the live-handle tier. The
// payload names a model ("$alias" or "$alias.table"), an operation
// (select by default), and optional where/values/query fields.
func (d *Dispatcher) handleData(ctx context.Context, payload any, dc *Context) (any, error) {
	if dc == nil || dc.Schema == nil {
		return nil, fmt.Errorf("zData step without a schema cache")
	}
	model := fieldString(payload, "model")
	if model == "" {
		if s, ok := payload.(string); ok {
			model = s
		}
	}
	alias, table := splitModel(model)
	if alias == "" {
		return nil, fmt.Errorf("zData step without a model")
	}
	adapter, ok := dc.Schema.Get(alias)
	if !ok {
		return nil, fmt.Errorf("zData %s: no connected alias %q", model, alias)
	}

	if raw := fieldString(payload, "query"); raw != "" {
		return adapter.Query(ctx, raw, argList(fieldAny(payload, "args"))...)
	}

	op := fieldString(payload, "operation")
	if op == "" {
		op = "select"
	}
	where := fieldMap(payload, "where")
	values := fieldMap(payload, "values")

	switch op {
	case "select":
		q, args := buildSelect(table, stringList(fieldAny(payload, "fields")), where)
		return adapter.Query(ctx, q, args...)
	case "insert":
		q, args := buildInsert(table, values)
		return nil, adapter.Exec(ctx, q, args...)
	case "update":
		q, args := buildUpdate(table, values, where)
		return nil, adapter.Exec(ctx, q, args...)
	case "delete":
		q, args := buildDelete(table, where)
		return nil, adapter.Exec(ctx, q, args...)
	}
	return nil, fmt.Errorf("zData %s: unknown operation %q", model, op)
}

// splitModel parses "$alias.table" into its parts. A bare "$name" uses
// the same name for both; a leading "$" is what marks the alias form.
func splitModel(model string) (alias, table string) {
	name := strings.TrimPrefix(model, "$")
	if name == "" {
		return "", ""
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, name
}

func buildSelect(table string, fields []string, where map[string]any) (string, []any) {
	cols := "*"
	if len(fields) > 0 {
		cols = strings.Join(fields, ", ")
	}
	q := fmt.Sprintf("SELECT %s FROM %s", cols, table)
	clause, args := whereClause(where)
	return q + clause, args
}

func buildInsert(table string, values map[string]any) (string, []any) {
	cols := sortedKeys(values)
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		marks[i] = "?"
		args[i] = values[c]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return q, args
}

func buildUpdate(table string, values, where map[string]any) (string, []any) {
	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(where))
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	q := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", "))
	clause, whereArgs := whereClause(where)
	return q + clause, append(args, whereArgs...)
}

func buildDelete(table string, where map[string]any) (string, []any) {
	q := "DELETE FROM " + table
	clause, args := whereClause(where)
	return q + clause, args
}

func whereClause(where map[string]any) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	cols := sortedKeys(where)
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = c + " = ?"
		args[i] = where[c]
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ====== Func / Dialog ======

func (d *Dispatcher) handleFunc(payload any) (any, error) {
	switch v := payload.(type) {
	case string:
		if IsCallExpr(v) {
			return d.callExpr(v)
		}
		return d.registry.Call(v)
	default:
		name := fieldString(payload, "name")
		if name == "" {
			return nil, fmt.Errorf("zFunc step without a function name")
		}
		return d.registry.Call(name, argList(fieldAny(payload, "args"))...)
	}
}

func (d *Dispatcher) callExpr(expr string) (any, error) {
	name, args, err := ParseCall(expr)
	if err != nil {
		return nil, err
	}
	return d.registry.Call(name, args...)
}

func (d *Dispatcher) handleDialog(payload any) (any, error) {
	if d.display == nil {
		return nil, fmt.Errorf("no display collaborator")
	}
	prompt := fieldString(payload, "prompt")
	if prompt == "" {
		if s, ok := payload.(string); ok {
			prompt = s
		}
	}
	return d.display.ReadLine(prompt)
}

// ====== Payload field access ======

// fieldAny reads a named field from either a *block.Block or a plain map.
func fieldAny(payload any, name string) any {
	switch v := payload.(type) {
	case *block.Block:
		if val, ok := v.Get(name); ok {
			return val
		}
	case map[string]any:
		return v[name]
	}
	return nil
}

func fieldString(payload any, name string) string {
	if s, ok := fieldAny(payload, name).(string); ok {
		return s
	}
	return ""
}

func fieldInt(payload any, name string, def int) int {
	switch v := fieldAny(payload, name).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func fieldBool(payload any, name string) bool {
	b, _ := fieldAny(payload, name).(bool)
	return b
}

func fieldMap(payload any, name string) map[string]any {
	switch v := fieldAny(payload, name).(type) {
	case map[string]any:
		return v
	case *block.Block:
		out := make(map[string]any, v.Len())
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out[k] = val
		}
		return out
	}
	return nil
}

// contentOf reads the display text under whichever field the author used.
func contentOf(payload any) string {
	for _, name := range []string{"text", "content", "value"} {
		if s := fieldString(payload, name); s != "" {
			return s
		}
	}
	return ""
}

func stringList(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, fmt.Sprintf("%v", it))
		}
		return out
	}
	return nil
}

func rowList(v any) [][]string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][]string, 0, len(items))
	for _, it := range items {
		out = append(out, stringList(it))
	}
	return out
}

func argList(v any) []any {
	switch items := v.(type) {
	case []any:
		return items
	case nil:
		return nil
	}
	return []any{v}
}
