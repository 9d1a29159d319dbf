package dispatch

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"zolo/internal/accumulator"
	"zolo/internal/block"
	"zolo/internal/cache"
	"zolo/internal/display"
)

// captureDisplay records every render call for assertions.
type captureDisplay struct {
	texts    []string
	headers  []string
	lists    [][]string
	tables   int
	urls     []string
	readback string
}

func (d *captureDisplay) Text(s string)          { d.texts = append(d.texts, s) }
func (d *captureDisplay) Header(_ int, s string) { d.headers = append(d.headers, s) }
func (d *captureDisplay) Markdown(s string)      { d.texts = append(d.texts, s) }

func (d *captureDisplay) List(items []string, _ bool) { d.lists = append(d.lists, items) }
func (d *captureDisplay) Table([]string, [][]string)  { d.tables++ }
func (d *captureDisplay) URL(_, href string)          { d.urls = append(d.urls, href) }
func (d *captureDisplay) Image(string, string)        {}
func (d *captureDisplay) Menu(display.MenuView)       {}
func (d *captureDisplay) AccessDenied(string)         {}
func (d *captureDisplay) Error(string)                {}
func (d *captureDisplay) Confirm(string) (bool, error) { return true, nil }

func (d *captureDisplay) ReadLine(string) (string, error) { return d.readback, nil }

// queryAdapter returns canned rows and records the statements it ran.
type queryAdapter struct {
	queries []string
	args    [][]any
	rows    []map[string]any
}

func (a *queryAdapter) Kind() string                  { return "stub" }
func (a *queryAdapter) Connect(context.Context) error { return nil }
func (a *queryAdapter) Disconnect() error             { return nil }
func (a *queryAdapter) Begin(context.Context) error   { return nil }
func (a *queryAdapter) Commit() error                 { return nil }
func (a *queryAdapter) Rollback() error               { return nil }
func (a *queryAdapter) InTransaction() bool           { return false }

func (a *queryAdapter) Exec(_ context.Context, query string, args ...any) error {
	a.queries = append(a.queries, query)
	a.args = append(a.args, args)
	return nil
}

func (a *queryAdapter) Query(_ context.Context, query string, args ...any) ([]map[string]any, error) {
	a.queries = append(a.queries, query)
	a.args = append(a.args, args)
	return a.rows, nil
}

func newTestDispatcher() (*Dispatcher, *captureDisplay, *Context, *queryAdapter) {
	d := &captureDisplay{}
	disp := New(d, NewRegistry())
	adapter := &queryAdapter{}
	schema := cache.NewSchemaCache()
	schema.Set("crm", adapter)
	dc := &Context{
		WizardMode: "Terminal",
		Schema:     schema,
		Acc:        accumulator.New(),
		Resolved:   map[string]any{},
	}
	return disp, d, dc, adapter
}

func TestDispatchScalarPassesThrough(t *testing.T) {
	disp, _, dc, _ := newTestDispatcher()
	got, err := disp.Dispatch(context.Background(), "step", "zBack", dc)
	if err != nil || got != "zBack" {
		t.Errorf("Dispatch = %v, %v", got, err)
	}
}

func TestDispatchScalarCallExpr(t *testing.T) {
	disp, _, dc, _ := newTestDispatcher()
	disp.Registry().Register("shout", func(args ...any) (any, error) {
		return "HI", nil
	})
	got, err := disp.Dispatch(context.Background(), "step", "&shout()", dc)
	if err != nil || got != "HI" {
		t.Errorf("Dispatch = %v, %v", got, err)
	}
}

func TestDispatchDisplayEvents(t *testing.T) {
	disp, d, dc, _ := newTestDispatcher()
	steps := []any{
		map[string]any{"zDisplay": "plain line"},
		map[string]any{"zDisplay": map[string]any{"event": "header", "indent": 2, "text": "Title"}},
		map[string]any{"zDisplay": map[string]any{"event": "list", "items": []any{"a", "b"}}},
		map[string]any{"zDisplay": map[string]any{"event": "url", "label": "docs", "href": "https://example.com"}},
		map[string]any{"zDisplay": map[string]any{"event": "mystery", "text": "fallback"}},
	}
	for _, s := range steps {
		if _, err := disp.Dispatch(context.Background(), "step", s, dc); err != nil {
			t.Fatalf("Dispatch(%v): %v", s, err)
		}
	}
	if diff := cmp.Diff([]string{"plain line", "fallback"}, d.texts); diff != "" {
		t.Errorf("texts (-want +got):\n%s", diff)
	}
	if len(d.headers) != 1 || d.headers[0] != "Title" {
		t.Errorf("headers = %v", d.headers)
	}
	if len(d.lists) != 1 || len(d.lists[0]) != 2 {
		t.Errorf("lists = %v", d.lists)
	}
	if len(d.urls) != 1 || d.urls[0] != "https://example.com" {
		t.Errorf("urls = %v", d.urls)
	}
}

func TestDispatchDataSelect(t *testing.T) {
	disp, _, dc, adapter := newTestDispatcher()
	adapter.rows = []map[string]any{{"id": 1, "name": "Ada"}}

	got, err := disp.Dispatch(context.Background(), "fetch", map[string]any{
		"zData": map[string]any{
			"model":  "$crm.users",
			"fields": []any{"id", "name"},
			"where":  map[string]any{"active": true, "role": "admin"},
		},
	}, dc)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	rows, ok := got.([]map[string]any)
	if !ok || len(rows) != 1 || rows[0]["name"] != "Ada" {
		t.Errorf("rows = %v", got)
	}

	wantQ := "SELECT id, name FROM users WHERE active = ? AND role = ?"
	if adapter.queries[0] != wantQ {
		t.Errorf("query = %q, want %q", adapter.queries[0], wantQ)
	}
	if diff := cmp.Diff([]any{true, "admin"}, adapter.args[0]); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

func TestDispatchDataMutations(t *testing.T) {
	disp, _, dc, adapter := newTestDispatcher()
	tests := []struct {
		payload map[string]any
		want    string
	}{
		{
			payload: map[string]any{"model": "$crm.users", "operation": "insert",
				"values": map[string]any{"name": "Ada", "role": "admin"}},
			want: "INSERT INTO users (name, role) VALUES (?, ?)",
		},
		{
			payload: map[string]any{"model": "$crm.users", "operation": "update",
				"values": map[string]any{"role": "editor"},
				"where":  map[string]any{"id": 7}},
			want: "UPDATE users SET role = ? WHERE id = ?",
		},
		{
			payload: map[string]any{"model": "$crm.users", "operation": "delete",
				"where": map[string]any{"id": 7}},
			want: "DELETE FROM users WHERE id = ?",
		},
	}
	for _, tt := range tests {
		if _, err := disp.Dispatch(context.Background(), "step",
			map[string]any{"zData": tt.payload}, dc); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	for i, tt := range tests {
		if adapter.queries[i] != tt.want {
			t.Errorf("query[%d] = %q, want %q", i, adapter.queries[i], tt.want)
		}
	}
}

func TestDispatchDataRawQuery(t *testing.T) {
	disp, _, dc, adapter := newTestDispatcher()
	_, err := disp.Dispatch(context.Background(), "step", map[string]any{
		"zData": map[string]any{
			"model": "$crm",
			"query": "SELECT count(*) FROM users WHERE role = ?",
			"args":  []any{"admin"},
		},
	}, dc)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if adapter.queries[0] != "SELECT count(*) FROM users WHERE role = ?" {
		t.Errorf("query = %q", adapter.queries[0])
	}
}

func TestDispatchDataUnknownAlias(t *testing.T) {
	disp, _, dc, _ := newTestDispatcher()
	_, err := disp.Dispatch(context.Background(), "step",
		map[string]any{"zData": map[string]any{"model": "$nowhere"}}, dc)
	if err == nil {
		t.Error("missing alias must error")
	}
}

func TestDispatchLinkIsOpaque(t *testing.T) {
	disp, _, dc, _ := newTestDispatcher()
	expr := map[string]any{"target": "@.UI.zUI.index"}
	got, err := disp.Dispatch(context.Background(), "go",
		map[string]any{"zLink": expr}, dc)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	link, ok := got.(Link)
	if !ok {
		t.Fatalf("got %T, want Link", got)
	}
	if diff := cmp.Diff(expr, link.Expr); diff != "" {
		t.Errorf("link expr (-want +got):\n%s", diff)
	}
}

func TestDispatchDialogReadsLine(t *testing.T) {
	disp, d, dc, _ := newTestDispatcher()
	d.readback = "yes please"
	got, err := disp.Dispatch(context.Background(), "ask",
		map[string]any{"zDialog": map[string]any{"prompt": "Continue?"}}, dc)
	if err != nil || got != "yes please" {
		t.Errorf("Dispatch = %v, %v", got, err)
	}
}

func TestDispatchListDispatchesEachItem(t *testing.T) {
	disp, d, dc, _ := newTestDispatcher()
	got, err := disp.Dispatch(context.Background(), "steps", []any{
		map[string]any{"zDisplay": "one"},
		"two",
	}, dc)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	results, ok := got.([]any)
	if !ok || len(results) != 2 || results[1] != "two" {
		t.Errorf("results = %v", got)
	}
	if len(d.texts) != 1 || d.texts[0] != "one" {
		t.Errorf("texts = %v", d.texts)
	}
}

func TestDispatchNestedBlockUntouched(t *testing.T) {
	disp, _, dc, _ := newTestDispatcher()
	nested := block.New()
	nested.Set("child", "value")
	got, err := disp.Dispatch(context.Background(), "sub", nested, dc)
	if err != nil || got != nested {
		t.Errorf("nested block must come back unchanged: %v, %v", got, err)
	}
}

func TestSplitModel(t *testing.T) {
	tests := []struct {
		model, alias, table string
	}{
		{"$crm.users", "crm", "users"},
		{"$crm", "crm", "crm"},
		{"$", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		alias, table := splitModel(tt.model)
		if alias != tt.alias || table != tt.table {
			t.Errorf("splitModel(%q) = (%q, %q), want (%q, %q)",
				tt.model, alias, table, tt.alias, tt.table)
		}
	}
}
