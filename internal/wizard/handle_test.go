package wizard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"zolo/internal/auth"
	"zolo/internal/cache"
	"zolo/internal/dispatch"
	"zolo/internal/nav"
	"zolo/internal/session"
	"zolo/internal/zpath"
)

// txAdapter records the call sequence the workflow drives through the
// schema tier.
type txAdapter struct {
	calls        []string
	inTx         bool
	disconnected bool
}

func (a *txAdapter) Kind() string                  { return "stub" }
func (a *txAdapter) Connect(context.Context) error { return nil }
func (a *txAdapter) InTransaction() bool           { return a.inTx }

func (a *txAdapter) Disconnect() error {
	a.disconnected = true
	return nil
}

func (a *txAdapter) Begin(context.Context) error {
	a.calls = append(a.calls, "begin")
	a.inTx = true
	return nil
}

func (a *txAdapter) Commit() error {
	a.calls = append(a.calls, "commit")
	a.inTx = false
	return nil
}

func (a *txAdapter) Rollback() error {
	a.calls = append(a.calls, "rollback")
	a.inTx = false
	return nil
}

func (a *txAdapter) Exec(_ context.Context, query string, _ ...any) error {
	a.calls = append(a.calls, "exec:"+query)
	return nil
}

func (a *txAdapter) Query(context.Context, string, ...any) ([]map[string]any, error) {
	a.calls = append(a.calls, "query")
	return nil, nil
}

const handleDoc = `
signup:
  _transaction: true
  create:
    zData:
      model: "$users"
      operation: insert
      values:
        name: Ada
  boom:
    zFunc: raise

enroll:
  _transaction: true
  create:
    zData:
      model: "$users"
      operation: insert
      values:
        name: Ada

plain:
  note:
    zText: no transaction here
`

func newHandleEngine(t *testing.T) (*Engine, *cache.Orchestrator, *txAdapter) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "UI"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "UI", "zUI.yaml"), []byte(handleDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	d := &recDisplay{}
	sess := session.New()
	orch := cache.New(cache.DefaultOptions())
	navigator := nav.NewNavigator(sess, nav.NewLoader(dir, orch))
	reg := dispatch.NewRegistry()
	reg.Register("raise", func(args ...any) (any, error) {
		return nil, fmt.Errorf("boom")
	})
	adapter := &txAdapter{}
	orch.Schema().Set("users", adapter)
	e := New(sess, dispatch.New(d, reg), navigator, auth.NewLocal(), d, orch)
	return e, orch, adapter
}

func TestHandleRollsBackOnStepError(t *testing.T) {
	e, orch, adapter := newHandleEngine(t)
	p := zpath.MustParse("@.UI.zUI.signup")
	b, err := e.nav.Loader().Block(p)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Handle(context.Background(), b)
	if err == nil {
		t.Fatal("failed step must surface its error")
	}

	want := []string{"begin", "exec:INSERT INTO users (name) VALUES (?)", "rollback"}
	if len(adapter.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", adapter.calls, want)
	}
	for i := range want {
		if adapter.calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, adapter.calls[i], want[i])
		}
	}
	if adapter.inTx {
		t.Error("transaction left open")
	}

	// The schema tier is always cleared after a workflow.
	if orch.Schema().Has("users") {
		t.Error("schema tier must be cleared after the workflow")
	}
	if !adapter.disconnected {
		t.Error("handle must be disconnected by the clear")
	}
}

func TestHandleCommitsOnSuccess(t *testing.T) {
	e, orch, adapter := newHandleEngine(t)
	p := zpath.MustParse("@.UI.zUI.enroll")
	b, err := e.nav.Loader().Block(p)
	if err != nil {
		t.Fatal(err)
	}

	acc, err := e.Handle(context.Background(), b)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	last := adapter.calls[len(adapter.calls)-1]
	if adapter.calls[0] != "begin" || last != "commit" {
		t.Errorf("calls = %v", adapter.calls)
	}
	if _, _, ok := acc.Last(); !ok {
		t.Error("accumulator should hold the executed steps")
	}
	if orch.Schema().Has("users") {
		t.Error("schema tier must be cleared after the workflow")
	}
}

func TestHandleWithoutTransactionSkipsTxCalls(t *testing.T) {
	e, _, adapter := newHandleEngine(t)
	p := zpath.MustParse("@.UI.zUI.plain")
	b, err := e.nav.Loader().Block(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Handle(context.Background(), b); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	for _, c := range adapter.calls {
		if c == "begin" || c == "commit" || c == "rollback" {
			t.Errorf("unexpected transaction call %q", c)
		}
	}
}
