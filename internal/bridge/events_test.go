package bridge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"zolo/internal/auth"
	"zolo/internal/cache"
	"zolo/internal/dispatch"
	"zolo/internal/display"
	"zolo/internal/nav"
	"zolo/internal/session"
	"zolo/internal/wizard"
	"zolo/internal/zpath"
)

// chunkDisplay records what the engine rendered during a chunked run.
type chunkDisplay struct {
	texts []string
}

func (d *chunkDisplay) Text(s string)                   { d.texts = append(d.texts, s) }
func (d *chunkDisplay) Header(int, string)              {}
func (d *chunkDisplay) Markdown(string)                 {}
func (d *chunkDisplay) List([]string, bool)             {}
func (d *chunkDisplay) Table([]string, [][]string)      {}
func (d *chunkDisplay) URL(string, string)              {}
func (d *chunkDisplay) Image(string, string)            {}
func (d *chunkDisplay) Menu(display.MenuView)           {}
func (d *chunkDisplay) ReadLine(string) (string, error) { return "", nil }
func (d *chunkDisplay) Confirm(string) (bool, error)    { return true, nil }
func (d *chunkDisplay) AccessDenied(string)             {}
func (d *chunkDisplay) Error(string)                    {}

const loginDoc = `
login:
  intro:
    zText: welcome
  askPassword!:
    prompt: Password
  done:
    zText: "hi %name"
`

func TestFormSubmitResumesGateByBlockName(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "UI"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "UI", "zUI.yaml"), []byte(loginDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	sess := session.New()
	sess.SetMode(session.ModeBifrost)
	orch := cache.New(cache.DefaultOptions())
	loader := nav.NewLoader(dir, orch)
	rec := &chunkDisplay{}
	engine := wizard.New(sess, dispatch.New(rec, dispatch.NewRegistry()),
		nav.NewNavigator(sess, loader), auth.NewLocal(), rec, orch)

	s := NewServer(Options{Session: sess, Cache: orch, Loader: loader})
	c := testClient("ada")

	p := zpath.MustParse("@.UI.zUI.login")
	b, err := loader.Block(p)
	if err != nil {
		t.Fatal(err)
	}
	runner := engine.StartChunked(context.Background(), b, wizard.ExecOptions{})
	done := make(chan struct{})
	go func() {
		s.pumpChunks(c, runner, p.Block())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		n := len(c.runners)
		c.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never suspended at the gate")
		}
		time.Sleep(time.Millisecond)
	}

	// The client addresses the suspended run by the executing block's
	// name, not the gate key.
	s.handleFormSubmit(c, map[string]any{
		"block": "login",
		"data":  map[string]any{"name": "Ada"},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after form_submit")
	}
	if err := runner.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}

	for drained := false; !drained; {
		select {
		case data := <-c.send:
			if strings.Contains(string(data), "no_pending_form") {
				t.Fatal("form_submit by block name must find the suspended run")
			}
		default:
			drained = true
		}
	}

	// The submission landed in the gate context and interpolated.
	found := false
	for _, s := range rec.texts {
		if s == "hi Ada" {
			found = true
		}
	}
	if !found {
		t.Errorf("texts = %v", rec.texts)
	}

	// Both registrations (gate key and block name) are gone.
	c.mu.Lock()
	n := len(c.runners)
	c.mu.Unlock()
	if n != 0 {
		t.Errorf("stale runner registrations: %d", n)
	}
}
