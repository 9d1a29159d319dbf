package nav

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"zolo/internal/session"
)

const (
	rootScope  = "@.UI.zUI.index"
	childScope = "@.Admin.zAdmin.panel"
)

func newCrumbs() *Crumbs {
	return NewCrumbs(session.New())
}

func TestAppendDeduplicatesAdjacent(t *testing.T) {
	c := newCrumbs()
	c.Append(rootScope, "home")
	c.Append(rootScope, "home")
	c.Append(rootScope, "users")
	c.Append(rootScope, "users")
	c.Append(rootScope, "home")

	want := []string{"home", "users", "home"}
	if diff := cmp.Diff(want, c.Trail(rootScope)); diff != "" {
		t.Errorf("trail mismatch (-want +got):\n%s", diff)
	}
}

func TestPopIsAppendInverse(t *testing.T) {
	c := newCrumbs()
	c.Append(rootScope, "home")
	c.Append(rootScope, "users")
	before := c.Trail(rootScope)

	c.Append(rootScope, "detail")
	c.Pop(rootScope)

	if diff := cmp.Diff(before, c.Trail(rootScope)); diff != "" {
		t.Errorf("POP after APPEND is not identity (-want +got):\n%s", diff)
	}
}

func TestPopEmptyChildDropsScopeAndParentEntry(t *testing.T) {
	sess := session.New()
	c := NewCrumbs(sess)
	c.Append(rootScope, "home")
	c.Append(rootScope, "adminLink")
	// Entering the child scope with an empty trail models a freshly
	// linked scope whose only content was already popped.
	sess.SetTrail(childScope, nil)

	active, target := c.Pop(childScope)
	if active != rootScope {
		t.Errorf("active scope = %q, want %q", active, rootScope)
	}
	if target != "home" {
		t.Errorf("back target = %q, want home", target)
	}
	if sess.HasScope(childScope) {
		t.Error("child scope should be dropped")
	}
	if diff := cmp.Diff([]string{"home"}, c.Trail(rootScope)); diff != "" {
		t.Errorf("parent trail (-want +got):\n%s", diff)
	}
}

func TestPopRootWithEmptyTrailIsStable(t *testing.T) {
	sess := session.New()
	c := NewCrumbs(sess)
	sess.SetTrail(rootScope, nil)

	active, target := c.Pop(rootScope)
	if active != rootScope || target != "" {
		t.Errorf("Pop(root) = %q, %q", active, target)
	}
	if !sess.HasScope(rootScope) {
		t.Error("root scope must never be dropped")
	}
}

func TestPopToTruncatesAndIsIdempotent(t *testing.T) {
	c := newCrumbs()
	for _, k := range []string{"home", "settings", "admin", "users"} {
		c.Append(rootScope, k)
	}

	if !c.PopTo(rootScope, "settings") {
		t.Fatal("PopTo should find settings")
	}
	want := []string{"home", "settings"}
	if diff := cmp.Diff(want, c.Trail(rootScope)); diff != "" {
		t.Errorf("after first PopTo (-want +got):\n%s", diff)
	}

	c.PopTo(rootScope, "settings")
	if diff := cmp.Diff(want, c.Trail(rootScope)); diff != "" {
		t.Errorf("PopTo is not idempotent (-want +got):\n%s", diff)
	}

	if c.PopTo(rootScope, "ghost") {
		t.Error("PopTo with unknown key should report false")
	}
	if diff := cmp.Diff(want, c.Trail(rootScope)); diff != "" {
		t.Errorf("unknown PopTo must not change the trail (-want +got):\n%s", diff)
	}
}

func TestBanner(t *testing.T) {
	c := newCrumbs()
	c.Append(rootScope, "home")
	c.Append(rootScope, "users")
	c.Append(childScope, "panel")

	banner := c.Banner()
	if banner[rootScope] != "home > users" {
		t.Errorf("root banner = %q", banner[rootScope])
	}
	if banner[childScope] != "panel" {
		t.Errorf("child banner = %q", banner[childScope])
	}
}
