package accumulator

import (
	"testing"
)

func TestTripleAccessReturnsIdenticalObject(t *testing.T) {
	acc := New()
	user := map[string]any{"name": "Ada", "id": 7}
	if err := acc.Append("user", user); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := acc.Append("count", 3); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	byKey, ok := acc.ByKey("user")
	if !ok {
		t.Fatal("ByKey miss")
	}
	byIndex, ok := acc.ByIndex(0)
	if !ok {
		t.Fatal("ByIndex miss")
	}
	byAttr, ok := acc.Attr("user")
	if !ok {
		t.Fatal("Attr miss")
	}

	// All three modes must return the identical object, not copies.
	km, im, am := byKey.(map[string]any), byIndex.(map[string]any), byAttr.(map[string]any)
	km["probe"] = true
	if _, ok := im["probe"]; !ok {
		t.Error("ByIndex returned a different object than ByKey")
	}
	if _, ok := am["probe"]; !ok {
		t.Error("Attr returned a different object than ByKey")
	}
}

func TestAppendRejectsRebinding(t *testing.T) {
	acc := New()
	if err := acc.Append("step", 1); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := acc.Append("step", 2); err == nil {
		t.Fatal("expected rebind error")
	}
	v, _ := acc.ByKey("step")
	if v != 1 {
		t.Errorf("rebind mutated result: got %v", v)
	}
}

func TestAttrWalksNestedPaths(t *testing.T) {
	acc := New()
	_ = acc.Append("user", map[string]any{
		"name":    "Ada",
		"address": map[string]any{"city": "London"},
	})

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"user.name", "Ada", true},
		{"user.address.city", "London", true},
		{"user.missing", nil, false},
		{"ghost.name", nil, false},
	}
	for _, tt := range tests {
		got, ok := acc.Attr(tt.path)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("Attr(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOrderAndLast(t *testing.T) {
	acc := New()
	for _, k := range []string{"a", "b", "c"} {
		_ = acc.Append(k, k+"!")
	}
	if acc.Len() != 3 {
		t.Fatalf("Len = %d", acc.Len())
	}
	want := []string{"a", "b", "c"}
	for i, k := range acc.Keys() {
		if k != want[i] {
			t.Errorf("Keys[%d] = %q, want %q", i, k, want[i])
		}
	}
	k, v, ok := acc.Last()
	if !ok || k != "c" || v != "c!" {
		t.Errorf("Last = %q, %v, %v", k, v, ok)
	}
}
