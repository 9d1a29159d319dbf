package dispatch

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistryCall(t *testing.T) {
	reg := NewRegistry()
	reg.Register("add", func(args ...any) (any, error) {
		sum := int64(0)
		for _, a := range args {
			n, ok := a.(int64)
			if !ok {
				return nil, fmt.Errorf("not a number: %v", a)
			}
			sum += n
		}
		return sum, nil
	})

	got, err := reg.Call("add", int64(2), int64(3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != int64(5) {
		t.Errorf("add = %v", got)
	}

	if _, err := reg.Call("missing"); err == nil {
		t.Error("unknown function must error")
	}
}

func TestRegisterReplacesBinding(t *testing.T) {
	reg := NewRegistry()
	reg.Register("f", func(...any) (any, error) { return 1, nil })
	reg.Register("f", func(...any) (any, error) { return 2, nil })
	got, err := reg.Call("f")
	if err != nil || got != 2 {
		t.Errorf("Call = %v, %v", got, err)
	}
	if names := reg.Names(); len(names) != 1 {
		t.Errorf("Names = %v", names)
	}
}

func TestParseCall(t *testing.T) {
	tests := []struct {
		expr string
		name string
		args []any
		err  bool
	}{
		{expr: "&now", name: "now"},
		{expr: "&now()", name: "now"},
		{expr: "&add(1, 2)", name: "add", args: []any{int64(1), int64(2)}},
		{expr: "&greet('John, Jr.', true)", name: "greet", args: []any{"John, Jr.", true}},
		{expr: `&mix("x", 1.5, bare)`, name: "mix", args: []any{"x", 1.5, "bare"}},
		{expr: "&broken(1", err: true},
		{expr: "plain", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			name, args, err := ParseCall(tt.expr)
			if tt.err {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCall: %v", err)
			}
			if name != tt.name {
				t.Errorf("name = %q, want %q", name, tt.name)
			}
			if diff := cmp.Diff(tt.args, args); diff != "" {
				t.Errorf("args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsCallExpr(t *testing.T) {
	if !IsCallExpr("&f") || IsCallExpr("&") || IsCallExpr("f()") {
		t.Error("call expression detection is off")
	}
}
