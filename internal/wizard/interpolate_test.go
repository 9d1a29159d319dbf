package wizard

import (
	"testing"
)

func testResolver(values map[string]any) Resolver {
	return func(path string) (any, bool) {
		v, ok := values[path]
		return v, ok
	}
}

func TestWholeValueSubstitutionPreservesType(t *testing.T) {
	user := map[string]any{"name": "Ada"}
	in := &Interpolator{Resolve: testResolver(map[string]any{
		"user":  user,
		"count": 42,
	})}

	got := in.String("%user")
	if m, ok := got.(map[string]any); !ok || m["name"] != "Ada" {
		t.Errorf("whole-value substitution lost the raw object: %v", got)
	}
	if got := in.String("%count"); got != 42 {
		t.Errorf("whole-value int = %v (%T)", got, got)
	}
}

func TestEmbeddedSubstitutionUsesStringForm(t *testing.T) {
	in := &Interpolator{Resolve: testResolver(map[string]any{
		"user.name": "Ada",
		"count":     42,
	})}
	got := in.String("hello %user.name, you have %count items")
	if got != "hello Ada, you have 42 items" {
		t.Errorf("embedded = %q", got)
	}
}

func TestMissingReferenceInterpolatesNone(t *testing.T) {
	in := &Interpolator{Resolve: testResolver(nil)}
	if got := in.String("%ghost"); got != "None" {
		t.Errorf("whole-value missing = %v", got)
	}
	if got := in.String("value: %ghost"); got != "value: None" {
		t.Errorf("embedded missing = %v", got)
	}
}

func TestWhereQuotesTextButNotNumbers(t *testing.T) {
	in := &Interpolator{Resolve: testResolver(map[string]any{
		"user.name": "Ada",
		"user.id":   7,
		"user.age":  "35",
	})}
	tests := []struct{ in, want string }{
		{"name = %user.name", "name = 'Ada'"},
		{"id = %user.id", "id = 7"},
		// Numeric-looking strings stay unquoted to avoid over-quoting.
		{"age = %user.age", "age = 35"},
	}
	for _, tt := range tests {
		if got := in.Where(tt.in); got != tt.want {
			t.Errorf("Where(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWhereLikePatternQuoting(t *testing.T) {
	in := &Interpolator{Resolve: testResolver(map[string]any{
		"customer.name": "John Doe",
	})}
	// Substitution inside an existing LIKE pattern still quotes.
	got := in.Where("name LIKE '%%customer.name%'")
	want := "name LIKE '%'John Doe'%'"
	if got != want {
		t.Errorf("LIKE quoting = %q, want %q", got, want)
	}
}

func TestValueWalksNestedStructures(t *testing.T) {
	in := &Interpolator{Resolve: testResolver(map[string]any{
		"user.id": 7,
	})}
	stepValue := map[string]any{
		"model": "$users",
		"where": map[string]any{"clause": "id = %user.id"},
		"note":  []any{"id is %user.id"},
	}
	out := in.Value(stepValue).(map[string]any)
	where := out["where"].(map[string]any)
	if where["clause"] != "id = 7" {
		t.Errorf("where clause = %v", where["clause"])
	}
	note := out["note"].([]any)
	if note[0] != "id is 7" {
		t.Errorf("note = %v", note[0])
	}
}

func TestValueEvaluatesCalls(t *testing.T) {
	in := &Interpolator{
		Resolve: testResolver(nil),
		Call: func(expr string) (any, error) {
			if expr != "&now()" {
				t.Errorf("unexpected call %q", expr)
			}
			return "2026-01-01", nil
		},
	}
	if got := in.Value("&now()"); got != "2026-01-01" {
		t.Errorf("call result = %v", got)
	}
}
