package expr

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

type read struct {
	obj any
	key string
}

type recorder struct {
	reads       []read
	collections []any
}

func (r *recorder) Observe(obj any, key string) {
	r.reads = append(r.reads, read{obj, key})
}

func (r *recorder) ObserveCollection(v any) {
	r.collections = append(r.collections, v)
}

func (r *recorder) keys() []string {
	var keys []string
	for _, rd := range r.reads {
		keys = append(keys, rd.key)
	}
	return keys
}

func mustParse(t *testing.T, src string) Expression {
	t.Helper()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return e
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		src  string
		want string
		kind Kind
	}{
		{"name", "name", KindAccessScope},
		{"user.name", "user.name", KindAccessMember},
		{"items[0]", "items[0]", KindAccessKeyed},
		{"items[i].label", "items[i].label", KindAccessMember},
		{"$this", "$this", KindAccessThis},
		{"$parent", "$parent", KindAccessThis},
		{"$parent.$parent.title", "$parent.$parent.title", KindAccessScope},
		{"$host.value", "$host.value", KindAccessScope},
		{"'it''s'", "", 0},
		{`"quoted"`, `"quoted"`, KindLiteral},
		{"42", "42", KindLiteral},
		{"1.5", "1.5", KindLiteral},
		{"null", "null", KindLiteral},
		{"!done", "!done", KindUnary},
		{"ok ? a : b", "ok ? a : b", KindConditional},
		{"(a)", "a", KindAccessScope},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			if tt.kind == 0 {
				if !errors.Is(err, ErrSyntax) {
					t.Errorf("Parse(%q) error = %v, want ErrSyntax", tt.src, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.src, err)
			}
			if e.Kind() != tt.kind {
				t.Errorf("Kind = %v, want %v", e.Kind(), tt.kind)
			}
			if got := e.(interface{ String() string }).String(); got != tt.want {
				t.Errorf("String = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"", "a.", "a[", "a ? b", "a b", "#", `"open`, "a & missing"} {
		if _, err := Parse(src); !errors.Is(err, ErrSyntax) {
			t.Errorf("Parse(%q) error = %v, want ErrSyntax", src, err)
		}
	}
}

func TestEvaluateTracksReads(t *testing.T) {
	user := observe.NewObject(map[string]any{"name": "Ada"})
	vm := observe.NewObject(map[string]any{"user": user})
	s := scope.New(vm)
	loc := observe.NewLocator()

	rec := &recorder{}
	v, err := mustParse(t, "user.name").Evaluate(true, s, nil, loc, rec)
	if err != nil {
		t.Fatal(err)
	}
	if v != "Ada" {
		t.Errorf("value = %v", v)
	}
	want := []read{{vm, "user"}, {user, "name"}}
	if !reflect.DeepEqual(rec.reads, want) {
		t.Errorf("reads = %v, want %v", rec.reads, want)
	}

	untracked := &recorder{}
	if _, err := mustParse(t, "user.name").Evaluate(false, s, nil, loc, untracked); err != nil {
		t.Fatal(err)
	}
	if len(untracked.reads) != 0 {
		t.Errorf("untracked evaluation reported reads: %v", untracked.reads)
	}
}

func TestConditionalTracksTakenBranch(t *testing.T) {
	vm := observe.NewObject(map[string]any{"flag": true, "a": "A", "b": "B"})
	s := scope.New(vm)
	loc := observe.NewLocator()
	e := mustParse(t, "flag ? a : b")

	rec := &recorder{}
	v, _ := e.Evaluate(true, s, nil, loc, rec)
	if v != "A" || !reflect.DeepEqual(rec.keys(), []string{"flag", "a"}) {
		t.Errorf("value %v reads %v", v, rec.keys())
	}

	_ = vm.Set("flag", false)
	rec = &recorder{}
	v, _ = e.Evaluate(true, s, nil, loc, rec)
	if v != "B" || !reflect.DeepEqual(rec.keys(), []string{"flag", "b"}) {
		t.Errorf("value %v reads %v", v, rec.keys())
	}
}

func TestKeyedAccessObservesCollection(t *testing.T) {
	items := observe.NewSlice("x", "y")
	vm := observe.NewObject(map[string]any{"items": items, "i": 1})
	rec := &recorder{}
	v, err := mustParse(t, "items[i]").Evaluate(true, scope.New(vm), nil, observe.NewLocator(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if v != "y" {
		t.Errorf("value = %v", v)
	}
	if len(rec.collections) != 1 || rec.collections[0] != items {
		t.Errorf("collections = %v", rec.collections)
	}
}

func TestMemberOfNilIsNil(t *testing.T) {
	vm := map[string]any{"user": nil}
	v, err := mustParse(t, "user.name").Evaluate(true, scope.New(vm), nil, observe.NewLocator(), &recorder{})
	if err != nil || v != nil {
		t.Errorf("got %v, %v; want nil, nil", v, err)
	}
}

func TestParentBeyondRoot(t *testing.T) {
	_, err := mustParse(t, "$parent.x").Evaluate(false, scope.New(nil), nil, observe.NewLocator(), nil)
	if !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("error = %v, want ErrUnknownProperty", err)
	}
}

func TestHostScope(t *testing.T) {
	host := scope.New(map[string]any{"value": "host"})
	s := scope.New(map[string]any{"value": "local"})
	v, err := mustParse(t, "$host.value").Evaluate(false, s, host, observe.NewLocator(), nil)
	if err != nil || v != "host" {
		t.Errorf("got %v, %v", v, err)
	}
}

func TestAssign(t *testing.T) {
	user := observe.NewObject(map[string]any{"name": "Ada"})
	vm := observe.NewObject(map[string]any{"user": user, "n": 1})
	s := scope.New(vm)
	loc := observe.NewLocator()

	if err := mustParse(t, "user.name").Assign(s, nil, loc, "Grace"); err != nil {
		t.Fatal(err)
	}
	if user.Get("name") != "Grace" {
		t.Errorf("name = %v", user.Get("name"))
	}
	if err := mustParse(t, "n").Assign(s, nil, loc, 2); err != nil {
		t.Fatal(err)
	}
	if vm.Get("n") != 2 {
		t.Errorf("n = %v", vm.Get("n"))
	}

	for _, src := range []string{"'x'", "!n", "n ? a : b", "$this"} {
		if err := mustParse(t, src).Assign(s, nil, loc, 1); !errors.Is(err, ErrNotAssignable) {
			t.Errorf("Assign(%s) error = %v, want ErrNotAssignable", src, err)
		}
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false}, {false, false}, {true, true},
		{"", false}, {"0", true},
		{0, false}, {3, true}, {0.0, false}, {uint8(1), true},
		{[]int(nil), false}, {[]int{}, true},
		{struct{}{}, true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestBehaviorHooks(t *testing.T) {
	var calls []string
	p := &Parser{Behaviors: map[string]func(Expression) *Behavior{
		"trace": func(e Expression) *Behavior {
			return &Behavior{
				Expression: e,
				OnBind: func(s, host *scope.Scope, target any) error {
					calls = append(calls, "bind")
					return nil
				},
				OnUnbind: func(s, host *scope.Scope, target any) {
					calls = append(calls, "unbind")
				},
			}
		},
	}}
	e, err := p.Parse("name & trace")
	if err != nil {
		t.Fatal(err)
	}
	b, ok := e.(*Behavior)
	if !ok || b.Name != "trace" {
		t.Fatalf("got %#v, want a trace behavior", e)
	}
	if !b.HasBind() || !b.HasUnbind() {
		t.Fatal("behavior should report bind and unbind hooks")
	}
	_ = b.Bind(nil, nil, nil)
	b.Unbind(nil, nil, nil)
	if !reflect.DeepEqual(calls, []string{"bind", "unbind"}) {
		t.Errorf("calls = %v", calls)
	}

	plain := &Behavior{Expression: &AccessScope{Name: "x"}}
	if plain.HasBind() || plain.HasUnbind() {
		t.Error("behavior without hooks reported hooks")
	}
}

func TestSplitInterpolation(t *testing.T) {
	in, err := SplitInterpolation("${a} and ${ b.c }!")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in.Parts, []string{"", " and ", "!"}) {
		t.Errorf("Parts = %q", in.Parts)
	}
	if len(in.Expressions) != 2 {
		t.Fatalf("got %d expressions", len(in.Expressions))
	}
	if got := in.String(); got != "${a} and ${b.c}!" {
		t.Errorf("String = %q", got)
	}

	static, err := SplitInterpolation(`price: \${5}`)
	if err != nil {
		t.Fatal(err)
	}
	if !static.IsStatic() || static.Parts[0] != "price: ${5}" {
		t.Errorf("escaped template = %#v", static)
	}

	quoted, err := SplitInterpolation(`${ok ? "}" : 'x'}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(quoted.Expressions) != 1 {
		t.Errorf("brace inside string split the segment: %#v", quoted)
	}

	for _, bad := range []string{"${a", "${}", "${ a b }"} {
		if _, err := SplitInterpolation(bad); !errors.Is(err, ErrSyntax) {
			t.Errorf("SplitInterpolation(%q) error = %v, want ErrSyntax", bad, err)
		}
	}
}
