package dom

import (
	"errors"
	"testing"

	"github.com/vango-dev/weft/pkg/observe"
)

type changeRecorder struct {
	values []any
}

func (r *changeRecorder) HandleChange(newValue, oldValue any) error {
	r.values = append(r.values, newValue)
	return nil
}

func TestInsertBeforeAndRemove(t *testing.T) {
	root := El("div")
	anchor := NewComment("anchor")
	_ = root.AppendChild(anchor)

	a := NewText("a")
	if err := root.InsertBefore(a, anchor); err != nil {
		t.Fatal(err)
	}
	if root.FirstChild() != a || a.NextSibling() != anchor {
		t.Fatal("text should be inserted ahead of the anchor")
	}
	if a.ParentNode() != root {
		t.Error("parent not set")
	}

	if err := root.RemoveChild(a); err != nil {
		t.Fatal(err)
	}
	if a.ParentNode() != nil || len(root.Children()) != 1 {
		t.Error("RemoveChild did not detach")
	}
	if err := root.RemoveChild(a); !errors.Is(err, ErrNotChild) {
		t.Errorf("second RemoveChild error = %v", err)
	}
	if err := root.InsertBefore(a, NewText("stranger")); !errors.Is(err, ErrNotChild) {
		t.Errorf("insert before foreign ref error = %v", err)
	}
}

func TestInsertMovesNode(t *testing.T) {
	left, right := El("ul"), El("ul")
	item := El("li", "x")
	_ = left.AppendChild(item)
	_ = right.AppendChild(item)

	if len(left.Children()) != 0 || item.ParentNode() != right {
		t.Error("node was not moved between parents")
	}
}

func TestInsertFragmentMovesChildren(t *testing.T) {
	root := El("p", "end")
	frag := NewFragment(NewText("a"), NewText("b"))
	if err := root.InsertBefore(frag, root.FirstChild()); err != nil {
		t.Fatal(err)
	}
	if got := root.TextContent(); got != "abend" {
		t.Errorf("TextContent = %q", got)
	}
	if len(frag.Children()) != 0 {
		t.Error("fragment should be emptied by insertion")
	}
}

func TestHierarchyErrors(t *testing.T) {
	outer := El("div")
	inner := El("span")
	_ = outer.AppendChild(inner)

	if err := inner.AppendChild(outer); !errors.Is(err, ErrHierarchy) {
		t.Errorf("cycle error = %v", err)
	}
	if err := NewText("t").AppendChild(El("b")); !errors.Is(err, ErrHierarchy) {
		t.Errorf("text child error = %v", err)
	}
}

func TestTextAccessorIsLayoutObserver(t *testing.T) {
	text := NewText("")
	loc := observe.NewLocator()

	acc := loc.Resolve(text, "textContent")
	if !acc.Kind().Has(observe.AccessorLayout | observe.AccessorNode) {
		t.Errorf("textContent kind = %b, want layout and node", acc.Kind())
	}
	if loc.Resolve(text, "textContent") != acc {
		t.Error("accessor should be cached per node")
	}

	obs, ok := loc.Observer(text, "textContent")
	if !ok {
		t.Fatal("textContent should be observable")
	}
	rec := &changeRecorder{}
	obs.Subscribe(rec)

	if err := acc.SetValue(42, text, "textContent"); err != nil {
		t.Fatal(err)
	}
	if text.TextContent() != "42" {
		t.Errorf("text = %q", text.TextContent())
	}
	_ = acc.SetValue("42", text, "textContent")
	if len(rec.values) != 1 {
		t.Errorf("notifications = %v, want one", rec.values)
	}
}

func TestAttrAccessor(t *testing.T) {
	n := El("input")
	loc := observe.NewLocator()

	if loc.Resolve(n, "disabled").Kind().Has(observe.AccessorObservable) {
		t.Error("attributes should not be observable")
	}
	_ = loc.SetValue(n, "disabled", true)
	if v, ok := n.Attr("disabled"); !ok || v != "" {
		t.Errorf("disabled = %q, %v", v, ok)
	}
	_ = loc.SetValue(n, "disabled", false)
	if _, ok := n.Attr("disabled"); ok {
		t.Error("false should remove the attribute")
	}
	_ = loc.SetValue(n, "size", 3)
	if got := loc.GetValue(n, "size"); got != "3" {
		t.Errorf("size = %v", got)
	}
}

func TestValueAccessorNotifies(t *testing.T) {
	n := El("input")
	obs, ok := observe.NewLocator().Observer(n, "value")
	if !ok {
		t.Fatal("value should be observable")
	}
	if obs.Kind().Has(observe.AccessorLayout) {
		t.Error("value writes should not be layout-affecting")
	}
	rec := &changeRecorder{}
	obs.Subscribe(rec)
	_ = n.SetValue("typed")
	_ = n.SetValue("typed")
	obs.Unsubscribe(rec)
	_ = n.SetValue("more")

	if len(rec.values) != 1 || rec.values[0] != "typed" {
		t.Errorf("notifications = %v", rec.values)
	}
}

func TestMutationHookSeesDescendants(t *testing.T) {
	root := El("div")
	text := NewText("a")
	_ = root.AppendChild(text)

	var seen []Mutation
	root.OnMutation(func(m Mutation) { seen = append(seen, m) })

	_ = text.SetTextContent("b")
	root.SetAttr("id", "main")
	text.Remove()

	if len(seen) != 3 {
		t.Fatalf("saw %d mutations, want 3", len(seen))
	}
	if seen[0].Type != MutationText || seen[0].Target != text {
		t.Errorf("first mutation = %+v", seen[0])
	}
	if seen[1].Type != MutationAttr || seen[1].Name != "id" {
		t.Errorf("second mutation = %+v", seen[1])
	}
	if seen[2].Type != MutationChildren {
		t.Errorf("third mutation = %+v", seen[2])
	}
}

func TestHTML(t *testing.T) {
	root := El("div", Attr("class", `a"b`), Attr("hidden", ""),
		El("p", "1 < 2 & 3"),
		El("br"),
		NewComment("x"),
	)
	want := `<div class="a&quot;b" hidden><p>1 &lt; 2 &amp; 3</p><br><!--x--></div>`
	if got := HTML(root); got != want {
		t.Errorf("HTML =\n%s\nwant\n%s", got, want)
	}
}

func TestSetTextContentOnElement(t *testing.T) {
	p := El("p", El("b", "bold"), " tail")
	if p.TextContent() != "bold tail" {
		t.Errorf("TextContent = %q", p.TextContent())
	}
	_ = p.SetTextContent("plain")
	if len(p.Children()) != 1 || HTML(p) != "<p>plain</p>" {
		t.Errorf("HTML = %s", HTML(p))
	}
}
