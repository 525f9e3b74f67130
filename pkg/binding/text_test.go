package binding

import (
	"testing"

	"github.com/vango-dev/weft/pkg/dom"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

func TestTextBindingRendersText(t *testing.T) {
	env := newEnv()
	anchor := dom.NewText("")
	root := dom.El("p", anchor)
	vm := observe.NewObject(map[string]any{"count": 3})

	b := NewText(env, mustParse(t, "count"), anchor, ToView)
	if err := b.Bind(scope.New(vm), nil); err != nil {
		t.Fatal(err)
	}
	if dom.HTML(root) != "<p>3</p>" {
		t.Fatalf("initial = %s", dom.HTML(root))
	}

	_ = vm.Set("count", 4)
	if dom.HTML(root) != "<p>3</p>" || !b.Pending() {
		t.Error("later writes to text should be deferred")
	}
	env.Queue.Flush()
	if dom.HTML(root) != "<p>4</p>" {
		t.Errorf("after flush = %s", dom.HTML(root))
	}
}

func TestTextBindingInsertsNodes(t *testing.T) {
	env := newEnv()
	anchor := dom.NewText("")
	root := dom.El("div", anchor)
	badge := dom.El("b", "new")
	vm := observe.NewObject(map[string]any{"content": badge})

	b := NewText(env, mustParse(t, "content"), anchor, ToView)
	if err := b.Bind(scope.New(vm), nil); err != nil {
		t.Fatal(err)
	}
	if got := dom.HTML(root); got != "<div><b>new</b></div>" {
		t.Fatalf("node content = %s", got)
	}
	if badge.NextSibling() != anchor {
		t.Error("node should be inserted ahead of the anchor")
	}

	frag := dom.NewFragment(dom.El("i", "a"), dom.El("i", "b"))
	_ = vm.Set("content", frag)
	env.Queue.Flush()
	if got := dom.HTML(root); got != "<div><i>a</i><i>b</i></div>" {
		t.Errorf("fragment content = %s", got)
	}
	if badge.ParentNode() != nil {
		t.Error("previous node was not removed")
	}

	_ = vm.Set("content", "plain")
	env.Queue.Flush()
	if got := dom.HTML(root); got != "<div>plain</div>" {
		t.Errorf("text content = %s", got)
	}

	_ = vm.Set("content", badge)
	env.Queue.Flush()
	b.Unbind()
	if badge.ParentNode() != nil {
		t.Error("unbind should remove inserted nodes")
	}
}

func TestTextBindingOneTimeWritesImmediately(t *testing.T) {
	env := newEnv()
	anchor := dom.NewText("")
	vm := observe.NewObject(map[string]any{"v": "a"})
	b := NewText(env, mustParse(t, "v"), anchor, OneTime)
	_ = b.Bind(scope.New(vm), nil)

	_ = vm.Set("v", "b")
	if anchor.TextContent() != "a" || b.Pending() {
		t.Error("one-time text binding reacted to a change")
	}
}
