package binding

import (
	"fmt"

	"github.com/vango-dev/weft/pkg/dom"
	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

// TextBinding renders one expression into a text node. When the value is a
// node, the node is inserted ahead of the text node, which is emptied and
// kept as the anchor; a later value replaces the inserted node.
type TextBinding struct {
	Anchor *dom.Node
	Mode   Mode

	content  *ContentBinding
	w        writer
	inserted []*dom.Node
}

// NewText creates a binding rendering e into anchor.
func NewText(env *Env, e expr.Expression, anchor *dom.Node, mode Mode) *TextBinding {
	if mode == 0 {
		mode = ToView
	}
	b := &TextBinding{Anchor: anchor, Mode: mode}
	b.content = newContentBinding(env, e, mode, b)
	b.w = writer{env: env, name: fmt.Sprintf("text %s", e)}
	return b
}

// IsBound implements Binding.
func (b *TextBinding) IsBound() bool {
	return b.content.IsBound()
}

// Value returns the cached value of the expression.
func (b *TextBinding) Value() any {
	return b.content.Value()
}

// Bind implements Binding. The first write happens before Bind returns.
func (b *TextBinding) Bind(s, host *scope.Scope) error {
	if b.content.IsBound() && b.content.scope == s {
		return nil
	}
	b.Unbind()
	if err := b.content.Bind(s, host); err != nil {
		return err
	}
	return b.update(false)
}

// Unbind implements Binding. Nodes inserted by the binding are removed.
func (b *TextBinding) Unbind() {
	if !b.content.IsBound() {
		return
	}
	b.content.Unbind()
	b.w.cancel()
	b.removeInserted()
}

// Pending reports whether a deferred write is waiting for the task queue.
func (b *TextBinding) Pending() bool {
	return b.w.pending()
}

func (b *TextBinding) contentChanged() error {
	return b.update(b.Mode != OneTime)
}

func (b *TextBinding) update(deferred bool) error {
	v := b.content.Value()
	return b.w.write(deferred, func() error {
		return b.render(v)
	})
}

func (b *TextBinding) render(v any) error {
	n, isNode := dom.IsNode(v)
	if isNode && len(b.inserted) == 1 && b.inserted[0] == n {
		return nil
	}
	b.removeInserted()
	if !isNode {
		return b.Anchor.SetTextContent(observe.Stringify(v))
	}

	parent := b.Anchor.ParentNode()
	if parent == nil {
		return fmt.Errorf("text binding: %w: anchor is detached", dom.ErrHierarchy)
	}
	inserted := []*dom.Node{n}
	if n.Kind == dom.KindFragment {
		inserted = n.Children()
	}
	if err := parent.InsertBefore(n, b.Anchor); err != nil {
		return err
	}
	b.inserted = inserted
	return b.Anchor.SetTextContent("")
}

func (b *TextBinding) removeInserted() {
	for _, n := range b.inserted {
		n.Remove()
	}
	b.inserted = nil
}
