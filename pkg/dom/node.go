package dom

import (
	"errors"
	"sort"
	"strings"

	"github.com/vango-dev/weft/pkg/observe"
)

// ErrNotChild is returned when a reference node is not a child of the
// node being modified.
var ErrNotChild = errors.New("weft: node is not a child")

// ErrHierarchy is returned when an insertion would make a node its own
// ancestor or give a child to a node that cannot have children.
var ErrHierarchy = errors.New("weft: invalid node hierarchy")

// Kind is the node type discriminator.
type Kind uint8

const (
	KindElement  Kind = iota // <div>, <p>, etc.
	KindText                 // Plain text node
	KindComment              // Comment, used as an anchor
	KindFragment             // Grouping without wrapper
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindComment:
		return "Comment"
	case KindFragment:
		return "Fragment"
	default:
		return "Unknown"
	}
}

// Node is one node of a render tree.
type Node struct {
	Kind Kind
	Tag  string

	text     string
	attrs    map[string]string
	value    any
	parent   *Node
	children []*Node

	textSubs  observe.SubscriberList
	valueSubs observe.SubscriberList
	accessors map[string]observe.Accessor
	onMutate  func(Mutation)
}

// NewElement creates an element node.
func NewElement(tag string) *Node {
	return &Node{Kind: KindElement, Tag: strings.ToLower(tag)}
}

// NewText creates a text node.
func NewText(text string) *Node {
	return &Node{Kind: KindText, text: text}
}

// NewComment creates a comment node.
func NewComment(text string) *Node {
	return &Node{Kind: KindComment, text: text}
}

// NewFragment creates a fragment holding children. Inserting a fragment
// moves its children instead of the fragment itself.
func NewFragment(children ...*Node) *Node {
	f := &Node{Kind: KindFragment}
	for _, c := range children {
		_ = f.AppendChild(c)
	}
	return f
}

// IsNode reports whether v is a render node, and returns it.
func IsNode(v any) (*Node, bool) {
	n, ok := v.(*Node)
	return n, ok && n != nil
}

// ParentNode returns the parent, or nil for a detached node.
func (n *Node) ParentNode() *Node {
	return n.parent
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

// NextSibling returns the node following n in its parent, or nil.
func (n *Node) NextSibling() *Node {
	if n.parent == nil {
		return nil
	}
	i := n.parent.indexOf(n)
	if i < 0 || i+1 >= len(n.parent.children) {
		return nil
	}
	return n.parent.children[i+1]
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node) canHaveChildren() bool {
	return n.Kind == KindElement || n.Kind == KindFragment
}

// AppendChild inserts child as the last child of n.
func (n *Node) AppendChild(child *Node) error {
	return n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref, or at the end when ref is nil. A
// child that already has a parent is moved. Inserting a fragment moves its
// children and leaves the fragment empty.
func (n *Node) InsertBefore(child, ref *Node) error {
	if !n.canHaveChildren() || child.Contains(n) {
		return ErrHierarchy
	}
	if ref != nil && ref.parent != n {
		return ErrNotChild
	}

	var moved []*Node
	if child.Kind == KindFragment {
		moved = child.children
		child.children = nil
		for _, c := range moved {
			c.parent = nil
		}
	} else {
		if child.parent != nil {
			child.parent.detach(child)
		}
		moved = []*Node{child}
	}
	if len(moved) == 0 {
		return nil
	}

	at := len(n.children)
	if ref != nil {
		at = n.indexOf(ref)
	}
	next := make([]*Node, 0, len(n.children)+len(moved))
	next = append(next, n.children[:at]...)
	next = append(next, moved...)
	next = append(next, n.children[at:]...)
	n.children = next
	for _, c := range moved {
		c.parent = n
	}
	n.mutated(Mutation{Target: n, Type: MutationChildren})
	return nil
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) error {
	if child == nil || child.parent != n {
		return ErrNotChild
	}
	n.detach(child)
	n.mutated(Mutation{Target: n, Type: MutationChildren})
	return nil
}

// Remove detaches n from its parent, if any.
func (n *Node) Remove() {
	if n.parent != nil {
		_ = n.parent.RemoveChild(n)
	}
}

func (n *Node) detach(child *Node) {
	if i := n.indexOf(child); i >= 0 {
		n.children = append(n.children[:i], n.children[i+1:]...)
	}
	child.parent = nil
}

// TextContent returns the text of a text or comment node, or the
// concatenated text of an element's descendants.
func (n *Node) TextContent() string {
	switch n.Kind {
	case KindText, KindComment:
		return n.text
	}
	var b strings.Builder
	n.collectText(&b)
	return b.String()
}

func (n *Node) collectText(b *strings.Builder) {
	for _, c := range n.children {
		switch c.Kind {
		case KindText:
			b.WriteString(c.text)
		case KindElement, KindFragment:
			c.collectText(b)
		}
	}
}

// SetTextContent replaces the text of a text or comment node. On elements
// it replaces all children with a single text node.
func (n *Node) SetTextContent(text string) error {
	old := n.TextContent()
	switch n.Kind {
	case KindText, KindComment:
		if n.text == text {
			return nil
		}
		n.text = text
	default:
		for _, c := range n.children {
			c.parent = nil
		}
		n.children = nil
		if text != "" {
			t := NewText(text)
			t.parent = n
			n.children = []*Node{t}
		}
	}
	n.mutated(Mutation{Target: n, Type: MutationText})
	return n.textSubs.Notify(text, old)
}

// Attr returns the value of an attribute and whether it is set.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// AttrNames returns the attribute names in sorted order.
func (n *Node) AttrNames() []string {
	names := make([]string, 0, len(n.attrs))
	for name := range n.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetAttr sets an attribute.
func (n *Node) SetAttr(name, value string) {
	if old, ok := n.attrs[name]; ok && old == value {
		return
	}
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[name] = value
	n.mutated(Mutation{Target: n, Type: MutationAttr, Name: name})
}

// RemoveAttr removes an attribute.
func (n *Node) RemoveAttr(name string) {
	if _, ok := n.attrs[name]; !ok {
		return
	}
	delete(n.attrs, name)
	n.mutated(Mutation{Target: n, Type: MutationAttr, Name: name})
}

// Value returns the value property of a form element.
func (n *Node) Value() any {
	return n.value
}

// SetValue sets the value property, as user input would, and notifies
// value subscribers.
func (n *Node) SetValue(v any) error {
	old := n.value
	if observe.SameValue(old, v) {
		return nil
	}
	n.value = v
	n.mutated(Mutation{Target: n, Type: MutationValue, Name: "value"})
	return n.valueSubs.Notify(v, old)
}
