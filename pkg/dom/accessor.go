package dom

import (
	"github.com/vango-dev/weft/pkg/observe"
)

// AccessorFor implements observe.Observable. "textContent" and "value" are
// observable properties; every other key addresses an attribute.
func (n *Node) AccessorFor(key string) observe.Accessor {
	if acc, ok := n.accessors[key]; ok {
		return acc
	}
	var acc observe.Accessor
	switch key {
	case "textContent":
		acc = &textAccessor{node: n}
	case "value":
		acc = &valueAccessor{node: n}
	default:
		acc = &attrAccessor{node: n}
	}
	if n.accessors == nil {
		n.accessors = make(map[string]observe.Accessor)
	}
	n.accessors[key] = acc
	return acc
}

// HasProperty implements observe.PropertyHolder.
func (n *Node) HasProperty(key string) bool {
	switch key {
	case "textContent", "value":
		return true
	}
	_, ok := n.attrs[key]
	return ok
}

type textAccessor struct {
	node *Node
}

func (a *textAccessor) Kind() observe.AccessorKind {
	return observe.AccessorObservable | observe.AccessorLayout | observe.AccessorNode
}

func (a *textAccessor) GetValue(obj any, key string) any {
	return a.node.TextContent()
}

func (a *textAccessor) SetValue(value any, obj any, key string) error {
	return a.node.SetTextContent(observe.Stringify(value))
}

func (a *textAccessor) Subscribe(s observe.Subscriber)   { a.node.textSubs.Add(s) }
func (a *textAccessor) Unsubscribe(s observe.Subscriber) { a.node.textSubs.Remove(s) }

type valueAccessor struct {
	node *Node
}

func (a *valueAccessor) Kind() observe.AccessorKind {
	return observe.AccessorObservable | observe.AccessorNode
}

func (a *valueAccessor) GetValue(obj any, key string) any {
	return a.node.Value()
}

func (a *valueAccessor) SetValue(value any, obj any, key string) error {
	return a.node.SetValue(value)
}

func (a *valueAccessor) Subscribe(s observe.Subscriber)   { a.node.valueSubs.Add(s) }
func (a *valueAccessor) Unsubscribe(s observe.Subscriber) { a.node.valueSubs.Remove(s) }

// attrAccessor writes attributes. nil and false remove the attribute, true
// sets it empty, anything else is stringified.
type attrAccessor struct {
	node *Node
}

func (a *attrAccessor) Kind() observe.AccessorKind {
	return observe.AccessorLayout | observe.AccessorNode
}

func (a *attrAccessor) GetValue(obj any, key string) any {
	if v, ok := a.node.Attr(key); ok {
		return v
	}
	return nil
}

func (a *attrAccessor) SetValue(value any, obj any, key string) error {
	switch v := value.(type) {
	case nil:
		a.node.RemoveAttr(key)
	case bool:
		if v {
			a.node.SetAttr(key, "")
		} else {
			a.node.RemoveAttr(key)
		}
	default:
		a.node.SetAttr(key, observe.Stringify(value))
	}
	return nil
}
