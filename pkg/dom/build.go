package dom

// Attribute is a name/value pair passed to El.
type Attribute struct {
	Name  string
	Value string
}

// Attr creates an Attribute for El.
func Attr(name, value string) Attribute {
	return Attribute{Name: name, Value: value}
}

// El creates an element. Arguments can be: nil, Attribute, *Node, []*Node
// or string (appended as a text node). Other values are ignored.
func El(tag string, args ...any) *Node {
	n := NewElement(tag)
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			continue
		case Attribute:
			n.SetAttr(v.Name, v.Value)
		case *Node:
			if v != nil {
				_ = n.AppendChild(v)
			}
		case []*Node:
			for _, c := range v {
				_ = n.AppendChild(c)
			}
		case string:
			_ = n.AppendChild(NewText(v))
		}
	}
	return n
}
