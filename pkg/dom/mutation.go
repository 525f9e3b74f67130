package dom

// MutationType says what changed in a Mutation.
type MutationType uint8

const (
	MutationChildren MutationType = iota
	MutationText
	MutationAttr
	MutationValue
)

// Mutation describes one change to a tree.
type Mutation struct {
	Target *Node
	Type   MutationType
	Name   string // attribute name for MutationAttr and MutationValue
}

// OnMutation registers fn to be called after every change to n or its
// descendants. A later call replaces the previous hook; nil removes it.
func (n *Node) OnMutation(fn func(Mutation)) {
	n.onMutate = fn
}

func (n *Node) mutated(m Mutation) {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.onMutate != nil {
			cur.onMutate(m)
		}
	}
}
