// Package dom provides the render targets bindings write to: a small
// mutable node tree of elements, text, comments and fragments.
//
// Nodes are Observable, so the observe.Locator resolves their properties
// to accessors that report themselves as layout-affecting. Text content
// and the value property notify subscribers, which is what two-way bindings
// and live previews listen to.
//
// A tree is not safe for concurrent use. Like a browser document it is
// owned by the goroutine running the task queue; other goroutines post
// work onto that queue instead of touching nodes directly.
//
// # Building Trees
//
//	root := dom.El("div", dom.Attr("class", "card"),
//	    dom.El("h1", "Title"),
//	    dom.El("p", dom.NewText("")),
//	)
//
// # Rendering
//
// HTML and WriteHTML serialize a tree with text and attribute escaping.
package dom
