package dom

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Node is a reference to one element of the document. Wrappers are canonical
// per Document: the same underlying element always yields the same *Node, so
// pointer comparison is identity comparison.
type Node struct {
	doc *Document
	el  *html.Node
}

// Tag returns the element's tag name, or "" for non-elements.
func (n *Node) Tag() string {
	if n.el.Type != html.ElementNode {
		return ""
	}
	return n.el.Data
}

// Parent returns the node's parent, or nil if detached or at the root.
func (n *Node) Parent() *Node {
	if n.el.Parent == nil {
		return nil
	}
	return n.doc.wrap(n.el.Parent)
}

// Children returns the node's element and text children in order.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.el.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, n.doc.wrap(c))
	}
	return out
}

// ElementChildren returns only the element children, in order.
func (n *Node) ElementChildren() []*Node {
	var out []*Node
	for c := n.el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, n.doc.wrap(c))
		}
	}
	return out
}

// Query returns all descendants matching the CSS selector, in document order.
func (n *Node) Query(selector string) ([]*Node, error) {
	sel, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}
	matches := cascadia.QueryAll(n.el, sel)
	out := make([]*Node, 0, len(matches))
	for _, m := range matches {
		out = append(out, n.doc.wrap(m))
	}
	return out, nil
}

// QueryOne returns the first descendant matching the selector, or nil.
func (n *Node) QueryOne(selector string) (*Node, error) {
	sel, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}
	m := cascadia.Query(n.el, sel)
	if m == nil {
		return nil, nil
	}
	return n.doc.wrap(m), nil
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for el := other.el; el != nil; el = el.Parent {
		if el == n.el {
			return true
		}
	}
	return false
}

// Text returns the node's visible text content with whitespace collapsed.
func (n *Node) Text() string {
	var b strings.Builder
	var walk func(el *html.Node)
	walk = func(el *html.Node) {
		if el.Type == html.TextNode {
			b.WriteString(el.Data)
			b.WriteByte(' ')
			return
		}
		for c := el.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n.el)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Attr returns the value of an attribute and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.el.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute. Attribute changes are not emitted on
// the mutation channel; only child-list changes are relevant to observers.
func (n *Node) SetAttr(name, value string) {
	for i, a := range n.el.Attr {
		if a.Key == name {
			n.el.Attr[i].Val = value
			return
		}
	}
	n.el.Attr = append(n.el.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes an attribute if present.
func (n *Node) RemoveAttr(name string) {
	for i, a := range n.el.Attr {
		if a.Key == name {
			n.el.Attr = append(n.el.Attr[:i], n.el.Attr[i+1:]...)
			return
		}
	}
}

// Classes returns the node's class list.
func (n *Node) Classes() []string {
	v, _ := n.Attr("class")
	return strings.Fields(v)
}

// HasClass reports whether the node carries the given class.
func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass adds a class if not already present.
func (n *Node) AddClass(class string) {
	if n.HasClass(class) {
		return
	}
	classes := append(n.Classes(), class)
	n.SetAttr("class", strings.Join(classes, " "))
}

// RemoveClass removes a class if present.
func (n *Node) RemoveClass(class string) {
	classes := n.Classes()
	out := classes[:0]
	for _, c := range classes {
		if c != class {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		n.RemoveAttr("class")
		return
	}
	n.SetAttr("class", strings.Join(out, " "))
}

// SetClasses replaces the whole class list.
func (n *Node) SetClasses(classes []string) {
	if len(classes) == 0 {
		n.RemoveAttr("class")
		return
	}
	n.SetAttr("class", strings.Join(classes, " "))
}

// OuterHTML serializes the node and its subtree.
func (n *Node) OuterHTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n.el); err != nil {
		return "", err
	}
	return b.String(), nil
}
