// Package dom wraps an HTML tree behind the narrow set of operations the
// organizer needs: selector queries, node relocation, cloning, text and
// attribute access. All structural mutations go through the Document so they
// can be observed on the mutation channel, the same way a page script would
// see them arrive from a MutationObserver.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document owns one HTML tree and its mutation subscribers.
//
// A Document is not safe for concurrent use; the organizer owns it on a
// single goroutine and external updates (live mode) are funneled through
// that goroutine.
type Document struct {
	root     *html.Node
	location string
	wrappers map[*html.Node]*Node
	subs     []chan MutationRecord
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		root:     root,
		wrappers: make(map[*html.Node]*Node),
	}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Location returns the document's current location identifier.
func (d *Document) Location() string {
	return d.location
}

// SetLocation records a new location and emits a navigation record if it
// differs from the current one. The foreign app never reloads the page, so
// this is the only navigation signal observers get.
func (d *Document) SetLocation(loc string) {
	if loc == d.location {
		return
	}
	d.location = loc
	d.emit(MutationRecord{Kind: MutationNavigation, Location: loc})
}

// Root returns the document root node.
func (d *Document) Root() *Node {
	return d.wrap(d.root)
}

// Render serializes the whole document back to HTML.
func (d *Document) Render() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return b.String(), nil
}

// Query returns all nodes in the document matching the CSS selector.
// An invalid selector returns an error; callers are expected to skip it.
func (d *Document) Query(selector string) ([]*Node, error) {
	return d.wrap(d.root).Query(selector)
}

// QueryOne returns the first match for the selector, or nil.
func (d *Document) QueryOne(selector string) (*Node, error) {
	nodes, err := d.Query(selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// Head returns the document's head element, or nil.
func (d *Document) Head() *Node {
	for el := range d.root.Descendants() {
		if el.Type == html.ElementNode && el.DataAtom == atom.Head {
			return d.wrap(el)
		}
	}
	return nil
}

// ParseFragment parses an HTML fragment as it would appear inside a node
// with the given tag, returning the detached top-level nodes.
func (d *Document) ParseFragment(parentTag, fragment string) ([]*Node, error) {
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     parentTag,
		DataAtom: atom.Lookup([]byte(parentTag)),
	}
	parsed, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	out := make([]*Node, 0, len(parsed))
	for _, el := range parsed {
		out = append(out, d.wrap(el))
	}
	return out, nil
}

// CreateElement builds a detached element. It emits nothing until the node
// is appended somewhere.
func (d *Document) CreateElement(tag string) *Node {
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.wrap(el)
}

// CreateText builds a detached text node.
func (d *Document) CreateText(text string) *Node {
	return d.wrap(&html.Node{Type: html.TextNode, Data: text})
}

// Append attaches child as the last child of parent. If child is already
// attached elsewhere it is detached first, so this doubles as the move
// operation: the node object keeps its identity, attributes and all.
func (d *Document) Append(parent, child *Node) {
	if child.el.Parent != nil {
		child.el.Parent.RemoveChild(child.el)
	}
	parent.el.AppendChild(child.el)
	d.emit(MutationRecord{
		Kind:   MutationChildList,
		Target: parent,
		Added:  []*Node{child},
	})
}

// InsertBefore attaches node as a child of parent, immediately before ref.
// A nil ref appends at the end. Like Append, an attached node is detached
// from its old parent first.
func (d *Document) InsertBefore(parent, node, ref *Node) {
	if node.el.Parent != nil {
		node.el.Parent.RemoveChild(node.el)
	}
	if ref == nil {
		parent.el.AppendChild(node.el)
	} else {
		parent.el.InsertBefore(node.el, ref.el)
	}
	d.emit(MutationRecord{
		Kind:   MutationChildList,
		Target: parent,
		Added:  []*Node{node},
	})
}

// Remove detaches a node from its parent. Detached nodes stay usable and can
// be re-attached with Append.
func (d *Document) Remove(node *Node) {
	if node.el.Parent == nil {
		return
	}
	parent := d.wrap(node.el.Parent)
	node.el.Parent.RemoveChild(node.el)
	d.emit(MutationRecord{
		Kind:    MutationChildList,
		Target:  parent,
		Removed: []*Node{node},
	})
}

// RemoveChildren detaches all children of a node and returns them in order.
func (d *Document) RemoveChildren(node *Node) []*Node {
	var removed []*Node
	for node.el.FirstChild != nil {
		c := node.el.FirstChild
		node.el.RemoveChild(c)
		removed = append(removed, d.wrap(c))
	}
	if len(removed) > 0 {
		d.emit(MutationRecord{
			Kind:    MutationChildList,
			Target:  node,
			Removed: removed,
		})
	}
	return removed
}

// Clone returns a detached deep copy of a node. The copy carries the same
// attributes and subtree but none of the original's identity.
func (d *Document) Clone(node *Node) *Node {
	return d.wrap(cloneTree(node.el))
}

// Release drops the canonical wrappers for a node and its whole subtree.
// Callers release structure they built once it is dismantled for good;
// without this a long-lived document accumulates a wrapper for every strip,
// card and union clone it ever discarded. Foreign nodes are never released,
// so their identity survives relocation.
func (d *Document) Release(node *Node) {
	d.release(node.el)
}

func (d *Document) release(el *html.Node) {
	delete(d.wrappers, el)
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		d.release(c)
	}
}

// SetText replaces a node's children with a single text node.
func (d *Document) SetText(node *Node, text string) {
	for node.el.FirstChild != nil {
		node.el.RemoveChild(node.el.FirstChild)
	}
	node.el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Subscribe returns a channel of mutation records. The channel is buffered;
// records are dropped rather than blocking the mutator, matching how a
// debounced observer treats bursts anyway.
func (d *Document) Subscribe() <-chan MutationRecord {
	ch := make(chan MutationRecord, 256)
	d.subs = append(d.subs, ch)
	return ch
}

func (d *Document) emit(rec MutationRecord) {
	for _, ch := range d.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// wrap returns the canonical wrapper for an element, so that two lookups of
// the same underlying node compare equal by pointer.
func (d *Document) wrap(el *html.Node) *Node {
	if n, ok := d.wrappers[el]; ok {
		return n
	}
	n := &Node{doc: d, el: el}
	d.wrappers[el] = n
	return n
}

func cloneTree(el *html.Node) *html.Node {
	cp := &html.Node{
		Type:     el.Type,
		DataAtom: el.DataAtom,
		Data:     el.Data,
		Attr:     append([]html.Attribute(nil), el.Attr...),
	}
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendChild(cloneTree(c))
	}
	return cp
}

// compileSelector parses a CSS selector group, returning an error the caller
// can log and skip instead of aborting a discovery pass.
func compileSelector(selector string) (cascadia.Matcher, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	return sel, nil
}
