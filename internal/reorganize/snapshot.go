package reorganize

import (
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/types"
)

// itemSlot records where an item node lived before reorganization: its
// parent and the sibling it preceded. Items can sit arbitrarily deep below
// the container's direct children, so the top-level child list alone is not
// enough to undo a partial rebuild.
type itemSlot struct {
	node   *dom.Node
	parent *dom.Node
	next   *dom.Node
}

// rollback holds everything needed to restore a container to its exact
// pre-reorganize state, node for node.
type rollback struct {
	children []*dom.Node
	classes  []string
	slots    []itemSlot
}

func capture(container *types.Container, groups []*types.Group) rollback {
	rb := rollback{
		children: container.Node.Children(),
		classes:  append([]string(nil), container.Node.Classes()...),
	}
	for _, g := range groups {
		for _, item := range g.Items {
			slot := itemSlot{node: item.Node, parent: item.Node.Parent()}
			if p := item.Node.Parent(); p != nil {
				siblings := p.Children()
				for i, s := range siblings {
					if s == item.Node && i+1 < len(siblings) {
						slot.next = siblings[i+1]
						break
					}
				}
			}
			rb.slots = append(rb.slots, slot)
		}
	}
	return rb
}

// restore puts the captured children back under the container and each item
// back into its recorded slot. Items are re-inserted in reverse capture
// order so that an item whose recorded next-sibling is a later item finds it
// already in place.
func (rb rollback) restore(doc *dom.Document, container *types.Container) {
	// Detach items first so rebuilt structure does not hold them.
	for _, slot := range rb.slots {
		doc.Remove(slot.node)
	}

	// Whatever the failed build appended is discarded; release our own
	// structure so its wrappers go with it.
	for _, c := range doc.RemoveChildren(container.Node) {
		if isOwnStructure(c) {
			doc.Release(c)
		}
	}
	for _, c := range rb.children {
		doc.Append(container.Node, c)
	}

	for i := len(rb.slots) - 1; i >= 0; i-- {
		slot := rb.slots[i]
		if slot.parent == nil {
			continue
		}
		doc.InsertBefore(slot.parent, slot.node, slot.next)
	}

	container.Node.SetClasses(rb.classes)
}
