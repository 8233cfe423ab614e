package types

import "github.com/lotas/listenordnung/internal/dom"

// DOM contract attribute and class names. Stylesheets and tests key off
// these, never off internal class names of the foreign page.
const (
	// AttrProcessed marks a claimed container. Monotonic: once set it is
	// only cleared by an explicit cache invalidation (navigation, settings
	// change).
	AttrProcessed = "data-lo-processed"
	// AttrGroup carries a group identifier on holders and controls.
	AttrGroup = "data-lo-group"

	ClassGrouped = "lo-grouped"
	ClassStrip   = "lo-strip"
	ClassCard    = "lo-card"
	ClassHolders = "lo-holders"
	ClassHolder  = "lo-holder"
	ClassHidden  = "lo-hidden"
	ClassActive  = "lo-active"
)

// GroupGeneral is the fallback group for names that produce no valid prefix.
const GroupGeneral = "General"

// GroupAll is the identifier of the synthetic union group. Its holder shows
// clones of every item; the originals live in their real group's holder.
const GroupAll = "all"

// Item is a reference to one discovered node in the foreign document. Items
// are never constructed from scratch; they are found by reference and keep
// their original identity for the whole session.
type Item struct {
	Node *dom.Node
	// Name is the derived display name, extracted once at discovery time
	// via the prioritized lookup rules. Empty if no rule matched a
	// descendant (such items are discarded during discovery).
	Name string
}

// Group is a named, ordered collection of items. Order is insertion order of
// first encounter within a discovery pass.
type Group struct {
	Name  string
	Items []*Item
}

// Container is a claimed region of the foreign document that held a flat
// item list before processing.
type Container struct {
	Node  *dom.Node
	Items []*Item
}

// Organized pairs a processed container with the groups it was given.
// Groups is nil for containers on the ungrouped path.
type Organized struct {
	Container *Container
	Groups    []*Group
}

// Claimed reports whether the container carries the processed marker.
func (c *Container) Claimed() bool {
	v, ok := c.Node.Attr(AttrProcessed)
	return ok && v == "true"
}

// Claim sets the processed marker. Done before any mutation so a re-entrant
// discovery pass cannot double-claim the container.
func (c *Container) Claim() {
	c.Node.SetAttr(AttrProcessed, "true")
}

// Unclaim clears the processed marker, making the container eligible for
// re-discovery.
func (c *Container) Unclaim() {
	c.Node.RemoveAttr(AttrProcessed)
}
