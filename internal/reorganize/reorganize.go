// Package reorganize rebuilds a claimed container into a control strip plus
// per-group holders, physically relocating the original item nodes. Any
// failure rolls the container back to its pre-processing state and falls
// back to the ungrouped display path, so the foreign page is never left
// half-built.
package reorganize

import (
	"fmt"
	"strconv"

	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/types"
)

// Reorganize rebuilds the container for the given groups. The caller must
// pass more than one group; a single group is degenerate and belongs on the
// ungrouped path (DisplayAll).
func Reorganize(doc *dom.Document, container *types.Container, groups []*types.Group) error {
	if len(groups) <= 1 {
		return fmt.Errorf("reorganize: need more than one group, got %d", len(groups))
	}

	snap := capture(container, groups)

	if err := build(doc, container, groups); err != nil {
		applog.Error("reorganize.rollback", err)
		snap.restore(doc, container)
		if daErr := DisplayAll(doc, container, container.Items); daErr != nil {
			return fmt.Errorf("reorganize failed (%w), ungrouped fallback also failed: %v", err, daErr)
		}
		return fmt.Errorf("reorganize rolled back: %w", err)
	}

	container.Claim()
	container.Node.AddClass(types.ClassGrouped)
	applog.Info("reorganize.done", "groups", len(groups), "items", countItems(groups))
	return nil
}

func build(doc *dom.Document, container *types.Container, groups []*types.Group) error {
	for _, g := range groups {
		for _, item := range g.Items {
			if item.Node.Contains(container.Node) {
				return fmt.Errorf("item %q contains its own container", item.Name)
			}
		}
	}

	former := doc.RemoveChildren(container.Node)

	total := countItems(groups)
	strip := doc.CreateElement("div")
	strip.AddClass(types.ClassStrip)
	// The synthetic union card always comes first.
	doc.Append(strip, buildCard(doc, types.GroupAll, "All", total))
	for _, g := range groups {
		doc.Append(strip, buildCard(doc, g.Name, g.Name, len(g.Items)))
	}

	holders := doc.CreateElement("div")
	holders.AddClass(types.ClassHolders)
	for _, g := range groups {
		holder := buildHolder(doc, g.Name)
		for _, item := range g.Items {
			doc.Append(holder, item.Node)
		}
		doc.Append(holders, holder)
	}

	// The union holder gets structural copies, not the originals: a node
	// cannot live in its group's holder and the union holder at once, and
	// the originals keep their attached behavior exactly once.
	allHolder := buildHolder(doc, types.GroupAll)
	for _, g := range groups {
		for _, item := range g.Items {
			doc.Append(allHolder, doc.Clone(item.Node))
		}
	}
	doc.Append(holders, allHolder)

	doc.Append(container.Node, strip)
	doc.Append(container.Node, holders)

	// Non-item furniture the container held stays, after our structure.
	all := allItems(groups)
	for _, c := range former {
		if isItem(c, all) || isOwnStructure(c) {
			continue
		}
		doc.Append(container.Node, c)
	}
	return nil
}

func allItems(groups []*types.Group) []*types.Item {
	var out []*types.Item
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}

func buildCard(doc *dom.Document, id, label string, count int) *dom.Node {
	card := doc.CreateElement("div")
	card.AddClass(types.ClassCard)
	card.SetAttr(types.AttrGroup, id)

	name := doc.CreateElement("span")
	name.AddClass("lo-card-name")
	doc.SetText(name, label)
	doc.Append(card, name)

	countEl := doc.CreateElement("span")
	countEl.AddClass("lo-card-count")
	doc.SetText(countEl, strconv.Itoa(count))
	doc.Append(card, countEl)

	return card
}

func buildHolder(doc *dom.Document, id string) *dom.Node {
	holder := doc.CreateElement("div")
	holder.AddClass(types.ClassHolder)
	holder.AddClass(types.ClassHidden)
	holder.SetAttr(types.AttrGroup, id)
	return holder
}

// DisplayAll is the ungrouped display path: it moves all items back into the
// container in discovery order, followed by whatever non-item furniture the
// container held. Used for degenerate groupings, when grouping is disabled,
// and as the rollback fallback. Idempotent.
func DisplayAll(doc *dom.Document, container *types.Container, items []*types.Item) error {
	if flatAndProcessed(container, items) {
		return nil
	}

	former := container.Node.Children()
	doc.RemoveChildren(container.Node)

	for _, item := range items {
		doc.Append(container.Node, item.Node)
	}

	// Keep unrelated page furniture, but drop structure we built ourselves.
	// Dropped structure is released: the items were already moved out, so
	// only our own cards, holders and union clones go with it.
	for _, c := range former {
		if isItem(c, items) {
			continue
		}
		if isOwnStructure(c) {
			doc.Release(c)
			continue
		}
		doc.Append(container.Node, c)
	}

	container.Claim()
	container.Node.RemoveClass(types.ClassGrouped)
	applog.Info("reorganize.flat", "items", len(items))
	return nil
}

// flatAndProcessed reports whether the container is already claimed, free of
// grouping structure, and directly holds every item.
func flatAndProcessed(container *types.Container, items []*types.Item) bool {
	if !container.Claimed() || container.Node.HasClass(types.ClassGrouped) {
		return false
	}
	for _, c := range container.Node.ElementChildren() {
		if isOwnStructure(c) {
			return false
		}
	}
	for _, item := range items {
		if item.Node.Parent() != container.Node {
			return false
		}
	}
	return true
}

func isOwnStructure(n *dom.Node) bool {
	return n.HasClass(types.ClassStrip) || n.HasClass(types.ClassHolders) ||
		n.HasClass(types.ClassHolder) || n.HasClass(types.ClassCard)
}

func isItem(n *dom.Node, items []*types.Item) bool {
	for _, item := range items {
		if item.Node == n {
			return true
		}
	}
	return false
}

func countItems(groups []*types.Group) int {
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}
	return total
}
