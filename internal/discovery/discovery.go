// Package discovery locates candidate item containers inside the foreign
// document. It owns no structure itself; it only finds nodes and claims
// containers so later passes skip them.
package discovery

import (
	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/types"
)

// Config holds the ordered selector lists. Earlier entries take precedence;
// every entry is tried and a broken one is skipped, never fatal.
type Config struct {
	ContainerSelectors []string
	ItemSelectors      []string
	NameSelectors      []string
}

// DefaultConfig matches the common shapes of SPA-rendered entity lists.
func DefaultConfig() Config {
	return Config{
		ContainerSelectors: []string{
			`[role="list"]`,
			`ul[data-testid]`,
			`nav ul`,
			`ul`,
			`ol`,
		},
		ItemSelectors: []string{
			`[role="listitem"]`,
			`li`,
			`a[href]`,
		},
		NameSelectors: []string{
			`[data-name]`,
			`.name`,
			`.title`,
			`h1, h2, h3`,
			`a`,
			`span`,
		},
	}
}

// Finder discovers containers and items in one document.
type Finder struct {
	doc *dom.Document
	cfg Config
}

// New creates a Finder over the given document.
func New(doc *dom.Document, cfg Config) *Finder {
	return &Finder{doc: doc, cfg: cfg}
}

// FindContainers returns all unclaimed containers that yield at least one
// named item. Accepted containers are claimed immediately, before any
// mutation happens, so a re-entrant pass cannot double-claim them.
func (f *Finder) FindContainers() []*types.Container {
	var accepted []*types.Container

	for _, selector := range f.cfg.ContainerSelectors {
		nodes, err := f.doc.Query(selector)
		if err != nil {
			applog.Warn("discovery.selector", "selector", selector, "err", err.Error())
			continue
		}

		for _, node := range nodes {
			c := &types.Container{Node: node}
			if c.Claimed() {
				continue
			}
			if insideProcessed(node) {
				continue
			}
			if overlapsAccepted(node, accepted) {
				continue
			}
			items := f.FindItems(node)
			if len(items) == 0 {
				continue
			}
			c.Items = items
			c.Claim()
			accepted = append(accepted, c)
			applog.Info("discovery.container", "selector", selector, "items", len(items))
		}
	}

	return accepted
}

// FindItems returns the named items inside a container, in document order of
// first match. A node matched by more than one selector is counted once;
// nodes nested inside an already-accepted item are suppressed, as are nodes
// that contain one. Items with no discoverable name are discarded.
func (f *Finder) FindItems(container *dom.Node) []*types.Item {
	var items []*types.Item
	seen := make(map[*dom.Node]bool)

	for _, selector := range f.cfg.ItemSelectors {
		nodes, err := container.Query(selector)
		if err != nil {
			applog.Warn("discovery.selector", "selector", selector, "err", err.Error())
			continue
		}

		for _, node := range nodes {
			if seen[node] || overlapsItem(node, items) {
				continue
			}
			seen[node] = true

			name := f.ExtractName(node)
			if name == "" {
				continue
			}
			items = append(items, &types.Item{Node: node, Name: name})
		}
	}

	return items
}

// ExtractName derives an item's display name by trying the prioritized
// name-lookup rules; the first rule that finds a descendant with non-empty
// text wins. Returns "" if nothing matches.
func (f *Finder) ExtractName(item *dom.Node) string {
	for _, selector := range f.cfg.NameSelectors {
		node, err := item.QueryOne(selector)
		if err != nil {
			applog.Warn("discovery.name-selector", "selector", selector, "err", err.Error())
			continue
		}
		if node == nil {
			continue
		}
		if text := node.Text(); text != "" {
			return text
		}
	}
	return ""
}

// insideProcessed reports whether the node sits under a container claimed by
// an earlier pass or under structure a reorganize built (a holder keeps
// nested lists of its relocated items; the union holder keeps their clones).
// Such candidates belong to an already-organized region and must stay
// untouched, or a second pass over an unchanged document would build strips
// inside holders.
func insideProcessed(node *dom.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if v, ok := p.Attr(types.AttrProcessed); ok && v == "true" {
			return true
		}
		if p.HasClass(types.ClassHolder) || p.HasClass(types.ClassStrip) {
			return true
		}
	}
	return false
}

func overlapsAccepted(node *dom.Node, accepted []*types.Container) bool {
	for _, c := range accepted {
		if c.Node.Contains(node) || node.Contains(c.Node) {
			return true
		}
	}
	return false
}

// overlapsItem checks containment in both directions: a candidate nested in
// an accepted item is part of that item, and a candidate containing an
// accepted item would double-count it when a broad selector runs after a
// narrow one.
func overlapsItem(node *dom.Node, items []*types.Item) bool {
	for _, it := range items {
		if it.Node.Contains(node) || node.Contains(it.Node) {
			return true
		}
	}
	return false
}
