// Package export renders an organized page as markdown or JSON. It reads
// the organizer's output, never the live document tree, so an export can
// outlive the session that produced it.
package export

import (
	"net/url"
	"strings"

	"github.com/lotas/listenordnung/internal/types"
)

// Item is one exported entry: the derived name plus the first link found
// inside the item, if any.
type Item struct {
	Name  string
	Href  string
	Title string // fetched page title, filled by Enrich
}

// Group is a named set of exported items.
type Group struct {
	Name  string
	Items []Item
}

// Container is one exported container. Ungrouped containers carry a single
// synthetic group holding every item.
type Container struct {
	Groups []Group
}

// Page is a complete export of one organized page.
type Page struct {
	Location   string
	Containers []Container
}

// Collect snapshots the organizer's output into plain values.
func Collect(location string, organized []types.Organized) *Page {
	page := &Page{Location: location}

	for _, o := range organized {
		var c Container
		if o.Groups == nil {
			c.Groups = append(c.Groups, collectGroup(types.GroupGeneral, o.Container.Items))
		} else {
			for _, g := range o.Groups {
				c.Groups = append(c.Groups, collectGroup(g.Name, g.Items))
			}
		}
		page.Containers = append(page.Containers, c)
	}

	return page
}

func collectGroup(name string, items []*types.Item) Group {
	g := Group{Name: name}
	for _, it := range items {
		g.Items = append(g.Items, Item{Name: it.Name, Href: itemHref(it)})
	}
	return g
}

func itemHref(it *types.Item) string {
	link, err := it.Node.QueryOne("a[href]")
	if err != nil || link == nil {
		return ""
	}
	href, _ := link.Attr("href")
	return href
}

// Enrich fills item titles by fetching each distinct absolute link through
// lookup. Relative links and lookup failures leave the title empty; one bad
// link never aborts the rest.
func Enrich(page *Page, lookup func(url string) (string, error)) {
	titles := make(map[string]string)

	for ci := range page.Containers {
		for gi := range page.Containers[ci].Groups {
			items := page.Containers[ci].Groups[gi].Items
			for ii := range items {
				href := items[ii].Href
				if !isAbsolute(href) {
					continue
				}
				title, seen := titles[href]
				if !seen {
					title, _ = lookup(href)
					titles[href] = title
				}
				items[ii].Title = title
			}
		}
	}
}

func isAbsolute(href string) bool {
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func displayName(it Item) string {
	if t := strings.TrimSpace(it.Title); t != "" {
		return t
	}
	return it.Name
}
