// Package classify derives group names from item display names. It is pure:
// no I/O, total over all strings.
package classify

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lotas/listenordnung/internal/types"
)

// separators are tried in this fixed order; the first one that yields a
// valid prefix wins, even if a later separator would split "nicer". The
// ordering is part of the contract; do not reorder.
var separators = []byte{'-', '_', '/', '.', ' '}

// CustomGroups is a user-maintained set of override names, consulted before
// the separator heuristic. Matching is case-insensitive against the start of
// the item name; the stored casing is what becomes the group name.
type CustomGroups struct {
	names []string
}

// NewCustomGroups builds an override set. Entries are sorted
// case-insensitively so iteration order is deterministic within a run.
func NewCustomGroups(names []string) *CustomGroups {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return &CustomGroups{names: out}
}

// Names returns the entries in their deterministic iteration order.
func (c *CustomGroups) Names() []string {
	if c == nil {
		return nil
	}
	return c.names
}

// match returns the first entry the lower-cased name starts with.
func (c *CustomGroups) match(lower string) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, g := range c.names {
		if strings.HasPrefix(lower, strings.ToLower(g)) {
			return g, true
		}
	}
	return "", false
}

// Classify maps a display name to its group name.
//
// Priority: empty name -> "General"; custom group prefix match -> that entry
// as stored; first separator with a >=2 char prefix -> capitalized prefix;
// otherwise "General".
func Classify(name string, custom *CustomGroups) string {
	if name == "" {
		return types.GroupGeneral
	}

	lower := strings.ToLower(name)
	if g, ok := custom.match(lower); ok {
		return g
	}

	for _, sep := range separators {
		idx := strings.IndexByte(name, sep)
		if idx <= 0 {
			continue
		}
		prefix := name[:idx]
		if utf8.RuneCountInString(prefix) < 2 {
			continue
		}
		return capitalize(prefix)
	}

	return types.GroupGeneral
}

// ExtractGroups classifies every item, building groups in first-seen order.
// Every item lands in exactly one group; the union of all groups is the
// input set.
func ExtractGroups(items []*types.Item, custom *CustomGroups) []*types.Group {
	var groups []*types.Group
	index := make(map[string]*types.Group)

	for _, item := range items {
		name := Classify(item.Name, custom)
		g, ok := index[name]
		if !ok {
			g = &types.Group{Name: name}
			index[name] = g
			groups = append(groups, g)
		}
		g.Items = append(g.Items, item)
	}

	return groups
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
