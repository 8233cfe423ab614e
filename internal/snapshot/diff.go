package snapshot

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lotas/listenordnung/internal/storage"
	"github.com/lotas/listenordnung/internal/types"
)

// DiffEntry is one item in a diff result.
type DiffEntry struct {
	Name  string
	Group string // group name, or empty if ungrouped
}

// MoveEntry is an item present on both sides under different groups.
type MoveEntry struct {
	Name string
	From string
	To   string
}

// DiffResult compares two groupings of the same location.
type DiffResult struct {
	Location string
	Rev      int
	Added    []DiffEntry // present now, absent in the snapshot
	Removed  []DiffEntry // present in the snapshot, absent now
	Moved    []MoveEntry // present in both, group changed
}

// Diff compares a stored revision against the current grouping. Comparison
// is by item name.
func Diff(db *sql.DB, location string, rev int, organized []types.Organized) (*DiffResult, error) {
	snap, err := storage.GetSnapshot(db, location, rev)
	if err != nil {
		return nil, err
	}
	result := diffAssignments(storedAssignment(snap), currentAssignment(organized))
	result.Location = location
	result.Rev = rev
	return result, nil
}

// DiffRevisions compares two stored revisions of a location, older first.
func DiffRevisions(db *sql.DB, location string, oldRev, newRev int) (*DiffResult, error) {
	old, err := storage.GetSnapshot(db, location, oldRev)
	if err != nil {
		return nil, err
	}
	cur, err := storage.GetSnapshot(db, location, newRev)
	if err != nil {
		return nil, err
	}
	result := diffAssignments(storedAssignment(old), storedAssignment(cur))
	result.Location = location
	result.Rev = oldRev
	return result, nil
}

func diffAssignments(before, after assignment) *DiffResult {
	result := &DiffResult{}

	for name, group := range after {
		prev, ok := before[name]
		if !ok {
			result.Added = append(result.Added, DiffEntry{Name: name, Group: group})
		} else if prev != group {
			result.Moved = append(result.Moved, MoveEntry{Name: name, From: prev, To: group})
		}
	}
	for name, group := range before {
		if _, ok := after[name]; !ok {
			result.Removed = append(result.Removed, DiffEntry{Name: name, Group: group})
		}
	}

	// Map iteration order is random; pin the output.
	sort.Slice(result.Added, func(i, j int) bool { return result.Added[i].Name < result.Added[j].Name })
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i].Name < result.Removed[j].Name })
	sort.Slice(result.Moved, func(i, j int) bool { return result.Moved[i].Name < result.Moved[j].Name })

	return result
}

// FormatDiff returns a human-readable rendering of a DiffResult.
func FormatDiff(d *DiffResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Diff against revision #%d of %s\n", d.Rev, d.Location)
	fmt.Fprintf(&sb, "Added: %d  Removed: %d  Moved: %d\n", len(d.Added), len(d.Removed), len(d.Moved))

	if len(d.Added) > 0 {
		sb.WriteString("\n+ Added:\n")
		for _, e := range d.Added {
			if e.Group != "" {
				fmt.Fprintf(&sb, "  + %s [%s]\n", e.Name, e.Group)
			} else {
				fmt.Fprintf(&sb, "  + %s\n", e.Name)
			}
		}
	}

	if len(d.Removed) > 0 {
		sb.WriteString("\n- Removed:\n")
		for _, e := range d.Removed {
			if e.Group != "" {
				fmt.Fprintf(&sb, "  - %s [%s]\n", e.Name, e.Group)
			} else {
				fmt.Fprintf(&sb, "  - %s\n", e.Name)
			}
		}
	}

	if len(d.Moved) > 0 {
		sb.WriteString("\n~ Moved:\n")
		for _, e := range d.Moved {
			fmt.Fprintf(&sb, "  ~ %s: %s -> %s\n", e.Name, orUngrouped(e.From), orUngrouped(e.To))
		}
	}

	if len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Moved) == 0 {
		sb.WriteString("\nNo changes.\n")
	}

	return sb.String()
}

func orUngrouped(group string) string {
	if group == "" {
		return "(ungrouped)"
	}
	return group
}
