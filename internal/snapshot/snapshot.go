// Package snapshot persists organized pages as revisions and compares them.
// A snapshot records the grouping result by item name, plus the page HTML
// for later inspection; it never holds node references.
package snapshot

import (
	"database/sql"
	"fmt"

	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/storage"
	"github.com/lotas/listenordnung/internal/types"
)

// Create persists the current grouping of a page as a new revision. If the
// latest revision for the location maps the same item names to the same
// groups, nothing is written. Returns the rev number, whether a new revision
// was created, and the diff against the previous revision (nil if first).
func Create(db *sql.DB, location string, organized []types.Organized, label, pageHTML string) (rev int, created bool, diff *DiffResult, err error) {
	latest, err := storage.GetLatestSnapshot(db, location)
	if err != nil {
		return 0, false, nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	current := currentAssignment(organized)

	if latest != nil && identical(storedAssignment(latest), current) {
		applog.Info("snapshot.skipped", "location", location, "rev", latest.Rev)
		return latest.Rev, false, nil, nil
	}

	groups, items := convert(organized)

	newRev, err := storage.CreateSnapshot(db, location, groups, items, label, pageHTML)
	if err != nil {
		return 0, false, nil, err
	}

	applog.Info("snapshot.created", "rev", newRev, "items", len(items), "location", location)

	if latest != nil {
		diff = diffAssignments(storedAssignment(latest), current)
	}
	return newRev, true, diff, nil
}

// convert flattens the organizer's output into storage rows. Group order and
// item order are preserved; items of ungrouped containers carry no group.
func convert(organized []types.Organized) ([]storage.SnapshotGroup, []storage.SnapshotItem) {
	var groups []storage.SnapshotGroup
	var items []storage.SnapshotItem
	groupIndex := make(map[string]int)

	for _, o := range organized {
		if o.Groups == nil {
			for _, it := range o.Container.Items {
				items = append(items, storage.SnapshotItem{Name: it.Name})
			}
			continue
		}
		for _, g := range o.Groups {
			idx, ok := groupIndex[g.Name]
			if !ok {
				idx = len(groups)
				groupIndex[g.Name] = idx
				groups = append(groups, storage.SnapshotGroup{Name: g.Name})
			}
			for _, it := range g.Items {
				i := idx
				items = append(items, storage.SnapshotItem{Name: it.Name, GroupIndex: &i})
			}
		}
	}
	return groups, items
}

// assignment maps item name to group name ("" for ungrouped). Duplicate
// names collapse; comparison is by name identity, not position.
type assignment map[string]string

func currentAssignment(organized []types.Organized) assignment {
	a := make(assignment)
	for _, o := range organized {
		if o.Groups == nil {
			for _, it := range o.Container.Items {
				a[it.Name] = ""
			}
			continue
		}
		for _, g := range o.Groups {
			for _, it := range g.Items {
				a[it.Name] = g.Name
			}
		}
	}
	return a
}

func storedAssignment(snap *storage.SnapshotFull) assignment {
	a := make(assignment, len(snap.Items))
	for _, it := range snap.Items {
		a[it.Name] = it.GroupName
	}
	return a
}

func identical(a, b assignment) bool {
	if len(a) != len(b) {
		return false
	}
	for name, group := range a {
		other, ok := b[name]
		if !ok || other != group {
			return false
		}
	}
	return true
}
