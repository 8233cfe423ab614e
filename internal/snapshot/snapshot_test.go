package snapshot

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lotas/listenordnung/internal/storage"
	"github.com/lotas/listenordnung/internal/types"
)

const loc = "https://app.example/projects"

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// organized builds an Organized slice from group name -> item names.
func organized(groups ...[2]interface{}) []types.Organized {
	var gs []*types.Group
	for _, g := range groups {
		group := &types.Group{Name: g[0].(string)}
		for _, n := range g[1].([]string) {
			group.Items = append(group.Items, &types.Item{Name: n})
		}
		gs = append(gs, group)
	}
	return []types.Organized{{Container: &types.Container{}, Groups: gs}}
}

func TestCreateFirstRevision(t *testing.T) {
	db := testDB(t)

	rev, created, diff, err := Create(db, loc, organized(
		[2]interface{}{"Web", []string{"web-ui", "web-api"}},
		[2]interface{}{"Cli", []string{"cli-tool"}},
	), "initial", "<html></html>")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rev != 1 || !created {
		t.Errorf("rev = %d created = %v, want 1 true", rev, created)
	}
	if diff != nil {
		t.Error("first revision has nothing to diff against")
	}

	snap, err := storage.GetSnapshot(db, loc, rev)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Groups) != 2 || len(snap.Items) != 3 {
		t.Errorf("stored %d groups / %d items", len(snap.Groups), len(snap.Items))
	}
}

func TestCreateSkipsIdentical(t *testing.T) {
	db := testDB(t)
	data := organized(
		[2]interface{}{"Web", []string{"web-ui", "web-api"}},
	)

	if _, _, _, err := Create(db, loc, data, "", ""); err != nil {
		t.Fatal(err)
	}
	rev, created, _, err := Create(db, loc, data, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("identical grouping must not create a new revision")
	}
	if rev != 1 {
		t.Errorf("skip should report the existing rev, got %d", rev)
	}
}

func TestCreateDiffsAgainstPrevious(t *testing.T) {
	db := testDB(t)

	if _, _, _, err := Create(db, loc, organized(
		[2]interface{}{"Web", []string{"web-ui", "web-api"}},
		[2]interface{}{"Cli", []string{"cli-tool"}},
	), "", ""); err != nil {
		t.Fatal(err)
	}

	// web-api moved to Cli, cli-tool gone, docs-site new.
	rev, created, diff, err := Create(db, loc, organized(
		[2]interface{}{"Web", []string{"web-ui"}},
		[2]interface{}{"Cli", []string{"web-api"}},
		[2]interface{}{"Docs", []string{"docs-site"}},
	), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if rev != 2 || !created {
		t.Fatalf("rev = %d created = %v", rev, created)
	}
	if diff == nil {
		t.Fatal("expected a diff against rev 1")
	}
	if len(diff.Added) != 1 || diff.Added[0].Name != "docs-site" {
		t.Errorf("Added = %+v", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0].Name != "cli-tool" {
		t.Errorf("Removed = %+v", diff.Removed)
	}
	if len(diff.Moved) != 1 || diff.Moved[0].Name != "web-api" ||
		diff.Moved[0].From != "Web" || diff.Moved[0].To != "Cli" {
		t.Errorf("Moved = %+v", diff.Moved)
	}
}

func TestDiffRevisions(t *testing.T) {
	db := testDB(t)

	if _, _, _, err := Create(db, loc, organized(
		[2]interface{}{"Web", []string{"web-ui"}},
	), "", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Create(db, loc, organized(
		[2]interface{}{"Web", []string{"web-ui", "web-new"}},
	), "", ""); err != nil {
		t.Fatal(err)
	}

	diff, err := DiffRevisions(db, loc, 1, 2)
	if err != nil {
		t.Fatalf("DiffRevisions: %v", err)
	}
	if len(diff.Added) != 1 || diff.Added[0].Name != "web-new" {
		t.Errorf("Added = %+v", diff.Added)
	}
	if len(diff.Removed) != 0 || len(diff.Moved) != 0 {
		t.Errorf("unexpected Removed/Moved: %+v / %+v", diff.Removed, diff.Moved)
	}
}

func TestDiffAgainstCurrent(t *testing.T) {
	db := testDB(t)

	if _, _, _, err := Create(db, loc, organized(
		[2]interface{}{"Web", []string{"web-ui"}},
	), "", ""); err != nil {
		t.Fatal(err)
	}

	diff, err := Diff(db, loc, 1, organized(
		[2]interface{}{"Web", []string{"web-ui"}},
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.Added)+len(diff.Removed)+len(diff.Moved) != 0 {
		t.Errorf("identical grouping should diff clean: %+v", diff)
	}
}

func TestUngroupedItems(t *testing.T) {
	db := testDB(t)

	data := []types.Organized{{
		Container: &types.Container{Items: []*types.Item{
			{Name: "alpha"}, {Name: "beta"},
		}},
	}}

	rev, created, _, err := Create(db, loc, data, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if rev != 1 || !created {
		t.Fatalf("rev = %d created = %v", rev, created)
	}

	snap, err := storage.GetSnapshot(db, loc, rev)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Groups) != 0 {
		t.Errorf("ungrouped snapshot stored %d groups", len(snap.Groups))
	}
	for _, it := range snap.Items {
		if it.GroupName != "" {
			t.Errorf("item %q has group %q, want none", it.Name, it.GroupName)
		}
	}
}

func TestFormatDiff(t *testing.T) {
	d := &DiffResult{
		Location: loc,
		Rev:      3,
		Added:    []DiffEntry{{Name: "docs-site", Group: "Docs"}},
		Removed:  []DiffEntry{{Name: "old-tool"}},
		Moved:    []MoveEntry{{Name: "web-api", From: "Web", To: "Cli"}},
	}
	out := FormatDiff(d)

	for _, want := range []string{"#3", "docs-site [Docs]", "- old-tool", "web-api: Web -> Cli"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatDiff output missing %q:\n%s", want, out)
		}
	}

	empty := FormatDiff(&DiffResult{Location: loc, Rev: 1})
	if !strings.Contains(empty, "No changes.") {
		t.Error("empty diff should say so")
	}
}
