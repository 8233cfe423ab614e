package classify

import (
	"testing"

	"github.com/lotas/listenordnung/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "General"},
		{"web-ui", "Web"},
		{"web-api", "Web"},
		{"cli-tool", "Cli"},
		{"db_prod", "Db"},
		{"api/v2", "Api"},
		{"ab-cd.ef", "Ab"}, // '-' wins over '.', fixed separator order
		{"ab-c", "Ab"},     // short suffix is fine, only the prefix is constrained
		{"a-b", "General"}, // one-rune prefix is too short
		{"x y", "General"},
		{"-leading", "General"},
		{"noseparator", "General"},
		{"UPPER-CASE", "Upper"},
		{"über-app", "Über"},
		{"my file.txt", "My file"}, // '.' tried before ' '
	}
	for _, tt := range tests {
		if got := Classify(tt.name, nil); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClassifyCustomPrecedence(t *testing.T) {
	custom := NewCustomGroups([]string{"WebApp", "Inf"})

	// Case-insensitive prefix match, stored casing wins.
	if got := Classify("webapp-frontend", custom); got != "WebApp" {
		t.Errorf("Classify(webapp-frontend) = %q, want WebApp", got)
	}
	// Custom match beats the separator heuristic.
	if got := Classify("infra-db", custom); got != "Inf" {
		t.Errorf("Classify(infra-db) = %q, want Inf", got)
	}
	// No custom match falls through to the heuristic.
	if got := Classify("cli-tool", custom); got != "Cli" {
		t.Errorf("Classify(cli-tool) = %q, want Cli", got)
	}
}

func TestNewCustomGroups(t *testing.T) {
	c := NewCustomGroups([]string{" beta ", "Alpha", "", "ALPHA", "gamma"})
	got := c.Names()
	want := []string{"Alpha", "beta", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestExtractGroupsPartition(t *testing.T) {
	names := []string{"web-ui", "api-server", "web-api", "readme", "cli-tool"}
	items := make([]*types.Item, len(names))
	for i, n := range names {
		items[i] = &types.Item{Name: n}
	}

	groups := ExtractGroups(items, nil)

	// First-seen order.
	order := []string{"Web", "Api", "General", "Cli"}
	if len(groups) != len(order) {
		t.Fatalf("got %d groups, want %d", len(groups), len(order))
	}
	for i, g := range groups {
		if g.Name != order[i] {
			t.Errorf("group[%d] = %q, want %q", i, g.Name, order[i])
		}
	}

	// Every item lands in exactly one group.
	seen := make(map[*types.Item]int)
	total := 0
	for _, g := range groups {
		for _, it := range g.Items {
			seen[it]++
			total++
		}
	}
	if total != len(items) {
		t.Fatalf("groups hold %d items, want %d", total, len(items))
	}
	for it, n := range seen {
		if n != 1 {
			t.Errorf("item %q appears %d times", it.Name, n)
		}
	}
}

func TestExtractGroupsEmpty(t *testing.T) {
	if groups := ExtractGroups(nil, nil); len(groups) != 0 {
		t.Errorf("ExtractGroups(nil) = %d groups, want 0", len(groups))
	}
}
