package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lotas/listenordnung/internal/classify"
	"github.com/lotas/listenordnung/internal/discovery"
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/types"
)

const page = `<html><body>
<ul data-testid="projects">
  <li><a href="https://app.example/web-ui">web-ui</a></li>
  <li><a href="https://app.example/web-api">web-api</a></li>
  <li><a href="/cli-tool">cli-tool</a></li>
</ul>
</body></html>`

func collectFixture(t *testing.T) *Page {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	containers := discovery.New(doc, discovery.DefaultConfig()).FindContainers()
	if len(containers) != 1 {
		t.Fatalf("found %d containers", len(containers))
	}
	c := containers[0]
	organized := []types.Organized{{
		Container: c,
		Groups:    classify.ExtractGroups(c.Items, nil),
	}}
	return Collect("https://app.example/projects", organized)
}

func TestCollect(t *testing.T) {
	p := collectFixture(t)

	if p.Location != "https://app.example/projects" {
		t.Errorf("location = %q", p.Location)
	}
	if len(p.Containers) != 1 {
		t.Fatalf("%d containers", len(p.Containers))
	}
	groups := p.Containers[0].Groups
	if len(groups) != 2 || groups[0].Name != "Web" || groups[1].Name != "Cli" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[0].Items[0].Href != "https://app.example/web-ui" {
		t.Errorf("href = %q", groups[0].Items[0].Href)
	}
}

func TestCollectUngrouped(t *testing.T) {
	c := &types.Container{Items: []*types.Item{
		{Name: "alpha", Node: detachedNode(t)},
	}}
	p := Collect("loc", []types.Organized{{Container: c}})

	groups := p.Containers[0].Groups
	if len(groups) != 1 || groups[0].Name != types.GroupGeneral {
		t.Fatalf("ungrouped items should land in one synthetic group: %+v", groups)
	}
}

func TestMarkdown(t *testing.T) {
	out := Markdown(collectFixture(t))

	for _, want := range []string{
		"# https://app.example/projects",
		"## Web (2 items)",
		"## Cli (1 item)",
		"[web-ui](https://app.example/web-ui)",
		"- [cli-tool](/cli-tool)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestJSON(t *testing.T) {
	out, err := JSON(collectFixture(t))
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded struct {
		Location   string `json:"location"`
		Containers []struct {
			Groups []struct {
				Name  string `json:"name"`
				Items []struct {
					Name string `json:"name"`
					Href string `json:"href"`
				} `json:"items"`
			} `json:"groups"`
		} `json:"containers"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Location != "https://app.example/projects" {
		t.Errorf("location = %q", decoded.Location)
	}
	if len(decoded.Containers[0].Groups) != 2 {
		t.Errorf("groups = %d, want 2", len(decoded.Containers[0].Groups))
	}
}

func TestEnrich(t *testing.T) {
	p := collectFixture(t)

	var calls int
	Enrich(p, func(url string) (string, error) {
		calls++
		if url == "https://app.example/web-api" {
			return "", errors.New("timeout")
		}
		return "Title of " + url, nil
	})

	// Only absolute links are fetched; the relative cli-tool link is not.
	if calls != 2 {
		t.Errorf("lookup called %d times, want 2", calls)
	}

	items := p.Containers[0].Groups[0].Items
	if items[0].Title != "Title of https://app.example/web-ui" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[1].Title != "" {
		t.Errorf("failed lookup should leave the title empty, got %q", items[1].Title)
	}

	out := Markdown(p)
	if !strings.Contains(out, "[Title of https://app.example/web-ui]") {
		t.Error("markdown should prefer the fetched title")
	}
}

func detachedNode(t *testing.T) *dom.Node {
	t.Helper()
	doc, err := dom.ParseString("<html><body><li id='x'>alpha</li></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	n, _ := doc.QueryOne("#x")
	return n
}
