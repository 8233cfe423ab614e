package server

import (
	"testing"
)

const mirrored = `<html><body>
<ul data-lo-id="n1">
  <li data-lo-id="n2"><a href="/a">web-ui</a></li>
  <li data-lo-id="n3"><a href="/b">cli-tool</a></li>
</ul>
</body></html>`

func TestMirror(t *testing.T) {
	doc, err := Mirror(IncomingMsg{
		Type:     "document",
		Location: "https://app.example/projects",
		HTML:     mirrored,
	})
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if doc.Location() != "https://app.example/projects" {
		t.Errorf("location = %q", doc.Location())
	}

	items, _ := doc.Query("li")
	if len(items) != 2 {
		t.Errorf("mirror has %d items, want 2", len(items))
	}

	if _, err := Mirror(IncomingMsg{Type: "mutation"}); err == nil {
		t.Error("non-document message must be rejected")
	}
}

func TestApplyMutationAdd(t *testing.T) {
	doc, err := Mirror(IncomingMsg{Type: "document", HTML: mirrored})
	if err != nil {
		t.Fatal(err)
	}

	err = ApplyMutation(doc, IncomingMsg{
		Type:      "mutation",
		Parent:    "n1",
		ParentTag: "ul",
		Added:     []string{`<li data-lo-id="n4"><a href="/c">web-api</a></li>`},
	})
	if err != nil {
		t.Fatalf("ApplyMutation: %v", err)
	}

	items, _ := doc.Query("li")
	if len(items) != 3 {
		t.Errorf("mirror has %d items after add, want 3", len(items))
	}
	added, _ := doc.QueryOne(`[data-lo-id="n4"]`)
	if added == nil {
		t.Fatal("added node not found by id")
	}
	if added.Parent().Tag() != "ul" {
		t.Errorf("added node parent = %q, want ul", added.Parent().Tag())
	}
}

func TestApplyMutationRemove(t *testing.T) {
	doc, err := Mirror(IncomingMsg{Type: "document", HTML: mirrored})
	if err != nil {
		t.Fatal(err)
	}

	err = ApplyMutation(doc, IncomingMsg{
		Type:    "mutation",
		Parent:  "n1",
		Removed: []string{"n3", "already-gone"},
	})
	if err != nil {
		t.Fatalf("ApplyMutation: %v", err)
	}

	items, _ := doc.Query("li")
	if len(items) != 1 {
		t.Errorf("mirror has %d items after remove, want 1", len(items))
	}
}

func TestApplyMutationUnknownParent(t *testing.T) {
	doc, err := Mirror(IncomingMsg{Type: "document", HTML: mirrored})
	if err != nil {
		t.Fatal(err)
	}

	err = ApplyMutation(doc, IncomingMsg{Type: "mutation", Parent: "nope", Added: []string{"<li></li>"}})
	if err == nil {
		t.Error("unknown parent id must be an error")
	}
	if err = ApplyMutation(doc, IncomingMsg{Type: "mutation"}); err == nil {
		t.Error("mutation without a parent id must be an error")
	}
}

func TestMutationFeedsObservers(t *testing.T) {
	doc, err := Mirror(IncomingMsg{Type: "document", HTML: mirrored})
	if err != nil {
		t.Fatal(err)
	}
	events := doc.Subscribe()

	err = ApplyMutation(doc, IncomingMsg{
		Type:      "mutation",
		Parent:    "n1",
		ParentTag: "ul",
		Added:     []string{`<li data-lo-id="n5">x</li>`},
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case rec := <-events:
		if !rec.Relevant() {
			t.Error("replayed addition should be a relevant record")
		}
	default:
		t.Fatal("replayed mutation did not surface on the mutation channel")
	}
}
