package theme

import (
	"strings"
	"testing"

	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/types"
)

func TestApply(t *testing.T) {
	doc, err := dom.ParseString(`<html><head><title>p</title></head><body></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	Apply(doc)

	style, err := doc.QueryOne("style#lo-theme")
	if err != nil || style == nil {
		t.Fatalf("style node not found after Apply: %v", err)
	}
	if !strings.Contains(style.Text(), types.ClassHidden) {
		t.Errorf("stylesheet does not mention %q", types.ClassHidden)
	}
}

func TestApplyReplacesPreviousCopy(t *testing.T) {
	doc, err := dom.ParseString(`<html><head></head><body></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	Apply(doc)
	Apply(doc)

	styles, err := doc.Query("style#lo-theme")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(styles) != 1 {
		t.Errorf("got %d style nodes, want 1", len(styles))
	}
}

func TestCSSMatchesContract(t *testing.T) {
	for _, want := range []string{
		types.AttrProcessed,
		types.ClassGrouped,
		types.ClassStrip,
		types.ClassCard,
		types.ClassActive,
		types.ClassHolder,
	} {
		if !strings.Contains(CSS(), want) {
			t.Errorf("stylesheet does not mention %q", want)
		}
	}
}
