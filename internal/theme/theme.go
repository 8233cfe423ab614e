// Package theme injects the stylesheet for the structures the organizer
// builds. Fire-and-forget: nothing in the core depends on it having run.
package theme

import (
	"fmt"

	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/types"
)

const styleID = "lo-theme"

// css keys off the DOM contract only (the processed marker, the grouped
// class and the group-id attributes), never off the foreign page's own
// class names.
var css = fmt.Sprintf(`
[%[1]s="true"].%[2]s { display: flex; flex-direction: column; gap: 8px; }
.%[3]s { display: flex; flex-wrap: wrap; gap: 6px; }
.%[4]s { cursor: pointer; border: 1px solid #d0d0d0; border-radius: 6px; padding: 4px 10px; }
.%[4]s.%[5]s { border-color: #4a6cf7; font-weight: 600; }
.lo-card-count { margin-left: 6px; opacity: 0.6; }
.%[6]s { display: block; }
.%[6]s.%[7]s { display: none; }
`,
	types.AttrProcessed,
	types.ClassGrouped,
	types.ClassStrip,
	types.ClassCard,
	types.ClassActive,
	types.ClassHolder,
	types.ClassHidden,
)

// CSS returns the stylesheet text, for bridges that install it on the real
// page instead of the mirror.
func CSS() string {
	return css
}

// Apply appends the stylesheet to the document head, replacing any previous
// copy. A document without a head is left alone.
func Apply(doc *dom.Document) {
	head := doc.Head()
	if head == nil {
		return
	}

	if old, err := head.QueryOne("style#" + styleID); err == nil && old != nil {
		doc.Remove(old)
		doc.Release(old)
	}

	style := doc.CreateElement("style")
	style.SetAttr("id", styleID)
	doc.SetText(style, css)
	doc.Append(head, style)
}
