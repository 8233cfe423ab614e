package server

import (
	"fmt"

	"github.com/lotas/listenordnung/internal/dom"
)

// AttrNodeID is the identity attribute the extension stamps on every
// element it mirrors, so patch operations can address nodes on the real
// page.
const AttrNodeID = "data-lo-id"

// Mirror parses a "document" message into a fresh mirror document.
func Mirror(msg IncomingMsg) (*dom.Document, error) {
	if msg.Type != "document" {
		return nil, fmt.Errorf("expected document message, got %q", msg.Type)
	}
	doc, err := dom.ParseString(msg.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse mirrored page: %w", err)
	}
	doc.SetLocation(msg.Location)
	return doc, nil
}

// ApplyMutation replays one "mutation" message on the mirror, so the mirror
// tracks the real page between full document syncs. The resulting document
// mutations surface on the mirror's own mutation channel.
func ApplyMutation(doc *dom.Document, msg IncomingMsg) error {
	if msg.Type != "mutation" {
		return fmt.Errorf("expected mutation message, got %q", msg.Type)
	}

	parent, err := findByID(doc, msg.Parent)
	if err != nil {
		return err
	}

	for _, id := range msg.Removed {
		node, err := findByID(doc, id)
		if err != nil {
			// Already gone from the mirror; nothing to undo.
			continue
		}
		doc.Remove(node)
	}

	parentTag := msg.ParentTag
	if parentTag == "" {
		parentTag = parent.Tag()
	}
	for _, fragment := range msg.Added {
		nodes, err := doc.ParseFragment(parentTag, fragment)
		if err != nil {
			return fmt.Errorf("mutation fragment: %w", err)
		}
		for _, n := range nodes {
			doc.Append(parent, n)
		}
	}

	return nil
}

func findByID(doc *dom.Document, id string) (*dom.Node, error) {
	if id == "" {
		return nil, fmt.Errorf("mutation without a target id")
	}
	node, err := doc.QueryOne(fmt.Sprintf(`[%s=%q]`, AttrNodeID, id))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("no mirrored node with id %q", id)
	}
	return node, nil
}
