// Package view is the visibility state machine over an already-reorganized
// container: exactly one holder visible, at most one control active.
package view

import (
	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/types"
)

// Controller tracks which group is visible per container.
type Controller struct {
	doc     *dom.Document
	current map[*dom.Node]string // container node -> visible group id
}

// NewController creates a Controller over the given document.
func NewController(doc *dom.Document) *Controller {
	return &Controller{
		doc:     doc,
		current: make(map[*dom.Node]string),
	}
}

// Select makes the holder for groupID the only visible one and its control
// the only active one. An unknown groupID hides everything, logs an error
// and leaves the recorded state unchanged; it never fails.
func (c *Controller) Select(container *types.Container, groupID string) {
	holders := c.holders(container)
	controls := c.controls(container)

	var target *dom.Node
	for _, h := range holders {
		h.AddClass(types.ClassHidden)
		if id, _ := h.Attr(types.AttrGroup); id == groupID {
			target = h
		}
	}
	for _, ctl := range controls {
		ctl.RemoveClass(types.ClassActive)
	}

	if target == nil {
		applog.Error("view.select", nil, "group", groupID, "reason", "no holder")
		return
	}

	target.RemoveClass(types.ClassHidden)
	for _, ctl := range controls {
		if id, _ := ctl.Attr(types.AttrGroup); id == groupID {
			ctl.AddClass(types.ClassActive)
			break
		}
	}

	c.current[container.Node] = groupID
	c.scrollIntoView(container)
}

// SelectDefault applies the deterministic initial selection right after a
// reorganize: the first real group, never the synthetic union.
func (c *Controller) SelectDefault(container *types.Container, groups []*types.Group) {
	if len(groups) == 0 {
		return
	}
	c.Select(container, groups[0].Name)
}

// Current returns the visible group id for a container, or "".
func (c *Controller) Current(container *types.Container) string {
	return c.current[container.Node]
}

// Forget drops recorded state for containers that no longer exist, e.g.
// after a navigation rebuilt the page.
func (c *Controller) Forget(container *types.Container) {
	delete(c.current, container.Node)
}

// Reset drops all recorded view state.
func (c *Controller) Reset() {
	c.current = make(map[*dom.Node]string)
}

func (c *Controller) holders(container *types.Container) []*dom.Node {
	nodes, err := container.Node.Query("." + types.ClassHolder)
	if err != nil {
		return nil
	}
	return nodes
}

func (c *Controller) controls(container *types.Container) []*dom.Node {
	nodes, err := container.Node.Query("." + types.ClassCard)
	if err != nil {
		return nil
	}
	return nodes
}

// scrollIntoView is a UI nicety on the live page; against the in-memory
// mirror it only records intent as an attribute the bridge can forward.
func (c *Controller) scrollIntoView(container *types.Container) {
	container.Node.SetAttr("data-lo-scroll", "smooth")
}
