package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/listenordnung/internal/server"
)

// TreeNode represents a visible row in the container tree.
type TreeNode struct {
	Container *server.ContainerInfo // non-nil for container headers
	Group     *server.GroupInfo     // non-nil for group rows
	Parent    string                // container ID the group row belongs to
	Current   string                // visible group of the parent container
}

// TreeModel manages the collapsible container/group tree.
type TreeModel struct {
	Containers []server.ContainerInfo
	Expanded   map[string]bool // container ID -> expanded
	Cursor     int
	Offset     int
	Width      int
	Height     int
}

func NewTreeModel(containers []server.ContainerInfo) TreeModel {
	expanded := make(map[string]bool)
	for _, c := range containers {
		expanded[c.ID] = true
	}
	return TreeModel{
		Containers: containers,
		Expanded:   expanded,
	}
}

// VisibleNodes returns the flat list of currently visible rows.
func (m TreeModel) VisibleNodes() []TreeNode {
	var nodes []TreeNode
	for i := range m.Containers {
		c := &m.Containers[i]
		nodes = append(nodes, TreeNode{Container: c})
		if m.Expanded[c.ID] {
			for j := range c.Groups {
				nodes = append(nodes, TreeNode{
					Group:   &c.Groups[j],
					Parent:  c.ID,
					Current: c.Current,
				})
			}
		}
	}
	return nodes
}

// SelectedNode returns the row under the cursor, or nil.
func (m TreeModel) SelectedNode() *TreeNode {
	nodes := m.VisibleNodes()
	if m.Cursor >= 0 && m.Cursor < len(nodes) {
		return &nodes[m.Cursor]
	}
	return nil
}

func (m *TreeModel) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
}

func (m *TreeModel) MoveDown() {
	nodes := m.VisibleNodes()
	if m.Cursor < len(nodes)-1 {
		m.Cursor++
	}
	visibleRows := m.Height - 2
	if visibleRows < 1 {
		visibleRows = 1
	}
	if m.Cursor >= m.Offset+visibleRows {
		m.Offset = m.Cursor - visibleRows + 1
	}
}

// Toggle expands/collapses the selected container.
func (m *TreeModel) Toggle() {
	node := m.SelectedNode()
	if node == nil || node.Container == nil {
		return
	}
	m.Expanded[node.Container.ID] = !m.Expanded[node.Container.ID]
}

// View renders the tree.
func (m TreeModel) View() string {
	nodes := m.VisibleNodes()
	if len(nodes) == 0 {
		return "No containers organized yet."
	}

	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 20
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	containerStyle := lipgloss.NewStyle().Bold(true)
	currentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	var b strings.Builder
	end := m.Offset + visibleRows
	if end > len(nodes) {
		end = len(nodes)
	}

	for i := m.Offset; i < end; i++ {
		node := nodes[i]
		var line string

		if node.Container != nil {
			icon := "▶"
			if m.Expanded[node.Container.ID] {
				icon = "▼"
			}
			id := node.Container.ID
			if id == "" {
				id = "(unaddressed)"
			}
			line = containerStyle.Render(fmt.Sprintf("%s %s (%d items)", icon, id, node.Container.Items))
			if len(node.Container.Groups) == 0 {
				line += dimStyle.Render("  flat")
			}
		} else if node.Group != nil {
			marker := "  "
			if node.Group.Name == node.Current {
				marker = currentStyle.Render("● ")
			}
			line = "  " + marker + fmt.Sprintf("%s (%d)", node.Group.Name, node.Group.Count)
		}

		if i == m.Cursor {
			for lipgloss.Width(line) < m.Width {
				line += " "
			}
			line = cursorStyle.Render(line)
		}

		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
