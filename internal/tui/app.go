// Package tui is the terminal frontend for a live session: it renders the
// organized containers, lets the user switch groups, edit custom groups and
// browse stored snapshots. All document work stays on the session loop; the
// TUI only sends commands and consumes updates.
package tui

import (
	"context"
	"database/sql"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/listenordnung/internal/server"
)

type updateMsg struct {
	update server.Update
}

type sessionStoppedMsg struct {
	err error
}

// Model is the root bubbletea model.
type Model struct {
	session *server.Session
	db      *sql.DB
	port    int

	update    server.Update
	connected bool

	activeView ViewType
	tree       TreeModel
	groups     GroupsView
	snapshots  SnapshotsView

	width  int
	height int
	err    error
}

// NewModel creates the root model over a live session. db may be nil when
// persistence is unavailable; the snapshots view degrades.
func NewModel(session *server.Session, db *sql.DB, port int) Model {
	return Model{
		session:   session,
		db:        db,
		port:      port,
		groups:    NewGroupsView(),
		snapshots: NewSnapshotsView(db),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		runSession(m.session),
		listenUpdates(m.session),
		m.snapshots.Reload(),
	)
}

func runSession(s *server.Session) tea.Cmd {
	return func() tea.Msg {
		err := s.Run(context.Background())
		return sessionStoppedMsg{err: err}
	}
}

func listenUpdates(s *server.Session) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-s.Updates()
		if !ok {
			return sessionStoppedMsg{}
		}
		return updateMsg{update: u}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tree.Width = m.width * TreeWidthPct / 100
		m.tree.Height = m.height - 5
		m.groups.Width = m.width * TreeWidthPct / 100
		m.groups.Height = m.height - 5
		m.snapshots.SetSize(m.width, m.height-5)
		return m, nil

	case updateMsg:
		m.connected = true
		m.update = msg.update
		m.rebuildTree()
		m.groups.SetData(msg.update.CustomGroups, msg.update.GroupingEnabled)
		return m, listenUpdates(m.session)

	case sessionStoppedMsg:
		m.err = msg.err
		return m, tea.Quit

	case snapshotsLoadedMsg, snapshotDetailMsg, snapshotDeletedMsg:
		var cmd tea.Cmd
		m.snapshots, cmd = m.snapshots.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Input mode captures everything except its own controls.
	if m.activeView == ViewGroups && m.groups.Adding {
		switch msg.String() {
		case "enter":
			if name := m.groups.FinishAdding(); name != "" {
				m.session.AddCustomGroup(name)
			}
		case "esc":
			m.groups.CancelAdding()
		case "backspace":
			m.groups.Backspace()
		case "ctrl+c":
			return m, tea.Quit
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				m.groups.TypeRune(msg.String())
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.activeView = (m.activeView + 1) % 3
		if m.activeView == ViewSnapshots {
			return m, m.snapshots.Reload()
		}
		return m, nil
	case "1":
		m.activeView = ViewContainers
		return m, nil
	case "2":
		m.activeView = ViewGroups
		return m, nil
	case "3":
		m.activeView = ViewSnapshots
		return m, m.snapshots.Reload()
	}

	switch m.activeView {
	case ViewContainers:
		switch msg.String() {
		case "up", "k":
			m.tree.MoveUp()
		case "down", "j":
			m.tree.MoveDown()
		case "enter":
			node := m.tree.SelectedNode()
			if node == nil {
				break
			}
			if node.Group != nil {
				m.session.Select(node.Parent, node.Group.Name)
			} else {
				m.tree.Toggle()
			}
		case "t":
			m.session.SetGroupingEnabled(!m.update.GroupingEnabled)
		case "s":
			if m.db != nil {
				m.session.SaveSnapshot(m.db, "")
			}
		}
		return m, nil

	case ViewGroups:
		switch msg.String() {
		case "up", "k":
			m.groups.MoveUp()
		case "down", "j":
			m.groups.MoveDown()
		case "a":
			m.groups.StartAdding()
		case "d":
			if name := m.groups.Selected(); name != "" {
				m.session.RemoveCustomGroup(name)
			}
		case "t":
			m.session.SetGroupingEnabled(!m.update.GroupingEnabled)
		}
		return m, nil

	case ViewSnapshots:
		var cmd tea.Cmd
		m.snapshots, cmd = m.snapshots.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) rebuildTree() {
	oldCursor := m.tree.Cursor
	oldOffset := m.tree.Offset
	oldExpanded := m.tree.Expanded

	m.tree = NewTreeModel(m.update.Containers)
	m.tree.Width = m.width * TreeWidthPct / 100
	m.tree.Height = m.height - 5

	if oldExpanded != nil {
		for id, exp := range oldExpanded {
			m.tree.Expanded[id] = exp
		}
	}

	nodes := m.tree.VisibleNodes()
	if oldCursor >= len(nodes) {
		oldCursor = len(nodes) - 1
	}
	if oldCursor < 0 {
		oldCursor = 0
	}
	m.tree.Cursor = oldCursor
	m.tree.Offset = oldOffset
}

func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n", m.err)
	}

	items := 0
	for _, c := range m.update.Containers {
		items += c.Items
	}
	counts := [3]int{len(m.update.Containers), len(m.update.CustomGroups), len(m.snapshots.snapshots)}

	var stats string
	if m.connected {
		stats = fmt.Sprintf("● connected · %d items", items)
		if !m.update.GroupingEnabled {
			stats += " · grouping off"
		}
	} else {
		stats = fmt.Sprintf("○ waiting for extension on :%d", m.port)
	}

	navbar := renderNavbar(m.activeView, m.update.Location, counts, stats, m.width)

	paneHeight := m.height - 5
	if paneHeight < 3 {
		paneHeight = 3
	}
	leftWidth := m.width * TreeWidthPct / 100
	rightWidth := m.width - leftWidth - 3

	leftBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(leftWidth).
		Height(paneHeight)
	rightBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(rightWidth).
		Height(paneHeight)

	var left, right, help string
	switch m.activeView {
	case ViewContainers:
		left = m.tree.View()
		right = m.containerDetail()
		help = "↑↓/jk navigate · enter select group · t toggle grouping · s snapshot · tab view · q quit"
	case ViewGroups:
		left = m.groups.View()
		right = m.groupingHelp()
		help = "↑↓/jk navigate · a add · d delete · t toggle · tab view · q quit"
	case ViewSnapshots:
		left = m.snapshots.ViewList()
		right = m.snapshots.ViewDetail()
		help = "↑↓/jk navigate · x delete · r reload · tab view · q quit"
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftBorder.Render(left), rightBorder.Render(right))
	helpBar := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1).Render(help)

	return lipgloss.JoinVertical(lipgloss.Left, navbar, panes, helpBar)
}

func (m Model) containerDetail() string {
	node := m.tree.SelectedNode()
	if node == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	if node.Group != nil {
		out := labelStyle.Render("Group") + "\n"
		out += fmt.Sprintf("%s · %d items\n", node.Group.Name, node.Group.Count)
		if node.Group.Name == node.Current {
			out += dimStyle.Render("currently visible")
		}
		return out
	}

	c := node.Container
	out := labelStyle.Render("Container") + "\n"
	if c.ID != "" {
		out += fmt.Sprintf("id: %s\n", c.ID)
	}
	out += fmt.Sprintf("%d items · %d groups\n", c.Items, len(c.Groups))
	if len(c.Groups) == 0 {
		out += dimStyle.Render("displayed flat (one group or grouping off)")
	} else if c.Current != "" {
		out += fmt.Sprintf("visible: %s", c.Current)
	}
	return out
}

func (m Model) groupingHelp() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	return dimStyle.Render(`Custom groups match item names by prefix,
case-insensitively, before the separator
heuristic runs. The stored casing becomes
the group name.

Changes reorganize the page immediately.`)
}
