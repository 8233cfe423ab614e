package tui

import (
	"database/sql"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/listenordnung/internal/snapshot"
	"github.com/lotas/listenordnung/internal/storage"
)

type snapshotsLoadedMsg struct {
	snapshots []storage.SnapshotSummary
	err       error
}

type snapshotDetailMsg struct {
	snap *storage.SnapshotFull
	diff *snapshot.DiffResult
	err  error
}

type snapshotDeletedMsg struct {
	err error
}

type SnapshotsView struct {
	db        *sql.DB
	snapshots []storage.SnapshotSummary
	selected  *storage.SnapshotFull
	diff      *snapshot.DiffResult
	cursor    int
	offset    int
	width     int
	height    int
	loading   bool
	err       error
}

func NewSnapshotsView(db *sql.DB) SnapshotsView {
	return SnapshotsView{db: db}
}

// Reload refreshes the snapshot list from storage.
func (v *SnapshotsView) Reload() tea.Cmd {
	if v.db == nil {
		return nil
	}
	v.loading = true
	db := v.db
	return func() tea.Msg {
		snaps, err := storage.ListSnapshots(db)
		return snapshotsLoadedMsg{snapshots: snaps, err: err}
	}
}

func (v *SnapshotsView) loadDetail(location string, rev int) tea.Cmd {
	db := v.db
	return func() tea.Msg {
		snap, err := storage.GetSnapshot(db, location, rev)
		if err != nil {
			return snapshotDetailMsg{err: err}
		}
		// The diff against the previous revision, when one exists.
		var diff *snapshot.DiffResult
		if rev > 1 {
			diff, err = snapshot.DiffRevisions(db, location, rev-1, rev)
			if err != nil {
				diff = nil
			}
		}
		return snapshotDetailMsg{snap: snap, diff: diff}
	}
}

func (v *SnapshotsView) deleteSelected() tea.Cmd {
	if v.cursor < 0 || v.cursor >= len(v.snapshots) {
		return nil
	}
	s := v.snapshots[v.cursor]
	db := v.db
	return func() tea.Msg {
		return snapshotDeletedMsg{err: storage.DeleteSnapshot(db, s.Location, s.Rev)}
	}
}

func (v *SnapshotsView) SetSize(w, h int) {
	v.width = w
	v.height = h
}

func (v SnapshotsView) Update(msg tea.Msg) (SnapshotsView, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotsLoadedMsg:
		v.loading = false
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.snapshots = msg.snapshots
		v.err = nil
		if v.cursor >= len(v.snapshots) {
			v.cursor = len(v.snapshots) - 1
		}
		if v.cursor < 0 {
			v.cursor = 0
		}
		if len(v.snapshots) > 0 {
			s := v.snapshots[v.cursor]
			return v, v.loadDetail(s.Location, s.Rev)
		}
		v.selected = nil
		v.diff = nil
		return v, nil

	case snapshotDetailMsg:
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.selected = msg.snap
		v.diff = msg.diff
		return v, nil

	case snapshotDeletedMsg:
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		return v, v.Reload()

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if v.cursor < len(v.snapshots)-1 {
				v.cursor++
				v.adjustOffset()
				s := v.snapshots[v.cursor]
				return v, v.loadDetail(s.Location, s.Rev)
			}
		case "k", "up":
			if v.cursor > 0 {
				v.cursor--
				v.adjustOffset()
				s := v.snapshots[v.cursor]
				return v, v.loadDetail(s.Location, s.Rev)
			}
		case "x":
			return v, v.deleteSelected()
		case "r":
			return v, v.Reload()
		}
	}
	return v, nil
}

func (v *SnapshotsView) adjustOffset() {
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	visible := v.height - 2
	if visible < 1 {
		visible = 1
	}
	if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}
}

func (v SnapshotsView) ViewList() string {
	if v.db == nil {
		return "Persistence unavailable; snapshots are disabled."
	}
	if v.loading {
		return "Loading snapshots..."
	}
	if v.err != nil {
		return fmt.Sprintf("Error: %v", v.err)
	}
	if len(v.snapshots) == 0 {
		return "No snapshots yet. Press 's' in the Containers view to take one."
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	treeWidth := v.width * TreeWidthPct / 100

	var b strings.Builder
	end := v.offset + v.height
	if end > len(v.snapshots) {
		end = len(v.snapshots)
	}

	for i := v.offset; i < end; i++ {
		s := v.snapshots[i]
		ts := s.CreatedAt.Local().Format("2006-01-02 15:04")
		label := ""
		if s.Label != "" {
			label = " " + s.Label
		}
		line := fmt.Sprintf("  #%d  %s  %s  (%d items)%s", s.Rev, ts, s.Location, s.ItemCount, label)

		if i == v.cursor {
			for len(line) < treeWidth {
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

func (v SnapshotsView) ViewDetail() string {
	if v.selected == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	groupStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder

	b.WriteString(labelStyle.Render("Snapshot") + "\n")
	b.WriteString(fmt.Sprintf("Rev %d · %s · %d items\n",
		v.selected.Rev,
		v.selected.CreatedAt.Local().Format("2006-01-02 15:04"),
		v.selected.ItemCount))
	if v.selected.Label != "" {
		b.WriteString(fmt.Sprintf("Label: %s\n", v.selected.Label))
	}
	b.WriteString("\n")

	// Items grouped by group name, in stored order.
	type groupEntry struct {
		name  string
		items []storage.SnapshotItem
	}
	groupMap := make(map[string]*groupEntry)
	var groupOrder []string

	for _, item := range v.selected.Items {
		gname := item.GroupName
		if gname == "" {
			gname = "Ungrouped"
		}
		if _, ok := groupMap[gname]; !ok {
			groupMap[gname] = &groupEntry{name: gname}
			groupOrder = append(groupOrder, gname)
		}
		groupMap[gname].items = append(groupMap[gname].items, item)
	}

	for _, gname := range groupOrder {
		ge := groupMap[gname]
		b.WriteString(groupStyle.Render(fmt.Sprintf("▼ %s (%d items)", ge.name, len(ge.items))) + "\n")
		for _, item := range ge.items {
			name := item.Name
			maxLen := v.width - v.width*TreeWidthPct/100 - 9
			if maxLen > 0 && len(name) > maxLen {
				name = name[:maxLen-1] + "…"
			}
			b.WriteString(dimStyle.Render("    "+name) + "\n")
		}
	}

	if v.diff != nil {
		b.WriteString("\n" + labelStyle.Render("Against previous revision") + "\n")
		b.WriteString(dimStyle.Render(snapshot.FormatDiff(v.diff)))
	}

	return b.String()
}
