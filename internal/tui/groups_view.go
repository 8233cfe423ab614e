package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// GroupsView edits the custom group set and the grouping flag. The data is a
// copy from the last session update; mutations go back through the session.
type GroupsView struct {
	Names           []string
	GroupingEnabled bool
	Cursor          int
	Width           int
	Height          int

	// Input mode for adding a name.
	Adding bool
	Input  string
}

func NewGroupsView() GroupsView {
	return GroupsView{GroupingEnabled: true}
}

// SetData replaces the displayed state from a session update.
func (v *GroupsView) SetData(names []string, enabled bool) {
	v.Names = names
	v.GroupingEnabled = enabled
	if v.Cursor >= len(names) {
		v.Cursor = len(names) - 1
	}
	if v.Cursor < 0 {
		v.Cursor = 0
	}
}

func (v *GroupsView) MoveUp() {
	if v.Cursor > 0 {
		v.Cursor--
	}
}

func (v *GroupsView) MoveDown() {
	if v.Cursor < len(v.Names)-1 {
		v.Cursor++
	}
}

// Selected returns the custom group under the cursor, or "".
func (v GroupsView) Selected() string {
	if v.Cursor >= 0 && v.Cursor < len(v.Names) {
		return v.Names[v.Cursor]
	}
	return ""
}

// StartAdding enters input mode.
func (v *GroupsView) StartAdding() {
	v.Adding = true
	v.Input = ""
}

// TypeRune appends typed input.
func (v *GroupsView) TypeRune(s string) {
	v.Input += s
}

// Backspace removes the last typed rune.
func (v *GroupsView) Backspace() {
	if v.Input != "" {
		r := []rune(v.Input)
		v.Input = string(r[:len(r)-1])
	}
}

// FinishAdding leaves input mode and returns the trimmed name.
func (v *GroupsView) FinishAdding() string {
	v.Adding = false
	name := strings.TrimSpace(v.Input)
	v.Input = ""
	return name
}

// CancelAdding leaves input mode without a result.
func (v *GroupsView) CancelAdding() {
	v.Adding = false
	v.Input = ""
}

func (v GroupsView) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	onStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	var b strings.Builder

	state := onStyle.Render("on")
	if !v.GroupingEnabled {
		state = offStyle.Render("off")
	}
	b.WriteString(titleStyle.Render("Grouping: ") + state + dimStyle.Render("  (t toggles)") + "\n\n")

	b.WriteString(titleStyle.Render("Custom groups") + "\n")
	if len(v.Names) == 0 {
		b.WriteString(dimStyle.Render("  none; names fall back to prefix grouping") + "\n")
	}
	for i, name := range v.Names {
		line := "  " + name
		if i == v.Cursor && !v.Adding {
			for lipgloss.Width(line) < v.Width {
				line += " "
			}
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if v.Adding {
		b.WriteString("\n" + titleStyle.Render("New group: ") + v.Input + cursorStyle.Render(" ") + "\n")
		b.WriteString(dimStyle.Render("enter confirm · esc cancel"))
	} else {
		b.WriteString("\n" + dimStyle.Render("a add · d delete · t toggle grouping"))
	}

	return b.String()
}
