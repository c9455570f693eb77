package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateAddHabit:
		content = m.form.View()
	case StateConfirmDelete:
		content = m.viewConfirmDelete()
	default:
		content = m.viewList()
	}

	return docStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		content,
		m.viewStatus(),
		m.help.View(m.keys),
	))
}

func (m Model) viewHeader() string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("Today's habits"),
		ownerStyle.Render(m.owner),
	)
}

func (m Model) viewList() string {
	if len(m.list.Items()) == 0 {
		return "\nNo habits yet. Press 'a' to add one.\n"
	}
	return m.list.View()
}

func (m Model) viewStatus() string {
	if m.err != nil {
		return warningStyle.Render("⚠ " + errorText(m.err))
	}
	if m.status != "" {
		return statusStyle.Render(m.status)
	}
	return ""
}

func (m Model) viewConfirmDelete() string {
	name := ""
	if m.habitToDelete != nil {
		name = m.habitToDelete.Name
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		dangerStyle.Render(fmt.Sprintf("Delete %q and its streak?", name)),
		"",
		"[y] Yes",
		"[n] No",
		"",
	)
}
