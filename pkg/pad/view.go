package pad

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const keyHints = "Ctrl+G commands • Ctrl+N new • Ctrl+S save • Ctrl+W close • Ctrl+R run block • Ctrl+←/→ tabs • Ctrl+Q quit"

// View renders the tab bar, the active editor (or the open overlay) and the
// status line.
func (m *model) View() string {
	tabs := m.buildTabBar()

	var body string
	if overlay := m.buildOverlay(); overlay != "" {
		body = lipgloss.Place(m.width, m.editorHeight(), lipgloss.Center, lipgloss.Center, overlay)
	} else if t := m.activeTab(); t != nil {
		body = t.ta.View()
	} else {
		body = lipgloss.Place(m.width, m.editorHeight(), lipgloss.Center, lipgloss.Center,
			overlayHelpStyle.Render("No buffers. Ctrl+N opens a scratch buffer."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabs, body, m.buildStatusBar())
}

func (m *model) buildTabBar() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := make([]string, 0, len(m.tabs))
	for i, t := range m.tabs {
		title := t.title()
		if t.buf.IsModified() {
			title += "*"
		}
		if t.buf.State().IsManaged() {
			title = managedMarkStyle.Render("●") + " " + title
		}
		if i == m.active {
			parts = append(parts, activeTabStyle.Render(title))
		} else {
			parts = append(parts, tabStyle.Render(title))
		}
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, "│"))
}

func (m *model) buildStatusBar() string {
	switch {
	case m.status == "":
		return statusBarStyle.Render(keyHints)
	case m.statusIsErr:
		return errorStyle.Render(firstLine(m.status))
	default:
		return statusOKStyle.Render(firstLine(m.status))
	}
}

func (m *model) buildOverlay() string {
	switch {
	case m.confirm != nil:
		var sb strings.Builder
		sb.WriteString(overlayTitleStyle.Render("Confirm"))
		sb.WriteString("\n\n")
		sb.WriteString(overlayTextStyle.Render(m.confirm.message))
		sb.WriteString("\n\n")
		sb.WriteString(overlayHelpStyle.Render("y " + m.confirm.okLabel + " • n Cancel"))
		return overlayBoxStyle.Width(overlayWidth(m.width)).Render(sb.String())

	case m.prompt != nil:
		var sb strings.Builder
		sb.WriteString(overlayTitleStyle.Render(m.prompt.title))
		sb.WriteString("\n")
		sb.WriteString(m.prompt.input.View())
		sb.WriteString("\n")
		sb.WriteString(overlayHelpStyle.Render("Enter submit • Esc cancel"))
		return overlayBoxStyle.Width(overlayWidth(m.width)).Render(sb.String())

	case m.picker != nil:
		return m.picker.Render(m.width)

	case m.answer != nil:
		var sb strings.Builder
		sb.WriteString(overlayTitleStyle.Render("LLM answer"))
		sb.WriteString("\n")
		sb.WriteString(m.answer.View())
		sb.WriteString("\n")
		sb.WriteString(overlayHelpStyle.Render("↑/↓ scroll • i insert at caret • Esc close"))
		return overlayBoxStyle.Render(sb.String())
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
