package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/tuner/internal/tui/styles"
)

const footerHelp = "enter open · h back · / search · r refresh · q quit"

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	crumb := truncate(m.ColumnStack.Breadcrumb(), m.Width)
	header := styles.AccentStyle.Render(crumb)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.renderColumns(),
		m.renderFooter(),
	)
}

func (m Model) renderColumns() string {
	l := m.calculateColumnLayout(m.Width)
	bodyHeight := max(m.Height-ChromeHeight-2, 1)

	var panes []string
	if parent := m.ColumnStack.Parent(); parent != nil {
		panes = append(panes, renderColumn(parent, l.parentWidth, bodyHeight, false))
	}
	if top := m.ColumnStack.Top(); top != nil {
		panes = append(panes, renderColumn(top, l.activeWidth, bodyHeight, true))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panes...)
}

func renderColumn(col *Column, width, height int, focused bool) string {
	border := styles.InactiveBorder
	if focused {
		border = styles.ActiveBorder
	}

	var body string
	switch {
	case col.Loading:
		body = styles.DimStyle.Render("loading...")
	case col.Len() == 0:
		body = styles.DimStyle.Render("empty")
	default:
		body = col.View()
	}

	return border.
		Width(max(width-2, 1)).
		Height(height).
		Render(body)
}

func (m Model) renderFooter() string {
	if m.State == StateSearching {
		return styles.SearchPromptStyle.Render("search: ") + m.SearchInput.View()
	}

	var status string
	switch {
	case m.StatusIsErr:
		status = styles.ErrorStyle.Render(m.StatusMsg)
	case m.StatusMsg != "":
		status = styles.SuccessStyle.Render(m.StatusMsg)
	}

	parts := []string{footerHelp}
	if m.Notifications > 0 {
		parts = append(parts, fmt.Sprintf("%d updates", m.Notifications))
	}
	if status != "" {
		parts = append(parts, status)
	}
	return styles.FooterStyle.Width(m.Width).Render(strings.Join(parts, "  "))
}
