package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gpubridge/internal/pct"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting && !m.confirmed {
		return ""
	}

	switch m.currentScreen {
	case ScreenContainers:
		return m.renderContainers()
	default:
		return m.renderMenu()
	}
}

// renderMenu renders the operation menu screen
func (m Model) renderMenu() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).MarginBottom(1)
	menuItemStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	menuItemSelectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00d7ff")).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).PaddingLeft(2)
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).MarginTop(1)

	b.WriteString(titleStyle.Render("gpubridge - GPU Passthrough"))
	b.WriteString("\n\n")

	for i, item := range DefaultMenuItems() {
		prefix := fmt.Sprintf("[%s] ", item.Key)

		var itemText string
		if i == m.menuSelection {
			itemText = menuItemSelectedStyle.Render(prefix + item.Label)
		} else {
			itemText = menuItemStyle.Render(prefix + item.Label)
		}

		b.WriteString(itemText)
		b.WriteString("\n")
		b.WriteString(descStyle.Render(item.Description))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("Navigate: ↑/↓ or numbers | Select: Enter/Space | Quit: q"))
	b.WriteString("\n")

	return b.String()
}

// renderContainers renders the container selection screen
func (m Model) renderContainers() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).MarginBottom(1)
	itemStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	itemSelectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00d7ff")).Bold(true)
	runningStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#87d787"))
	stoppedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).MarginTop(1)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true).MarginTop(1)

	b.WriteString(titleStyle.Render(fmt.Sprintf("Select containers - %s", m.op)))
	b.WriteString("\n\n")

	if len(m.records) == 0 {
		b.WriteString(itemStyle.Render("No containers found."))
		b.WriteString("\n")
	}

	for i, record := range m.records {
		check := "[ ]"
		if m.chosen[i] {
			check = "[x]"
		}

		statusStyle := stoppedStyle
		if record.Status == pct.StatusRunning {
			statusStyle = runningStyle
		}

		line := fmt.Sprintf("%s %s  %s", check, record.ID, record.Name)
		if i == m.listSelection {
			b.WriteString(itemSelectedStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("  ")
		b.WriteString(statusStyle.Render(record.Status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("Toggle: Space | All: a | Run: Enter | Back: Esc | Quit: q"))
	b.WriteString("\n")

	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("⚠ " + m.lastError))
		b.WriteString("\n")
	}

	return b.String()
}
