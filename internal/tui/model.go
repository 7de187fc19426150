package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"gpubridge/internal/batch"
	"gpubridge/internal/pct"
)

// Model is the interactive picker: choose an operation, then the
// containers it applies to. Execution happens outside the TUI loop, once
// the program returns with a confirmed selection.
type Model struct {
	records []pct.ContainerRecord

	currentScreen Screen
	menuSelection int
	listSelection int
	chosen        map[int]bool
	op            batch.Operation
	lastError     string
	quitting      bool
	confirmed     bool
}

// NewModel creates a picker over the given container records.
func NewModel(records []pct.ContainerRecord) Model {
	return Model{
		records:       records,
		currentScreen: ScreenMenu,
		chosen:        make(map[int]bool),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		if m.currentScreen == ScreenContainers {
			m.currentScreen = ScreenMenu
			m.lastError = ""
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	}

	switch m.currentScreen {
	case ScreenMenu:
		return m.updateMenu(keyMsg)
	case ScreenContainers:
		return m.updateContainers(keyMsg)
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := DefaultMenuItems()

	switch msg.String() {
	case "up", "k":
		if m.menuSelection > 0 {
			m.menuSelection--
		}
	case "down", "j":
		if m.menuSelection < len(items)-1 {
			m.menuSelection++
		}
	case "enter", " ":
		m.op = items[m.menuSelection].Op
		m.currentScreen = ScreenContainers
		m.lastError = ""
	default:
		for i, item := range items {
			if msg.String() == item.Key {
				m.menuSelection = i
				m.op = item.Op
				m.currentScreen = ScreenContainers
				m.lastError = ""
			}
		}
	}
	return m, nil
}

func (m Model) updateContainers(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.listSelection > 0 {
			m.listSelection--
		}
	case "down", "j":
		if m.listSelection < len(m.records)-1 {
			m.listSelection++
		}
	case " ":
		if len(m.records) > 0 {
			m.chosen[m.listSelection] = !m.chosen[m.listSelection]
		}
	case "a":
		for i := range m.records {
			m.chosen[i] = true
		}
	case "enter":
		if len(m.selectedIDs()) == 0 {
			m.lastError = "Select at least one container (space toggles, 'a' selects all)"
			return m, nil
		}
		m.confirmed = true
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) selectedIDs() []string {
	var ids []string
	for i, record := range m.records {
		if m.chosen[i] {
			ids = append(ids, record.ID)
		}
	}
	return ids
}

// Selection returns the confirmed choice, if any.
func (m Model) Selection() Selection {
	return Selection{
		Op:           m.op,
		ContainerIDs: m.selectedIDs(),
		Confirmed:    m.confirmed,
	}
}
