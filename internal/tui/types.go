package tui

import "gpubridge/internal/batch"

// Screen represents different TUI screens
type Screen string

const (
	// ScreenMenu is the operation menu screen
	ScreenMenu Screen = "menu"
	// ScreenContainers is the container selection screen
	ScreenContainers Screen = "containers"
)

// MenuItem represents one selectable operation
type MenuItem struct {
	Key         string // Number key
	Label       string // Display label
	Description string // Short description
	Op          batch.Operation
}

// DefaultMenuItems returns the operation menu items
func DefaultMenuItems() []MenuItem {
	return []MenuItem{
		{Key: "1", Label: "Configure", Description: "Clean, configure and verify GPU passthrough", Op: batch.OpConfigure},
		{Key: "2", Label: "Clean", Description: "Remove conflicting driver components", Op: batch.OpClean},
		{Key: "3", Label: "Verify", Description: "Restart and probe the GPU inside containers", Op: batch.OpVerify},
		{Key: "4", Label: "Diagnose", Description: "Report passthrough state without changes", Op: batch.OpDiagnose},
		{Key: "5", Label: "Remove", Description: "Strip the managed passthrough block", Op: batch.OpRemove},
	}
}

// Selection is the operator's choice once the TUI finishes.
type Selection struct {
	Op           batch.Operation
	ContainerIDs []string
	Confirmed    bool
}
