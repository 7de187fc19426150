package detect

import "time"

// Evidence categories, in the order they are checked. Any single positive
// category marks the container as needing cleanup.
const (
	CategoryPackages      = "packages"
	CategoryBinaries      = "binaries"
	CategoryLibraries     = "libraries"
	CategoryDriverDirs    = "driver_dirs"
	CategoryKernelModules = "kernel_modules"
	CategoryToolkit       = "toolkit"
)

// Report is the conflict verdict for one container. It is an existence
// check, not an exhaustive list: Evidence holds the first positive match.
type Report struct {
	ContainerID string    `json:"container_id"`
	Conflict    bool      `json:"conflict"`
	Category    string    `json:"category,omitempty"`
	Evidence    string    `json:"evidence,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}
