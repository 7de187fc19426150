package diag

import (
	"time"

	"gpubridge/internal/detect"
	"gpubridge/internal/hostgpu"
)

// HostReport describes the host side of a diagnosis.
type HostReport struct {
	Inventory      hostgpu.Inventory    `json:"inventory"`
	InventoryError string               `json:"inventory_error,omitempty"`
	Driver         hostgpu.DriverReport `json:"driver"`
	Libraries      []hostgpu.Mapping    `json:"libraries"`
}

// ContainerReport describes one container's passthrough state.
type ContainerReport struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Status    string         `json:"status"`
	Managed   bool           `json:"managed"`
	Scan      *detect.Report `json:"scan,omitempty"`
	ScanError string         `json:"scan_error,omitempty"`
}

// Report is the complete diagnosis artifact.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Host        HostReport        `json:"host"`
	Containers  []ContainerReport `json:"containers"`
}
