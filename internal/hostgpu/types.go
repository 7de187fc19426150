package hostgpu

// DeviceNode is one GPU device node present on the host.
type DeviceNode struct {
	Path string `json:"path"`
	// Optional marks capability sub-devices that are bound only when present.
	Optional bool `json:"optional"`
}

// Inventory is the set of GPU device nodes found on the host, plus the
// character-device major numbers the cgroup rules must cover.
type Inventory struct {
	Devices []DeviceNode `json:"devices"`
	Majors  []int        `json:"majors"`
}

// Empty reports whether no device nodes were found.
func (inv Inventory) Empty() bool {
	return len(inv.Devices) == 0
}

// PrimaryDevice is the node whose in-container visibility gates verification.
func (inv Inventory) PrimaryDevice() string {
	for _, d := range inv.Devices {
		if !d.Optional {
			return d.Path
		}
	}
	return ""
}

// Mapping binds one required runtime library to its in-container path.
// HostPath is always the real backing file, never a symbolic link.
type Mapping struct {
	Name          string `json:"name"`
	HostPath      string `json:"host_path"`
	ContainerPath string `json:"container_path"`
}

// DriverReport summarizes the host driver preflight probe.
type DriverReport struct {
	NVMLOk        bool   `json:"nvml_ok"`
	DriverVersion string `json:"driver_version,omitempty"`
	CUDAVersion   int    `json:"cuda_version,omitempty"`
	DeviceCount   int    `json:"device_count"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
