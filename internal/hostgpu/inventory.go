package hostgpu

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gpubridge/internal/errdefs"
	"gpubridge/internal/logging"
)

// Well-known defaults used when /proc/devices cannot be read. 195 is the
// fixed nvidia major; nvidia-uvm and nvidia-caps land in the dynamic range.
const (
	majorNvidia     = 195
	majorUvmDefault = 508
	majorCapDefault = 511
)

const capsSubdir = "nvidia-caps"

// fixedNodes are the well-known device nodes checked relative to the
// device directory, in the order they appear in the managed block.
var fixedNodes = []string{
	"nvidia0",
	"nvidiactl",
	"nvidia-modeset",
	"nvidia-uvm",
	"nvidia-uvm-tools",
}

// Scanner enumerates GPU device nodes on the host.
type Scanner struct {
	deviceDir   string
	procDevices string
	logger      *logging.Logger
}

// NewScanner creates a host device scanner rooted at deviceDir.
func NewScanner(deviceDir string, logger *logging.Logger) *Scanner {
	return &Scanner{
		deviceDir:   deviceDir,
		procDevices: "/proc/devices",
		logger:      logger,
	}
}

// Scan returns the subset of well-known device nodes that exist, plus any
// capability sub-devices. An empty inventory is a precondition failure:
// no configuration may proceed without at least one device node.
func (s *Scanner) Scan() (Inventory, error) {
	inv := Inventory{}

	for _, name := range fixedNodes {
		path := filepath.Join(s.deviceDir, name)
		if _, err := os.Stat(path); err != nil {
			s.logger.Debug("hostgpu.scan.missing", "Device node not present", map[string]interface{}{
				"path": path,
			})
			continue
		}
		inv.Devices = append(inv.Devices, DeviceNode{Path: path})
	}

	capsDir := filepath.Join(s.deviceDir, capsSubdir)
	if entries, err := os.ReadDir(capsDir); err == nil {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			inv.Devices = append(inv.Devices, DeviceNode{
				Path:     filepath.Join(capsDir, name),
				Optional: true,
			})
		}
	}

	if inv.Empty() {
		s.logger.Error("hostgpu.scan.empty", "No GPU device nodes found on host", map[string]interface{}{
			"device_dir": s.deviceDir,
		})
		return inv, fmt.Errorf("%w: no GPU device nodes under %s", errdefs.ErrPrecondition, s.deviceDir)
	}

	inv.Majors = s.majors(inv)

	s.logger.Info("hostgpu.scan.done", "Host device inventory collected", map[string]interface{}{
		"devices": len(inv.Devices),
		"majors":  inv.Majors,
	})

	return inv, nil
}

// majors determines the character-device majors the cgroup rules must
// cover: always the fixed nvidia major, plus the dynamic majors of
// nvidia-uvm and nvidia-caps when those nodes are present.
func (s *Scanner) majors(inv Inventory) []int {
	majors := []int{majorNvidia}

	hasUvm := false
	hasCaps := false
	for _, d := range inv.Devices {
		switch {
		case strings.HasSuffix(d.Path, "nvidia-uvm"):
			hasUvm = true
		case d.Optional:
			hasCaps = true
		}
	}

	known := map[string]int{}
	if data, err := os.ReadFile(s.procDevices); err == nil {
		known = parseCharMajors(string(data))
	} else {
		s.logger.Warn("hostgpu.majors.proc_unavailable", "Cannot read /proc/devices, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if hasUvm {
		majors = append(majors, majorFor(known, "nvidia-uvm", majorUvmDefault))
	}
	if hasCaps {
		majors = append(majors, majorFor(known, "nvidia-caps", majorCapDefault))
	}

	return majors
}

func majorFor(known map[string]int, name string, fallback int) int {
	if major, ok := known[name]; ok {
		return major
	}
	return fallback
}

// parseCharMajors extracts the character-device section of /proc/devices
// into a name-to-major map.
func parseCharMajors(data string) map[string]int {
	majors := make(map[string]int)

	inChar := false
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "Character devices:":
			inChar = true
			continue
		case line == "Block devices:":
			inChar = false
			continue
		case line == "" || !inChar:
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		major, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		majors[fields[1]] = major
	}

	return majors
}
