// Package detect inspects a container for driver and toolkit artifacts
// that would shadow or conflict with bind-mounted host libraries.
package detect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gpubridge/internal/errdefs"
	"gpubridge/internal/logging"
	"gpubridge/internal/pct"
)

// Detector evaluates the six evidence categories inside a running
// container. A dirty verdict is returned at the first positive category;
// a clean verdict requires every category to check negative.
type Detector struct {
	client pct.Client
	logger *logging.Logger
}

// NewDetector creates a component detector.
func NewDetector(client pct.Client, logger *logging.Logger) *Detector {
	return &Detector{client: client, logger: logger}
}

type category struct {
	name   string
	script string
}

// Each script prints the first matching artifact and nothing when the
// category is negative. The bridge binary (nvidia-smi) and the bridge
// library (libnvidia-ml) are intentionally bound in, so both searches
// exclude them.
var categories = []category{
	{
		name:   CategoryPackages,
		script: `dpkg-query -W -f='${Package}\n' 'nvidia*' 'cuda*' 'libnvidia*' 2>/dev/null | head -n 1`,
	},
	{
		name:   CategoryBinaries,
		script: `find /usr/bin /usr/local/bin -maxdepth 1 -name 'nvidia-*' ! -name 'nvidia-smi' -print -quit 2>/dev/null`,
	},
	{
		name:   CategoryLibraries,
		script: `find /usr/lib /usr/lib64 /usr/local/lib \( -name 'libnvidia-*.so.*' -o -name 'libcuda.so*' \) ! -name 'libnvidia-ml.so*' -print -quit 2>/dev/null`,
	},
	{
		name:   CategoryDriverDirs,
		script: `for p in /usr/lib/nvidia /var/lib/dkms/nvidia /etc/nvidia; do [ -e "$p" ] && { echo "$p"; break; }; done`,
	},
	{
		name:   CategoryKernelModules,
		script: `find /lib/modules -name 'nvidia*.ko*' -print -quit 2>/dev/null`,
	},
	{
		name:   CategoryToolkit,
		script: `{ [ -e /usr/local/cuda ] && echo /usr/local/cuda; } || command -v nvcc`,
	},
}

// Scan returns the conflict verdict for one container. The container must
// be running: the checks need its live filesystem and package database.
func (d *Detector) Scan(id string) (Report, error) {
	report := Report{ContainerID: id, CheckedAt: time.Now().UTC()}

	status, err := d.client.Status(id)
	if err != nil {
		return report, fmt.Errorf("%w: cannot query container %s: %v", errdefs.ErrPrecondition, id, err)
	}
	if status != pct.StatusRunning {
		return report, fmt.Errorf("%w: container %s is %s, scan requires it running", errdefs.ErrPrecondition, id, status)
	}

	for _, cat := range categories {
		evidence := d.check(id, cat)
		if evidence == "" {
			continue
		}

		report.Conflict = true
		report.Category = cat.name
		report.Evidence = evidence

		d.logger.Info("detect.conflict", "Conflicting component found", map[string]interface{}{
			"container": id,
			"category":  cat.name,
			"evidence":  evidence,
		})
		return report, nil
	}

	d.logger.Info("detect.clean", "No conflicting components found", map[string]interface{}{
		"container": id,
	})
	return report, nil
}

// check runs one category script. A command failure inside the container
// counts as a negative: detection always terminates with a definite verdict.
func (d *Detector) check(id string, cat category) string {
	out, err := d.client.Exec(id, "sh", "-c", cat.script)
	if err != nil {
		d.logger.Debug("detect.check_error", "Category check command failed", map[string]interface{}{
			"container": id,
			"category":  cat.name,
			"error":     err.Error(),
		})
		return ""
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return ""
	}
	return lines[0]
}

// residualScript counts leftover vendor-named files under the standard
// installation prefixes. Used by the cleanup engine as its post-pass check.
const residualScript = `find /usr/bin /usr/local/bin /usr/lib /usr/lib64 /usr/local /var/lib/dkms ` +
	`\( -name 'nvidia*' -o -name 'libnvidia*' -o -name 'libcuda*' -o -name 'cuda*' \) ` +
	`! -name 'nvidia-smi' ! -name 'libnvidia-ml.so*' 2>/dev/null | wc -l`

// ResidualCount re-runs the raw file search and returns how many
// vendor-named files remain.
func (d *Detector) ResidualCount(id string) (int, error) {
	out, err := d.client.Exec(id, "sh", "-c", residualScript)
	if err != nil {
		return 0, fmt.Errorf("residual file count failed for container %s: %w", id, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unexpected residual count output %q: %w", strings.TrimSpace(out), err)
	}
	return count, nil
}
