// Package cleanup removes conflicting driver and toolkit artifacts from a
// container before passthrough is configured. Every step is best-effort:
// failures are captured and the pass continues, since a partially dirty
// container is still improved by the remaining steps.
package cleanup

import (
	"fmt"
	"strings"
	"time"

	"gpubridge/internal/detect"
	"gpubridge/internal/logging"
	"gpubridge/internal/pct"
)

// Engine drives the cleanup pass. The component detector serves as its
// precondition oracle (a clean container is a no-op success) and supplies
// the residual post-check.
type Engine struct {
	client   pct.Client
	detector *detect.Detector
	logger   *logging.Logger
}

// NewEngine creates a cleanup engine.
func NewEngine(client pct.Client, detector *detect.Detector, logger *logging.Logger) *Engine {
	return &Engine{client: client, detector: detector, logger: logger}
}

type step struct {
	name string
	run  func(id string, log *Log)
}

// Clean runs the automatic cleanup pass on one container and returns its
// log. The pass itself always succeeds once started; residual files are a
// warning, not a failure, since leftover empty directories are harmless.
func (e *Engine) Clean(id string) (*Log, error) {
	log := &Log{
		Timestamp:    time.Now().UTC(),
		ContainerID:  id,
		RemovedItems: []string{},
		Errors:       []string{},
	}

	// Cleanup needs a live filesystem for the scan and the purge steps.
	if err := e.ensureRunning(id); err != nil {
		return log, err
	}

	report, err := e.detector.Scan(id)
	if err != nil {
		return log, err
	}
	if !report.Conflict {
		e.logger.Info("cleanup.skipped", "Container is clean, nothing to remove", map[string]interface{}{
			"container": id,
		})
		log.Skipped = true
		e.stopQuiet(id, log)
		return log, nil
	}

	e.logger.Info("cleanup.started", "Starting cleanup pass", map[string]interface{}{
		"container": id,
		"category":  report.Category,
		"evidence":  report.Evidence,
	})

	for _, s := range e.steps() {
		e.logger.Info("cleanup.step", "Running cleanup step", map[string]interface{}{
			"container": id,
			"step":      s.name,
		})
		s.run(id, log)
	}

	// Leave the container stopped, as the configure stage expects.
	e.stopQuiet(id, log)

	e.logger.Info("cleanup.completed", "Cleanup pass completed", map[string]interface{}{
		"container":     id,
		"removed_items": len(log.RemovedItems),
		"errors":        len(log.Errors),
		"residual":      log.Residual,
	})

	return log, nil
}

func (e *Engine) steps() []step {
	return []step{
		{"restart", e.restart},
		{"stop_services", e.stopServices},
		{"purge_packages", e.purgePackages},
		{"remove_repos", e.removeRepos},
		{"remove_vendor_paths", e.removeVendorPaths},
		{"remove_bridge_binary", e.removeBridgeBinary},
		{"autoremove", e.autoremove},
		{"residual_check", e.residualCheck},
	}
}

// ensureRunning starts the container when it is stopped.
func (e *Engine) ensureRunning(id string) error {
	status, err := e.client.Status(id)
	if err != nil {
		return fmt.Errorf("cannot query container %s: %w", id, err)
	}
	if status == pct.StatusRunning {
		return nil
	}
	return e.client.Start(id)
}

// restart gives the purge steps a clean slate: stop if running, start again.
func (e *Engine) restart(id string, log *Log) {
	if status, err := e.client.Status(id); err == nil && status == pct.StatusRunning {
		if err := e.client.Stop(id); err != nil {
			e.record(log, "restart", err)
		}
	}
	if err := e.client.Start(id); err != nil {
		e.record(log, "restart", err)
	}
}

func (e *Engine) stopServices(id string, log *Log) {
	script := `systemctl stop nvidia-persistenced 2>/dev/null; pkill -9 nvidia 2>/dev/null; true`
	if _, err := e.client.Exec(id, "sh", "-c", script); err != nil {
		e.record(log, "stop_services", err)
		return
	}
	log.RemovedItems = append(log.RemovedItems, "service:nvidia-persistenced")
}

func (e *Engine) purgePackages(id string, log *Log) {
	// dpkg-query exits non-zero when any single pattern matches no
	// package, yet still prints the packages the other patterns did
	// match. The printed names are the signal; the exit status is not.
	out, _ := e.client.Exec(id, "sh", "-c",
		`dpkg-query -W -f='${Package}\n' 'nvidia*' 'cuda*' 'libnvidia*' 2>/dev/null`)

	packages := strings.Fields(out)
	if len(packages) == 0 {
		e.logger.Debug("cleanup.packages.none", "No matching packages enumerated", map[string]interface{}{
			"container": id,
		})
		return
	}

	args := append([]string{"apt-get", "-y", "purge"}, packages...)
	if _, err := e.client.Exec(id, args...); err != nil {
		e.record(log, "purge_packages", err)
		return
	}
	for _, pkg := range packages {
		log.RemovedItems = append(log.RemovedItems, "package:"+pkg)
	}
}

func (e *Engine) removeRepos(id string, log *Log) {
	script := `rm -f /etc/apt/sources.list.d/cuda*.list /etc/apt/sources.list.d/*nvidia*.list`
	if _, err := e.client.Exec(id, "sh", "-c", script); err != nil {
		e.record(log, "remove_repos", err)
		return
	}
	log.RemovedItems = append(log.RemovedItems, "repos:vendor-sources")
}

func (e *Engine) removeVendorPaths(id string, log *Log) {
	// The bridge library is excluded: it is bind-mounted back in anyway and
	// removing a mount target fails noisily.
	script := `find /usr/lib /usr/lib64 -name 'libnvidia-*' ! -name 'libnvidia-ml.so*' -exec rm -rf {} + 2>/dev/null; ` +
		`rm -rf /usr/lib/nvidia /etc/nvidia /var/lib/dkms/nvidia /usr/local/cuda*; true`
	if _, err := e.client.Exec(id, "sh", "-c", script); err != nil {
		e.record(log, "remove_vendor_paths", err)
		return
	}
	log.RemovedItems = append(log.RemovedItems, "paths:vendor-directories")
}

func (e *Engine) removeBridgeBinary(id string, log *Log) {
	if _, err := e.client.Exec(id, "rm", "-f", "/usr/bin/nvidia-smi"); err != nil {
		e.record(log, "remove_bridge_binary", err)
		return
	}
	log.RemovedItems = append(log.RemovedItems, "binary:/usr/bin/nvidia-smi")
}

func (e *Engine) autoremove(id string, log *Log) {
	if _, err := e.client.Exec(id, "apt-get", "-y", "autoremove"); err != nil {
		e.record(log, "autoremove", err)
	}
}

func (e *Engine) residualCheck(id string, log *Log) {
	count, err := e.detector.ResidualCount(id)
	if err != nil {
		e.record(log, "residual_check", err)
		return
	}
	log.Residual = count
	if count > 0 {
		e.logger.Warn("cleanup.residual", "Vendor files remain after cleanup pass", map[string]interface{}{
			"container": id,
			"count":     count,
		})
	}
}

func (e *Engine) stopQuiet(id string, log *Log) {
	if status, err := e.client.Status(id); err == nil && status != pct.StatusRunning {
		return
	}
	if err := e.client.Stop(id); err != nil {
		e.record(log, "final_stop", err)
	}
}

func (e *Engine) record(log *Log, stepName string, err error) {
	msg := fmt.Sprintf("%s: %v", stepName, err)
	log.Errors = append(log.Errors, msg)
	e.logger.Warn("cleanup.step_error", "Cleanup step failed, continuing", map[string]interface{}{
		"container": log.ContainerID,
		"step":      stepName,
		"error":     err.Error(),
	})
}
