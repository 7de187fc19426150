// Package diag assembles a host-plus-container diagnosis report for the
// passthrough stack and persists it as a JSON artifact.
package diag

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"gpubridge/internal/detect"
	"gpubridge/internal/fsutil"
	"gpubridge/internal/hostgpu"
	"gpubridge/internal/logging"
	"gpubridge/internal/lxcconf"
	"gpubridge/internal/pct"
)

// Collector gathers diagnosis data. All collection is best-effort: a
// failing probe is recorded in the report rather than aborting it.
type Collector struct {
	client    pct.Client
	scanner   *hostgpu.Scanner
	resolver  *hostgpu.Resolver
	preflight *hostgpu.Preflight
	detector  *detect.Detector
	rewriter  *lxcconf.Rewriter
	libraries []string
	logger    *logging.Logger
}

// NewCollector creates a diagnosis collector.
func NewCollector(client pct.Client, scanner *hostgpu.Scanner, resolver *hostgpu.Resolver,
	preflight *hostgpu.Preflight, detector *detect.Detector, rewriter *lxcconf.Rewriter,
	libraries []string, logger *logging.Logger) *Collector {
	return &Collector{
		client:    client,
		scanner:   scanner,
		resolver:  resolver,
		preflight: preflight,
		detector:  detector,
		rewriter:  rewriter,
		libraries: libraries,
		logger:    logger,
	}
}

// Collect builds the report for the given containers.
func (c *Collector) Collect(records []pct.ContainerRecord) *Report {
	report := &Report{GeneratedAt: time.Now().UTC()}

	inv, err := c.scanner.Scan()
	report.Host.Inventory = inv
	if err != nil {
		report.Host.InventoryError = err.Error()
	}

	report.Host.Driver = c.preflight.Probe()
	report.Host.Libraries = c.resolver.Resolve(c.libraries)

	for _, record := range records {
		report.Containers = append(report.Containers, c.collectContainer(record))
	}

	return report
}

func (c *Collector) collectContainer(record pct.ContainerRecord) ContainerReport {
	cr := ContainerReport{
		ID:     record.ID,
		Name:   record.Name,
		Status: record.Status,
	}

	managed, err := c.rewriter.IsManaged(record.ID)
	if err != nil {
		c.logger.Warn("diag.managed_check_failed", "Cannot read container configuration", map[string]interface{}{
			"container": record.ID,
			"error":     err.Error(),
		})
	}
	cr.Managed = managed

	scan, err := c.detector.Scan(record.ID)
	if err != nil {
		// A stopped container cannot be scanned; record why instead.
		cr.ScanError = err.Error()
		return cr
	}
	cr.Scan = &scan

	return cr
}

// Save persists the report under the state directory and returns its path.
func (c *Collector) Save(report *Report, stateDir string) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal diagnosis report: %w", err)
	}

	if err := fsutil.EnsureStateDirectory(stateDir); err != nil {
		return "", err
	}

	path := filepath.Join(stateDir, fmt.Sprintf("diagnosis-%s.json", report.GeneratedAt.Format(fsutil.BackupTimestampFormat)))
	if err := fsutil.AtomicWriteFile(path, data, fsutil.DefaultFilePermissions, c.logger); err != nil {
		return "", fmt.Errorf("failed to write diagnosis report: %w", err)
	}

	c.logger.Info("diag.report_saved", "Diagnosis report saved", map[string]interface{}{
		"path": path,
	})
	return path, nil
}
