package lxcconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gpubridge/internal/errdefs"
	"gpubridge/internal/fsutil"
	"gpubridge/internal/hostgpu"
	"gpubridge/internal/logging"
	"gpubridge/internal/pct"
)

// Rewriter applies idempotent passthrough patches to container
// configuration documents. Every mutation is preceded by a timestamped
// backup and persisted atomically via write-then-rename.
type Rewriter struct {
	confDir      string
	backupDir    string
	bridgeBinary string
	logger       *logging.Logger
}

// NewRewriter creates a config rewriter for documents under confDir.
func NewRewriter(confDir, backupDir, bridgeBinary string, logger *logging.Logger) *Rewriter {
	return &Rewriter{
		confDir:      confDir,
		backupDir:    backupDir,
		bridgeBinary: bridgeBinary,
		logger:       logger,
	}
}

// Apply rewrites a container's configuration document: backup, strip all
// previously managed lines, append a freshly computed managed block,
// persist. Repeated invocations with the same inventory and mappings
// produce a byte-identical managed block and never accumulate duplicates.
func (r *Rewriter) Apply(id string, inv hostgpu.Inventory, mappings []hostgpu.Mapping) error {
	if inv.Empty() {
		return fmt.Errorf("%w: refusing to configure container %s with empty device inventory", errdefs.ErrPrecondition, id)
	}

	doc, err := r.load(id)
	if err != nil {
		return err
	}

	if err := r.backup(id); err != nil {
		return err
	}

	removed := doc.StripManaged()
	block := BuildManagedBlock(inv, mappings, r.bridgeBinary, doc.NextDeviceIndex())
	doc.Append(block)

	if err := r.persist(id, doc); err != nil {
		return err
	}

	r.logger.Info("lxcconf.apply.done", "Managed passthrough block applied", map[string]interface{}{
		"container":      id,
		"stripped_lines": removed,
		"block_lines":    len(block),
	})

	return nil
}

// Strip removes the managed block without appending a new one, used when
// passthrough is being fully removed. Backup and atomic-persist semantics
// match Apply.
func (r *Rewriter) Strip(id string) error {
	doc, err := r.load(id)
	if err != nil {
		return err
	}

	if err := r.backup(id); err != nil {
		return err
	}

	removed := doc.StripManaged()
	if err := r.persist(id, doc); err != nil {
		return err
	}

	r.logger.Info("lxcconf.strip.done", "Managed passthrough block removed", map[string]interface{}{
		"container":      id,
		"stripped_lines": removed,
	})

	return nil
}

// IsManaged reports whether a container's document carries a managed block.
func (r *Rewriter) IsManaged(id string) (bool, error) {
	doc, err := r.load(id)
	if err != nil {
		return false, err
	}
	return doc.HasMarker() || len(doc.ManagedLines()) > 0, nil
}

func (r *Rewriter) load(id string) (*Document, error) {
	path := pct.ConfPath(r.confDir, id)
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- conf dir is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errdefs.ErrConfigWrite, path, err)
	}
	return Parse(string(data)), nil
}

func (r *Rewriter) backup(id string) error {
	path := pct.ConfPath(r.confDir, id)
	backupPath, err := fsutil.BackupFile(path, r.backupDir, id+".conf", r.logger)
	if err != nil {
		return fmt.Errorf("%w: backup %s: %v", errdefs.ErrConfigWrite, path, err)
	}

	r.logger.Info("lxcconf.backup.written", "Configuration backup written", map[string]interface{}{
		"container": id,
		"backup":    backupPath,
	})

	return nil
}

func (r *Rewriter) persist(id string, doc *Document) error {
	path := pct.ConfPath(r.confDir, id)
	if err := fsutil.AtomicWriteFile(path, []byte(doc.Render()), 0o644, r.logger); err != nil {
		return fmt.Errorf("%w: persist %s: %v", errdefs.ErrConfigWrite, path, err)
	}
	return nil
}

// BuildManagedBlock computes the managed block for the given inventory
// and library mappings. Line order is fixed: marker, cgroup rules, one
// numbered device directive per inventory node, the bridge executable
// bind mount, then one bind mount per resolved library.
func BuildManagedBlock(inv hostgpu.Inventory, mappings []hostgpu.Mapping, bridgeBinary string, startIndex int) []string {
	lines := []string{MarkerComment}

	for _, major := range inv.Majors {
		lines = append(lines, fmt.Sprintf("lxc.cgroup2.devices.allow: c %d:* rwm", major))
	}

	index := startIndex
	for _, device := range inv.Devices {
		lines = append(lines, fmt.Sprintf("dev%d: %s,mode=0666", index, device.Path))
		index++
	}

	lines = append(lines, bindMountLine(bridgeBinary, bridgeBinary, "file"))

	for _, mapping := range mappings {
		lines = append(lines, bindMountLine(mapping.HostPath, mapping.ContainerPath, "file"))
	}

	return lines
}

// bindMountLine renders one lxc.mount.entry directive. The container-side
// path is relative to the container rootfs, per LXC convention.
func bindMountLine(hostPath, containerPath, kind string) string {
	target := strings.TrimPrefix(containerPath, "/")
	return fmt.Sprintf("lxc.mount.entry: %s %s none bind,optional,create=%s", hostPath, target, kind)
}
