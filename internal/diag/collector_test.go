package diag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gpubridge/internal/detect"
	"gpubridge/internal/hostgpu"
	"gpubridge/internal/logging"
	"gpubridge/internal/lxcconf"
	"gpubridge/internal/pct"
)

// fakeClient reports a per-container status and answers every in-container
// command with empty output, which the detector reads as "no conflict".
type fakeClient struct {
	status map[string]string
}

func (f *fakeClient) List() ([]pct.ContainerRecord, error) { return nil, nil }

func (f *fakeClient) Status(id string) (string, error) {
	return f.status[id], nil
}

func (f *fakeClient) Start(id string) error { return nil }
func (f *fakeClient) Stop(id string) error  { return nil }

func (f *fakeClient) Exec(id string, command ...string) (string, error) {
	return "", nil
}

func (f *fakeClient) ExecTimeout(id string, timeout time.Duration, command ...string) (string, error) {
	return "", nil
}

func newCollectorFixture(t *testing.T, client pct.Client) *Collector {
	t.Helper()
	logger := logging.NewLogger(logging.LevelError)

	deviceDir := t.TempDir()
	for _, name := range []string{"nvidia0", "nvidiactl", "nvidia-uvm"} {
		if err := os.WriteFile(filepath.Join(deviceDir, name), nil, 0o644); err != nil {
			t.Fatalf("failed to create device node stand-in: %v", err)
		}
	}

	libDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(libDir, "libnvidia-ml.so.575.57.08"), nil, 0o644); err != nil {
		t.Fatalf("failed to create library: %v", err)
	}
	if err := os.Symlink(filepath.Join(libDir, "libnvidia-ml.so.575.57.08"), filepath.Join(libDir, "libnvidia-ml.so.1")); err != nil {
		t.Fatalf("failed to create library symlink: %v", err)
	}

	confDir := t.TempDir()
	if err := os.WriteFile(pct.ConfPath(confDir, "101"), []byte("arch: amd64\n"), 0o644); err != nil {
		t.Fatalf("failed to write container conf: %v", err)
	}
	managed := "arch: amd64\n" + lxcconf.MarkerComment + "\nlxc.cgroup2.devices.allow: c 195:* rwm\n"
	if err := os.WriteFile(pct.ConfPath(confDir, "102"), []byte(managed), 0o644); err != nil {
		t.Fatalf("failed to write container conf: %v", err)
	}

	scanner := hostgpu.NewScanner(deviceDir, logger)
	resolver := hostgpu.NewResolver(libDir, logger)
	preflight := hostgpu.NewPreflight(logger)
	detector := detect.NewDetector(client, logger)
	rewriter := lxcconf.NewRewriter(confDir, filepath.Join(confDir, "backups"), "/usr/bin/nvidia-smi", logger)

	return NewCollector(client, scanner, resolver, preflight, detector, rewriter,
		[]string{"libnvidia-ml.so.1"}, logger)
}

func TestCollect(t *testing.T) {
	client := &fakeClient{status: map[string]string{
		"101": pct.StatusRunning,
		"102": pct.StatusStopped,
	}}
	collector := newCollectorFixture(t, client)

	records := []pct.ContainerRecord{
		{ID: "101", Name: "gpu-ct", Status: pct.StatusRunning},
		{ID: "102", Name: "idle-ct", Status: pct.StatusStopped},
	}

	report := collector.Collect(records)

	if report.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}
	if report.Host.InventoryError != "" {
		t.Errorf("unexpected inventory error: %s", report.Host.InventoryError)
	}
	if len(report.Host.Inventory.Devices) == 0 {
		t.Error("host inventory should list device nodes")
	}
	if len(report.Host.Libraries) != 1 {
		t.Fatalf("expected 1 resolved library, got %d", len(report.Host.Libraries))
	}

	if len(report.Containers) != 2 {
		t.Fatalf("expected 2 container reports, got %d", len(report.Containers))
	}

	running := report.Containers[0]
	if running.ID != "101" || running.Managed {
		t.Errorf("container 101 should be unmanaged, got %+v", running)
	}
	if running.Scan == nil {
		t.Fatal("running container should carry a scan result")
	}
	if running.Scan.Conflict {
		t.Error("clean container should not report a conflict")
	}

	stopped := report.Containers[1]
	if !stopped.Managed {
		t.Error("container 102 carries the managed marker and should report managed")
	}
	if stopped.Scan != nil {
		t.Error("stopped container cannot be scanned")
	}
	if stopped.ScanError == "" {
		t.Error("stopped container should record why the scan was skipped")
	}
}

func TestCollect_EmptyDeviceDir(t *testing.T) {
	client := &fakeClient{status: map[string]string{}}
	collector := newCollectorFixture(t, client)
	collector.scanner = hostgpu.NewScanner(t.TempDir(), logging.NewLogger(logging.LevelError))

	report := collector.Collect(nil)

	if report.Host.InventoryError == "" {
		t.Error("empty device directory should be recorded as an inventory error")
	}
}

func TestSave(t *testing.T) {
	client := &fakeClient{status: map[string]string{"101": pct.StatusRunning}}
	collector := newCollectorFixture(t, client)

	report := collector.Collect([]pct.ContainerRecord{{ID: "101", Status: pct.StatusRunning}})

	stateDir := filepath.Join(t.TempDir(), "state")
	path, err := collector.Save(report, stateDir)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(path), "diagnosis-") {
		t.Errorf("report name = %s, want diagnosis-<stamp>.json", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}

	var restored Report
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("saved report is not valid JSON: %v", err)
	}
	if len(restored.Containers) != 1 {
		t.Errorf("restored report has %d containers, want 1", len(restored.Containers))
	}
}
