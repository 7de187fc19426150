package lxcconf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gpubridge/internal/errdefs"
	"gpubridge/internal/hostgpu"
	"gpubridge/internal/logging"
)

func testInventory() hostgpu.Inventory {
	return hostgpu.Inventory{
		Devices: []hostgpu.DeviceNode{
			{Path: "/dev/nvidia0"},
			{Path: "/dev/nvidiactl"},
		},
		Majors: []int{195},
	}
}

func testMappings() []hostgpu.Mapping {
	return []hostgpu.Mapping{
		{
			Name:          "libnvidia-ml.so.1",
			HostPath:      "/usr/lib/x86_64-linux-gnu/libnvidia-ml.so.575.51.03",
			ContainerPath: "/usr/lib/x86_64-linux-gnu/libnvidia-ml.so.1",
		},
	}
}

func newTestRewriter(t *testing.T) (*Rewriter, string) {
	t.Helper()
	confDir := t.TempDir()
	backupDir := filepath.Join(t.TempDir(), "backups")
	logger := logging.NewLogger(logging.LevelError)
	return NewRewriter(confDir, backupDir, "/usr/bin/nvidia-smi", logger), confDir
}

func writeConf(t *testing.T, confDir, id, content string) string {
	t.Helper()
	path := filepath.Join(confDir, id+".conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write conf fixture: %v", err)
	}
	return path
}

func readConf(t *testing.T, confDir, id string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(confDir, id+".conf"))
	if err != nil {
		t.Fatalf("Failed to read conf: %v", err)
	}
	return string(data)
}

func TestApply_Idempotent(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	writeConf(t, confDir, "101", "arch: amd64\nhostname: gpu-box\n")

	if err := rewriter.Apply("101", testInventory(), testMappings()); err != nil {
		t.Fatalf("First apply failed: %v", err)
	}
	first := readConf(t, confDir, "101")

	if err := rewriter.Apply("101", testInventory(), testMappings()); err != nil {
		t.Fatalf("Second apply failed: %v", err)
	}
	second := readConf(t, confDir, "101")

	if first != second {
		t.Errorf("Apply is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}

	// No duplicate managed lines after repeated runs.
	if strings.Count(second, MarkerComment) != 1 {
		t.Errorf("Expected exactly one marker, document:\n%s", second)
	}
	if strings.Count(second, "dev0: /dev/nvidia0") != 1 {
		t.Errorf("Expected exactly one nvidia0 device directive, document:\n%s", second)
	}
}

func TestApply_PreservesUnmanagedLines(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	original := "arch: amd64\ncores: 4\nnet0: name=eth0,bridge=vmbr0,ip=dhcp\n"
	writeConf(t, confDir, "101", original)

	if err := rewriter.Apply("101", testInventory(), testMappings()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got := readConf(t, confDir, "101")
	if !strings.HasPrefix(got, original) {
		t.Errorf("Unmanaged lines must be preserved verbatim and in order:\n%s", got)
	}
}

func TestApply_TwoDeviceScenario(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	writeConf(t, confDir, "101", "arch: amd64\n")

	// Primary and control device only, no optional sub-devices.
	if err := rewriter.Apply("101", testInventory(), nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got := readConf(t, confDir, "101")
	deviceLines := 0
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "dev") && strings.Contains(line, "/dev/nvidia") {
			deviceLines++
		}
	}
	if deviceLines != 2 {
		t.Errorf("Expected exactly 2 device-mount lines, got %d:\n%s", deviceLines, got)
	}

	if !strings.Contains(got, "lxc.cgroup2.devices.allow: c 195:* rwm") {
		t.Errorf("Expected cgroup rule for major 195:\n%s", got)
	}
	if strings.Contains(got, "c 508:*") {
		t.Errorf("Expected no uvm cgroup rule without uvm device:\n%s", got)
	}
}

func TestApply_NumbersAroundForeignDevices(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	writeConf(t, confDir, "101", "dev0: /dev/dri/renderD128,mode=0666\n")

	if err := rewriter.Apply("101", testInventory(), nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got := readConf(t, confDir, "101")
	if !strings.Contains(got, "dev0: /dev/dri/renderD128,mode=0666") {
		t.Errorf("Foreign device directive must survive:\n%s", got)
	}
	if !strings.Contains(got, "dev1: /dev/nvidia0,mode=0666") {
		t.Errorf("Managed numbering must start after foreign directives:\n%s", got)
	}
}

func TestStripThenApply_MatchesDirectApply(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	writeConf(t, confDir, "101", "arch: amd64\n")

	if err := rewriter.Apply("101", testInventory(), testMappings()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	applied := readConf(t, confDir, "101")

	if err := rewriter.Strip("101"); err != nil {
		t.Fatalf("Strip failed: %v", err)
	}
	stripped := readConf(t, confDir, "101")
	if stripped != "arch: amd64\n" {
		t.Errorf("Strip should leave only unmanaged lines, got:\n%s", stripped)
	}

	if err := rewriter.Apply("101", testInventory(), testMappings()); err != nil {
		t.Fatalf("Reapply failed: %v", err)
	}
	if readConf(t, confDir, "101") != applied {
		t.Error("Strip followed by apply must reproduce the same document")
	}
}

func TestApply_WritesBackupBeforeMutation(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	writeConf(t, confDir, "101", "arch: amd64\n")

	if err := rewriter.Apply("101", testInventory(), nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	entries, err := os.ReadDir(rewriter.backupDir)
	if err != nil {
		t.Fatalf("Failed to read backup dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 backup, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "101.conf.") {
		t.Errorf("Unexpected backup name: %s", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(rewriter.backupDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if string(data) != "arch: amd64\n" {
		t.Errorf("Backup must hold the pre-mutation document, got:\n%s", data)
	}
}

func TestApply_EmptyInventoryRefused(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	writeConf(t, confDir, "101", "arch: amd64\n")

	err := rewriter.Apply("101", hostgpu.Inventory{}, nil)
	if !errors.Is(err, errdefs.ErrPrecondition) {
		t.Errorf("Expected precondition failure, got: %v", err)
	}

	if readConf(t, confDir, "101") != "arch: amd64\n" {
		t.Error("Document must be untouched after refused apply")
	}
}

func TestApply_MissingDocumentIsConfigWriteFailure(t *testing.T) {
	rewriter, _ := newTestRewriter(t)

	err := rewriter.Apply("404", testInventory(), nil)
	if !errors.Is(err, errdefs.ErrConfigWrite) {
		t.Errorf("Expected config write failure, got: %v", err)
	}
}

func TestIsManaged(t *testing.T) {
	rewriter, confDir := newTestRewriter(t)
	writeConf(t, confDir, "101", "arch: amd64\n")

	managed, err := rewriter.IsManaged("101")
	if err != nil {
		t.Fatalf("IsManaged failed: %v", err)
	}
	if managed {
		t.Error("Fresh document should not be managed")
	}

	if err := rewriter.Apply("101", testInventory(), nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	managed, err = rewriter.IsManaged("101")
	if err != nil {
		t.Fatalf("IsManaged failed: %v", err)
	}
	if !managed {
		t.Error("Configured document should be managed")
	}
}
