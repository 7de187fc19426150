package verify

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gpubridge/internal/errdefs"
	"gpubridge/internal/logging"
	"gpubridge/internal/pct"
)

type fakeClient struct {
	status   string
	startErr error

	deviceVisible bool
	probeFailures int // probes that fail before succeeding
	installErr    error
	installs      int
	probes        int
}

func (f *fakeClient) List() ([]pct.ContainerRecord, error) { return nil, nil }
func (f *fakeClient) Status(id string) (string, error)     { return f.status, nil }

func (f *fakeClient) Start(id string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.status = pct.StatusRunning
	return nil
}

func (f *fakeClient) Stop(id string) error {
	f.status = pct.StatusStopped
	return nil
}

func (f *fakeClient) Exec(id string, command ...string) (string, error) {
	line := strings.Join(command, " ")
	if strings.HasPrefix(line, "test -e") {
		if f.deviceVisible {
			return "", nil
		}
		return "", fmt.Errorf("pct exec failed: exit status 1")
	}
	return "", nil
}

func (f *fakeClient) ExecTimeout(id string, timeout time.Duration, command ...string) (string, error) {
	line := strings.Join(command, " ")
	switch {
	case strings.HasPrefix(line, "nvidia-smi"):
		f.probes++
		if f.probes <= f.probeFailures {
			return "", fmt.Errorf("pct exec failed: exit status 6")
		}
		return "GPU 0: NVIDIA RTX A4000", nil
	case strings.Contains(line, "apt-get install"):
		f.installs++
		return "", f.installErr
	}
	return "", nil
}

func newVerifier(client pct.Client) *Verifier {
	v := NewVerifier(client, 10*time.Second, 3*time.Second, "libnvidia-compute-575",
		logging.NewLogger(logging.LevelError))
	v.sleep = func(time.Duration) {}
	return v
}

func TestVerify_ProbePassesFirstTry(t *testing.T) {
	client := &fakeClient{status: pct.StatusStopped, deviceVisible: true}

	result, err := newVerifier(client).Verify("101", "/dev/nvidia0")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Succeeded || !result.DeviceVisible || !result.ProbePassed {
		t.Errorf("Unexpected result: %+v", result)
	}
	if result.RemediationAttempted {
		t.Error("No remediation expected when the first probe passes")
	}
}

func TestVerify_StartFailureIsFatal(t *testing.T) {
	client := &fakeClient{
		status:   pct.StatusStopped,
		startErr: fmt.Errorf("%w: start container 101: quota exceeded", errdefs.ErrLifecycle),
	}

	result, err := newVerifier(client).Verify("101", "/dev/nvidia0")
	if !errors.Is(err, errdefs.ErrLifecycle) {
		t.Fatalf("Expected lifecycle failure, got: %v", err)
	}
	if result.Succeeded {
		t.Error("Result must not report success after a start failure")
	}
}

func TestVerify_MissingDeviceSkipsRemediation(t *testing.T) {
	client := &fakeClient{status: pct.StatusRunning, deviceVisible: false}

	result, err := newVerifier(client).Verify("101", "/dev/nvidia0")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.DeviceVisible {
		t.Error("Device should not be visible")
	}
	if result.Succeeded {
		t.Error("Verdict must be failed")
	}
	if result.RemediationAttempted {
		t.Error("Missing device indicates mount directives failed; remediation must be skipped")
	}
	if client.probes != 0 {
		t.Error("No probe should run without a visible device")
	}
}

func TestVerify_RemediationRecoversProbe(t *testing.T) {
	client := &fakeClient{status: pct.StatusStopped, deviceVisible: true, probeFailures: 1}

	result, err := newVerifier(client).Verify("101", "/dev/nvidia0")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Succeeded {
		t.Error("Expected success after remediation")
	}
	if !result.RemediationAttempted {
		t.Error("Remediation should be recorded")
	}
	if client.installs != 1 {
		t.Errorf("Expected exactly one install attempt, got %d", client.installs)
	}
	if client.probes != 2 {
		t.Errorf("Expected two probe attempts, got %d", client.probes)
	}
}

func TestVerify_SingleRetryThenFailed(t *testing.T) {
	client := &fakeClient{
		status:        pct.StatusStopped,
		deviceVisible: true,
		probeFailures: 5,
		installErr:    fmt.Errorf("pct exec failed: exit status 100"),
	}

	result, err := newVerifier(client).Verify("101", "/dev/nvidia0")
	if err != nil {
		t.Fatalf("Verification failure is a verdict, not an error, got: %v", err)
	}
	if result.Succeeded {
		t.Error("Expected failed verdict")
	}
	if !result.RemediationAttempted {
		t.Error("Remediation should have been attempted")
	}
	if client.probes != 2 {
		t.Errorf("Exactly one retry is allowed, got %d probes", client.probes)
	}
	if client.installs != 1 {
		t.Errorf("Exactly one remediation is allowed, got %d installs", client.installs)
	}
}
