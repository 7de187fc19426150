// Package verify restarts a configured container and confirms the GPU is
// functionally usable inside it, applying one bounded remediation before
// declaring failure.
package verify

import (
	"fmt"
	"time"

	"gpubridge/internal/logging"
	"gpubridge/internal/pct"
)

// Result is the per-container verification outcome.
type Result struct {
	ContainerID          string    `json:"container_id"`
	DeviceVisible        bool      `json:"device_visible"`
	ProbePassed          bool      `json:"probe_passed"`
	RemediationAttempted bool      `json:"remediation_attempted"`
	Succeeded            bool      `json:"succeeded"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	VerifiedAt           time.Time `json:"verified_at"`
}

// Verifier drives the verification state machine:
// restart, device check, functional probe, then at most one remediation
// (install the minimal runtime library) followed by a single probe retry.
type Verifier struct {
	client             pct.Client
	logger             *logging.Logger
	probeTimeout       time.Duration
	deviceWait         time.Duration
	remediationPackage string

	// sleep is injectable so tests skip the bounded wait.
	sleep func(time.Duration)
}

// NewVerifier creates a verifier.
func NewVerifier(client pct.Client, probeTimeout, deviceWait time.Duration, remediationPackage string, logger *logging.Logger) *Verifier {
	return &Verifier{
		client:             client,
		logger:             logger,
		probeTimeout:       probeTimeout,
		deviceWait:         deviceWait,
		remediationPackage: remediationPackage,
		sleep:              time.Sleep,
	}
}

// Verify runs the full protocol for one container. primaryDevice is the
// host inventory's primary device node; its in-container visibility gates
// the functional probe. A start failure is returned as an error; every
// other outcome is expressed in the Result.
func (v *Verifier) Verify(id, primaryDevice string) (Result, error) {
	result := Result{ContainerID: id, VerifiedAt: time.Now().UTC()}

	if err := v.restart(id); err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}

	if !v.waitForDevice(id, primaryDevice) {
		// Mount directives did not take effect; remediation cannot help.
		result.ErrorMessage = fmt.Sprintf("device %s not visible inside container", primaryDevice)
		v.logger.Error("verify.device_missing", "Device node not visible after restart", map[string]interface{}{
			"container": id,
			"device":    primaryDevice,
		})
		return result, nil
	}
	result.DeviceVisible = true

	if v.probe(id) {
		result.ProbePassed = true
		result.Succeeded = true
		v.logger.Info("verify.succeeded", "Functional probe passed", map[string]interface{}{
			"container": id,
		})
		return result, nil
	}

	v.logger.Warn("verify.probe_failed", "Functional probe failed, attempting remediation", map[string]interface{}{
		"container": id,
		"package":   v.remediationPackage,
	})

	result.RemediationAttempted = true
	if err := v.remediate(id); err != nil {
		v.logger.Warn("verify.remediation_failed", "Remediation install failed", map[string]interface{}{
			"container": id,
			"error":     err.Error(),
		})
	}

	if v.probe(id) {
		result.ProbePassed = true
		result.Succeeded = true
		v.logger.Info("verify.succeeded", "Functional probe passed after remediation", map[string]interface{}{
			"container": id,
		})
		return result, nil
	}

	result.ErrorMessage = "functional probe failed after remediation"
	v.logger.Error("verify.failed", "Verification failed", map[string]interface{}{
		"container": id,
	})
	return result, nil
}

// restart stops the container when running, then starts it. A start
// failure is immediately fatal for this container.
func (v *Verifier) restart(id string) error {
	if status, err := v.client.Status(id); err == nil && status == pct.StatusRunning {
		if err := v.client.Stop(id); err != nil {
			v.logger.Warn("verify.stop_error", "Error stopping container (continuing)", map[string]interface{}{
				"container": id,
				"error":     err.Error(),
			})
		}
	}
	return v.client.Start(id)
}

// waitForDevice polls for the primary device node inside the container,
// bounded by the configured wait.
func (v *Verifier) waitForDevice(id, device string) bool {
	attempts := int(v.deviceWait / time.Second)
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if i > 0 {
			v.sleep(time.Second)
		}
		if _, err := v.client.Exec(id, "test", "-e", device); err == nil {
			return true
		}
	}
	return false
}

// probe runs the time-bounded device query. Its exit status is the sole
// signal consumed.
func (v *Verifier) probe(id string) bool {
	_, err := v.client.ExecTimeout(id, v.probeTimeout, "nvidia-smi", "-L")
	return err == nil
}

// remediate installs the minimal runtime library package inside the
// container. Exactly one attempt is made per verification.
func (v *Verifier) remediate(id string) error {
	if _, err := v.client.ExecTimeout(id, 5*time.Minute, "apt-get", "install", "-y",
		"--no-install-recommends", v.remediationPackage); err != nil {
		return fmt.Errorf("failed to install %s: %w", v.remediationPackage, err)
	}
	return nil
}
