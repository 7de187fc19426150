//go:build cuda

package hostgpu

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"gpubridge/internal/logging"
)

// Preflight probes the host driver through NVML. The result is advisory
// (used by diagnose and reported before configure); the device inventory
// remains the authoritative gate.
type Preflight struct {
	nvml   NVMLInterface
	logger *logging.Logger
}

// NewPreflight creates a driver preflight prober.
func NewPreflight(logger *logging.Logger) *Preflight {
	return &Preflight{nvml: NewRealNVML(), logger: logger}
}

// NewPreflightWithNVML creates a prober with a custom NVML interface (for testing)
func NewPreflightWithNVML(nvmlInterface NVMLInterface, logger *logging.Logger) *Preflight {
	return &Preflight{nvml: nvmlInterface, logger: logger}
}

// Probe queries driver version, CUDA version and device count.
func (p *Preflight) Probe() DriverReport {
	report := DriverReport{}

	ret := p.nvml.Init()
	if ret != nvml.SUCCESS {
		report.ErrorMessage = fmt.Sprintf("Failed to initialize NVML: %v", nvml.ErrorString(ret))
		p.logger.Warn("hostgpu.preflight.init_failed", "NVML initialization failed", map[string]interface{}{
			"error": report.ErrorMessage,
		})
		return report
	}
	defer p.nvml.Shutdown()

	report.NVMLOk = true

	if version, ret := p.nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		report.DriverVersion = version
	} else {
		p.logger.Warn("hostgpu.preflight.driver_version_failed", "Failed to get driver version", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
	}

	if version, ret := p.nvml.SystemGetCudaDriverVersion(); ret == nvml.SUCCESS {
		report.CUDAVersion = version
	} else {
		p.logger.Warn("hostgpu.preflight.cuda_version_failed", "Failed to get CUDA version", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
	}

	count, ret := p.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		report.ErrorMessage = fmt.Sprintf("Failed to get device count: %v", nvml.ErrorString(ret))
		p.logger.Error("hostgpu.preflight.count_failed", "Failed to get GPU count", map[string]interface{}{
			"error": report.ErrorMessage,
		})
		return report
	}
	report.DeviceCount = count

	p.logger.Info("hostgpu.preflight.done", "Host driver preflight complete", map[string]interface{}{
		"driver_version": report.DriverVersion,
		"cuda_version":   report.CUDAVersion,
		"device_count":   report.DeviceCount,
	})

	return report
}
