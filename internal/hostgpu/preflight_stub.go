//go:build !cuda

package hostgpu

import "gpubridge/internal/logging"

// NVMLInterface is a placeholder interface for builds without CUDA support.
type NVMLInterface interface{}

// NewRealNVML returns a nil placeholder when CUDA support is disabled.
func NewRealNVML() NVMLInterface {
	return nil
}

// Preflight provides a no-op driver prober when NVML is unavailable.
type Preflight struct {
	logger *logging.Logger
}

// NewPreflight creates a prober that skips NVML when CUDA support is disabled.
func NewPreflight(logger *logging.Logger) *Preflight {
	return &Preflight{logger: logger}
}

// NewPreflightWithNVML is provided for API compatibility; NVML is ignored when CUDA is disabled.
func NewPreflightWithNVML(_ NVMLInterface, logger *logging.Logger) *Preflight {
	return NewPreflight(logger)
}

// Probe returns a report indicating that NVML is unavailable in the current build.
func (p *Preflight) Probe() DriverReport {
	if p.logger != nil {
		p.logger.Info("hostgpu.preflight.disabled", "Skipping NVML preflight (built without cuda tag)", nil)
	}

	return DriverReport{
		NVMLOk:       false,
		ErrorMessage: "NVML disabled: rebuild with -tags cuda",
	}
}
