package config

import (
	"fmt"
	"path/filepath"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validatePassthrough()...)
	errors = append(errors, c.validateVerify()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	for _, p := range []struct {
		path  string
		field string
	}{
		{c.Host.DeviceDir, "host.device_dir"},
		{c.Host.LibraryDir, "host.library_dir"},
		{c.Containers.ConfDir, "containers.conf_dir"},
		{c.Containers.BackupDir, "containers.backup_dir"},
	} {
		if !filepath.IsAbs(p.path) {
			errors = append(errors, ValidationError{
				Path:    p.field,
				Message: fmt.Sprintf("must be an absolute path, got '%s'", p.path),
			})
		}
	}

	return errors
}

func (c *Config) validatePassthrough() []ValidationError {
	var errors []ValidationError

	if !filepath.IsAbs(c.Passthrough.BridgeBinary) {
		errors = append(errors, ValidationError{
			Path:    "passthrough.bridge_binary",
			Message: fmt.Sprintf("must be an absolute path, got '%s'", c.Passthrough.BridgeBinary),
		})
	}

	if len(c.Passthrough.Libraries) == 0 {
		errors = append(errors, ValidationError{
			Path:    "passthrough.libraries",
			Message: "at least one required library must be listed",
		})
	}

	return errors
}

func (c *Config) validateVerify() []ValidationError {
	var errors []ValidationError

	if c.Verify.ProbeTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Path:    "verify.probe_timeout_seconds",
			Message: fmt.Sprintf("must be positive, got %d", c.Verify.ProbeTimeoutSeconds),
		})
	}

	if c.Verify.DeviceWaitSeconds <= 0 {
		errors = append(errors, ValidationError{
			Path:    "verify.device_wait_seconds",
			Message: fmt.Sprintf("must be positive, got %d", c.Verify.DeviceWaitSeconds),
		})
	}

	if c.Verify.RemediationPackage == "" {
		errors = append(errors, ValidationError{
			Path:    "verify.remediation_package",
			Message: "must name the minimal runtime library package",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	if c.Logging.File != "" && !filepath.IsAbs(c.Logging.File) {
		errors = append(errors, ValidationError{
			Path:    "logging.file",
			Message: fmt.Sprintf("must be an absolute path, got '%s'", c.Logging.File),
		})
	}

	return errors
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
